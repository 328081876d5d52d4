package inspection

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Repo 基于 GORM/MySQL 的 Store 实现。
type Repo struct {
	db *gorm.DB
}

var _ Store = (*Repo)(nil)

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

func (r *Repo) Get(ctx context.Context, id string) (*Inspection, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var rec Inspection
	if err := db.Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *Repo) Create(ctx context.Context, rec *Inspection) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	if err := db.Create(rec).Error; err != nil {
		return err
	}
	// 回读拿数据库生成的时间戳
	return db.Where("id = ?", rec.ID).First(rec).Error
}

// Replace 整行条件更新：以调用方读到的 version 做谓词，版本号 +1。
// 谓词不命中说明要么记录没了（ErrNotFound），要么有并发写抢先提交（StoreConflict）。
func (r *Repo) Replace(ctx context.Context, rec *Inspection) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}

	prev := rec.Version
	rec.Version = prev + 1

	res := db.Model(&Inspection{}).
		Where("id = ? AND version = ?", rec.ID, prev).
		Select("*").Omit("id", "created_at").
		Updates(rec)
	if res.Error != nil {
		rec.Version = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		rec.Version = prev
		var n int64
		if err := db.Model(&Inspection{}).Where("id = ?", rec.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return &StoreConflictError{ID: rec.ID}
	}
	// 回读刷新 updated_at
	return db.Where("id = ?", rec.ID).First(rec).Error
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	res := db.Where("id = ?", id).Delete(&Inspection{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List 按车牌 / 状态过滤 + 分页，按检验日期、创建时间倒序。
func (r *Repo) List(ctx context.Context, f ListFilter) ([]Inspection, int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, 0, fmt.Errorf("repo db is nil")
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := db.Model(&Inspection{})
	if f.VehiclePlate != "" {
		q = q.Where("vehicle_plate = ?", f.VehiclePlate)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var recs []Inspection
	if err := q.Order("inspection_date DESC, created_at DESC").
		Offset(f.Offset).Limit(f.Limit).Find(&recs).Error; err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func (r *Repo) History(ctx context.Context, inspectionID string) ([]InspectionHistory, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var entries []InspectionHistory
	if err := db.Where("inspection_id = ?", inspectionID).
		Order("changed_at DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
