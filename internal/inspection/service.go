package inspection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/NovaFleet/NovaFleet/internal/common/logger"
)

// Store 抽象记录存储。实现必须保证同一 id 的更新可串行化：
// Replace 以读到的 Version 做条件更新，输掉并发写的一方返回 StoreConflictError。
type Store interface {
	Get(ctx context.Context, id string) (*Inspection, error)
	Create(ctx context.Context, rec *Inspection) error
	Replace(ctx context.Context, rec *Inspection) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f ListFilter) ([]Inspection, int64, error)
	History(ctx context.Context, inspectionID string) ([]InspectionHistory, error)
}

// Clock 注入“今天”的能力。一次校验只读一次，避免跨午夜前后两次读取不一致。
type Clock interface {
	Today() time.Time
}

// SystemClock 真实时钟。
type SystemClock struct{}

func (SystemClock) Today() time.Time { return DateOnly(time.Now()) }

// HistorySink 审计日志出口。对核心来说是 fire-and-forget：
// 写入失败只降级为 Warn 日志，绝不阻塞或回滚主流程。
type HistorySink interface {
	Append(ctx context.Context, entry InspectionHistory) error
}

// Service 封装检验单生命周期用例（不依赖 HTTP），便于复用和测试。
type Service struct {
	store Store
	clock Clock
	sinks []HistorySink
	log   logger.Logger
}

func NewService(store Store, clock Clock, log logger.Logger, sinks ...HistorySink) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{store: store, clock: clock, sinks: sinks, log: log}
}

// CreateInput 创建检验单的入参。Status 为空时默认 scheduled。
type CreateInput struct {
	VehiclePlate   string
	InspectionDate time.Time
	Status         string
	Notes          string
}

// UpdateInput 更新入参。nil 字段保留原值（PATCH 语义）；
// 全量更新由调用方把所有字段都填上。
type UpdateInput struct {
	VehiclePlate   *string
	InspectionDate *time.Time
	Status         *string
	Notes          *string
}

// ListFilter 查询条件。
type ListFilter struct {
	VehiclePlate string
	Status       Status
	Offset       int
	Limit        int
}

// Create 创建检验单。提议的 (status, date) 先过校验器，通过才落库。
func (s *Service) Create(ctx context.Context, in CreateInput) (*Inspection, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	plate := NormalizePlate(in.VehiclePlate)
	if plate == "" {
		return nil, fmt.Errorf("vehicle_plate required")
	}

	raw := strings.TrimSpace(in.Status)
	if raw == "" {
		raw = string(StatusScheduled)
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(st, in.InspectionDate, s.clock.Today()); err != nil {
		return nil, err
	}

	rec := &Inspection{
		ID:             uuid.NewString(),
		VehiclePlate:   plate,
		InspectionDate: DateOnly(in.InspectionDate),
		Status:         st,
		Notes:          in.Notes,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update 全量 / 局部更新。未提供的字段保留原值，
// 校验针对更新后的 (status, date) 组合执行；状态变了就追加一条审计记录。
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Inspection, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *rec
	if in.VehiclePlate != nil {
		plate := NormalizePlate(*in.VehiclePlate)
		if plate == "" {
			return nil, fmt.Errorf("vehicle_plate required")
		}
		next.VehiclePlate = plate
	}
	if in.InspectionDate != nil {
		next.InspectionDate = DateOnly(*in.InspectionDate)
	}
	if in.Status != nil {
		st, err := ParseStatus(*in.Status)
		if err != nil {
			return nil, err
		}
		next.Status = st
	}
	if in.Notes != nil {
		next.Notes = *in.Notes
	}

	if err := ValidateTransition(next.Status, next.InspectionDate, s.clock.Today()); err != nil {
		return nil, err
	}
	if err := s.store.Replace(ctx, &next); err != nil {
		return nil, err
	}
	if rec.Status != next.Status {
		s.appendHistory(ctx, next.ID, rec.Status, next.Status)
	}
	return &next, nil
}

// Reschedule 把已出结果（passed / failed）的检验单重新拉回 scheduled。
// 新日期按 scheduled 的规则校验（必须严格晚于今天）；notes 只在提供时替换。
func (s *Service) Reschedule(ctx context.Context, id string, newDate time.Time, notes *string) (*Inspection, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	rec, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if !CanReschedule(rec.Status) {
		return nil, &InvalidRescheduleSourceError{Current: rec.Status, Allowed: RescheduleSources}
	}
	if err := ValidateTransition(StatusScheduled, newDate, s.clock.Today()); err != nil {
		return nil, err
	}

	next := *rec
	next.Status = StatusScheduled
	next.InspectionDate = DateOnly(newDate)
	if notes != nil {
		next.Notes = *notes
	}
	if err := s.store.Replace(ctx, &next); err != nil {
		return nil, err
	}
	s.appendHistory(ctx, next.ID, rec.Status, StatusScheduled)
	return &next, nil
}

// Get 按 id 查询。
func (s *Service) Get(ctx context.Context, id string) (*Inspection, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// List 按车牌 / 状态过滤 + 分页。
func (s *Service) List(ctx context.Context, f ListFilter) ([]Inspection, int64, error) {
	if s == nil || s.store == nil {
		return nil, 0, fmt.Errorf("service not initialized")
	}
	f.VehiclePlate = NormalizePlate(f.VehiclePlate)
	return s.store.List(ctx, f)
}

// Delete 硬删除，不留软删除痕迹；删除不是状态流转，不写审计记录。
func (s *Service) Delete(ctx context.Context, id string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("service not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrNotFound
	}
	return s.store.Delete(ctx, id)
}

// History 返回一条检验单的状态变更轨迹（新到旧）。记录不存在时返回 ErrNotFound。
func (s *Service) History(ctx context.Context, id string) ([]InspectionHistory, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if _, err := s.store.Get(ctx, strings.TrimSpace(id)); err != nil {
		return nil, err
	}
	return s.store.History(ctx, strings.TrimSpace(id))
}

// appendHistory 把一次状态变更广播给所有 sink。
// sink 失败只打 Warn（降级），主流程已经提交，不回滚。
func (s *Service) appendHistory(ctx context.Context, inspectionID string, from, to Status) {
	entry := InspectionHistory{
		ID:           uuid.NewString(),
		InspectionID: inspectionID,
		OldStatus:    from,
		NewStatus:    to,
		ChangedAt:    time.Now().UTC(),
		Notes:        fmt.Sprintf("Status changed from %s to %s", from, to),
	}
	for _, sink := range s.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Append(ctx, entry); err != nil && s.log != nil {
			s.log.Warnf("history sink append failed (degraded): inspection=%s %s->%s err=%v",
				inspectionID, from, to, err)
		}
	}
}
