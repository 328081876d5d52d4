package inspection

import (
	"strings"
	"time"
)

// DateFormat 检验日期的统一格式（只有日历日，没有时分秒）。
const DateFormat = "2006-01-02"

// Status 检验单状态枚举（持久化为字符串）。
type Status string

const (
	StatusScheduled Status = "scheduled" // 已预约，待检验（日期必须严格晚于今天）
	StatusPassed    Status = "passed"    // 检验通过（允许补录历史日期）
	StatusFailed    Status = "failed"    // 检验未通过（允许补录历史日期）
)

// AllowedStatuses 全部合法状态，错误信息按此顺序列出允许值。
var AllowedStatuses = []Status{StatusScheduled, StatusPassed, StatusFailed}

// ParseStatus 把外部传入的字符串解析为 Status。
// 枚举是封闭的：未知值直接拒绝，不做“兜底展示”。
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusScheduled, StatusPassed, StatusFailed:
		return st, nil
	}
	return "", &InvalidStatusError{Received: s, Allowed: AllowedStatuses}
}

// Inspection 是 inspections 表的 GORM 模型。
type Inspection struct {
	ID string `gorm:"primaryKey;size:36"`

	VehiclePlate   string    `gorm:"index;size:20;not null"`   // 车牌号（统一大写；不唯一：一辆车会有多次检验）
	InspectionDate time.Time `gorm:"type:date;index;not null"` // 检验日期（只取日历日）
	Status         Status    `gorm:"type:varchar(16);index;not null"`
	Notes          string    `gorm:"type:text"`

	// 乐观锁版本号：Replace 以读到的版本做条件更新，
	// 输掉并发写的一方得到 StoreConflict。
	Version int64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// InspectionHistory 状态变更审计表（只追加，不修改、不删除）。
// 每次状态变更写一条：旧状态、新状态、变更时间。
type InspectionHistory struct {
	ID           string    `gorm:"primaryKey;size:36"`
	InspectionID string    `gorm:"index;size:36;not null"`
	OldStatus    Status    `gorm:"type:varchar(16);not null"`
	NewStatus    Status    `gorm:"type:varchar(16);not null"`
	ChangedAt    time.Time `gorm:"index;not null"`
	Notes        string    `gorm:"type:text"`
}

// NormalizePlate 车牌归一化：去首尾空白 + 统一大写。
func NormalizePlate(p string) string {
	return strings.ToUpper(strings.TrimSpace(p))
}

// DateOnly 丢弃时分秒，把 t 所在时区的日历日归一到 UTC 零点。
// 所有日期比较前都先过这一层，避免时区歧义。
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsFutureDate 判断 d 是否严格晚于 today（按日历日比较，当天不算未来）。
func IsFutureDate(d, today time.Time) bool {
	return DateOnly(d).After(DateOnly(today))
}
