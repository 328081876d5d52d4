package inspection

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// 校验与生命周期操作的结构化拒绝原因。
// 错误信息必须带上具体的值（收到的日期、今天、允许的取值），
// 调用方看报错就能自行纠正，不用翻文档。

// ErrNotFound 记录不存在。
var ErrNotFound = errors.New("inspection not found")

// InvalidStatusError 状态不在封闭枚举范围内。
type InvalidStatusError struct {
	Received string
	Allowed  []Status
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q: status must be one of: %s",
		e.Received, joinStatuses(e.Allowed))
}

// PastDateError scheduled 状态要求检验日期严格晚于今天（当天也不行）。
// passed / failed 不受此限制，所以报错里顺带给出补录历史检验的办法。
type PastDateError struct {
	Today    time.Time
	Received time.Time
}

func (e *PastDateError) Error() string {
	return fmt.Sprintf(
		"inspections scheduled for a past date are not allowed: today is %s, but received %s; "+
			"use status 'passed' or 'failed' to record a historical inspection",
		e.Today.Format(DateFormat), e.Received.Format(DateFormat))
}

// InvalidRescheduleSourceError 只有 passed / failed 的检验单才能重新预约；
// 已经是 scheduled 的记录谈不上“重新”。
type InvalidRescheduleSourceError struct {
	Current Status
	Allowed []Status
}

func (e *InvalidRescheduleSourceError) Error() string {
	return fmt.Sprintf("cannot reschedule an inspection with status %q: current status must be one of: %s",
		e.Current, joinStatuses(e.Allowed))
}

// StoreConflictError 同一条记录的并发写冲突，输掉的一方收到此错误。
// 核心不做重试，重试策略留给调用方。
type StoreConflictError struct {
	ID string
}

func (e *StoreConflictError) Error() string {
	return fmt.Sprintf("inspection %s was modified concurrently, re-read and retry", e.ID)
}

func joinStatuses(ss []Status) string {
	parts := make([]string, 0, len(ss))
	for _, s := range ss {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ", ")
}
