package inspection

import "time"

// ValidateTransition 是 (status, inspection_date) 组合的唯一校验入口。
// create / 全量更新 / 局部更新 / reschedule 的目标状态全部走这里，
// 规则不允许在别处重复实现，避免各处各自演化出不一致的版本。
//
// 规则：
//  1. status 必须在封闭枚举内，否则 InvalidStatusError；
//  2. scheduled 的检验日期必须严格晚于 today（当天不算未来），否则 PastDateError；
//  3. passed / failed 允许任意日期（补录历史检验）。
//
// today 由调用方从注入的时钟读取后传入，一次校验只读一次。
func ValidateTransition(st Status, date, today time.Time) error {
	switch st {
	case StatusScheduled, StatusPassed, StatusFailed:
	default:
		return &InvalidStatusError{Received: string(st), Allowed: AllowedStatuses}
	}
	if st == StatusScheduled && !IsFutureDate(date, today) {
		return &PastDateError{Today: DateOnly(today), Received: DateOnly(date)}
	}
	return nil
}

// RescheduleSources reschedule 允许的出发状态。
var RescheduleSources = []Status{StatusPassed, StatusFailed}

// CanReschedule 判断当前状态能否作为 reschedule 的出发状态。
func CanReschedule(current Status) bool {
	return current == StatusPassed || current == StatusFailed
}
