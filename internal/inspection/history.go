package inspection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/NovaFleet/NovaFleet/internal/common/middleware"
)

// GormHistorySink 把状态变更写入 inspection_histories 表（只追加）。
type GormHistorySink struct {
	db *gorm.DB
}

var _ HistorySink = (*GormHistorySink)(nil)

func NewGormHistorySink(db *gorm.DB) *GormHistorySink {
	return &GormHistorySink{db: db}
}

func (s *GormHistorySink) Append(ctx context.Context, entry InspectionHistory) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("history sink db is nil")
	}
	return s.db.WithContext(ctx).Create(&entry).Error
}

// StatusChangedChannel 状态变更事件的 Redis 频道。
const StatusChangedChannel = "INSPECTION_STATUS_CHANGED"

// RedisHistorySink 把状态变更事件发布到 Redis 频道，供下游（通知、报表）订阅。
// 发布经过熔断器：Redis 持续不可用时快速失败，只留下降级日志，不拖慢主流程。
type RedisHistorySink struct {
	rdb     *redis.Client
	channel string
	breaker *middleware.CircuitBreaker
}

var _ HistorySink = (*RedisHistorySink)(nil)

func NewRedisHistorySink(rdb *redis.Client, channel string) *RedisHistorySink {
	if channel == "" {
		channel = StatusChangedChannel
	}
	return &RedisHistorySink{
		rdb:     rdb,
		channel: channel,
		breaker: middleware.NewCircuitBreaker("history-redis", 5, 30*time.Second),
	}
}

func (s *RedisHistorySink) Append(ctx context.Context, entry InspectionHistory) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("history sink redis is nil")
	}
	payload, err := json.Marshal(map[string]string{
		"type":         StatusChangedChannel,
		"inspectionId": entry.InspectionID,
		"oldStatus":    string(entry.OldStatus),
		"newStatus":    string(entry.NewStatus),
		"changedAt":    entry.ChangedAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return s.breaker.Call(ctx, func() error {
		return s.rdb.Publish(ctx, s.channel, payload).Err()
	})
}
