package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dedup:webhook:"

// Deduper — быстрый путь отсечения повторных вебхуков. Источник истины — таблица processed_events,
// поэтому при недоступности Redis событие пропускается дальше.
type Deduper struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDeduper(rdb *redis.Client, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Deduper{rdb: rdb, ttl: ttl}
}

// Seen сообщает, что событие уже было применено ранее.
func (d *Deduper) Seen(ctx context.Context, eventID string) bool {
	n, err := d.rdb.Exists(ctx, keyPrefix+eventID).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// Remember помечает событие применённым. Вызывается после коммита.
func (d *Deduper) Remember(ctx context.Context, eventID string) {
	_ = d.rdb.SetNX(ctx, keyPrefix+eventID, 1, d.ttl).Err()
}
