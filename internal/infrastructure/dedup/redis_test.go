package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestDeduper_FailsOpenWhenRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	d := NewDeduper(rdb, time.Minute)
	ctx := context.Background()

	assert.False(t, d.Seen(ctx, "evt_1"))
	d.Remember(ctx, "evt_1")
	assert.False(t, d.Seen(ctx, "evt_1"))
}
