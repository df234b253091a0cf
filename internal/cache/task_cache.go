package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	dom "github.com/nxhieu3102/ai-assistant/internal/domain"
)

const (
	keyDayPrefix  = "tasks:day:"
	keyCalendar   = "tasks:calendar"
	keyIncomplete = "tasks:incomplete"
)

// TaskCache caches day lists, the calendar aggregate and the incomplete view
// in Redis. Any write to any day invalidates everything: the cross-day views
// depend on every partition.
type TaskCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTaskCache returns a new TaskCache.
func NewTaskCache(rdb *redis.Client, ttl time.Duration) *TaskCache {
	return &TaskCache{rdb: rdb, ttl: ttl}
}

// GetDay returns the cached list for date or nil if miss.
func (c *TaskCache) GetDay(ctx context.Context, date string) ([]dom.Task, error) {
	b, err := c.rdb.Get(ctx, keyDayPrefix+date).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []dom.Task
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SetDay stores the list for date.
func (c *TaskCache) SetDay(ctx context.Context, date string, list []dom.Task) error {
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyDayPrefix+date, b, c.ttl).Err()
}

// GetCalendar returns the cached per-date counts or nil if miss.
func (c *TaskCache) GetCalendar(ctx context.Context) (map[string]dom.DayCounts, error) {
	b, err := c.rdb.Get(ctx, keyCalendar).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var counts map[string]dom.DayCounts
	if err := json.Unmarshal(b, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// SetCalendar stores the per-date counts.
func (c *TaskCache) SetCalendar(ctx context.Context, counts map[string]dom.DayCounts) error {
	b, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyCalendar, b, c.ttl).Err()
}

// GetIncomplete returns the cached incomplete view or nil if miss.
func (c *TaskCache) GetIncomplete(ctx context.Context) ([]dom.IncompleteTask, error) {
	b, err := c.rdb.Get(ctx, keyIncomplete).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []dom.IncompleteTask
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SetIncomplete stores the incomplete view.
func (c *TaskCache) SetIncomplete(ctx context.Context, list []dom.IncompleteTask) error {
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyIncomplete, b, c.ttl).Err()
}

// InvalidateAll removes the cross-day views and every day key (cache
// invalidation on write).
func (c *TaskCache) InvalidateAll(ctx context.Context) error {
	if err := c.rdb.Del(ctx, keyCalendar, keyIncomplete).Err(); err != nil {
		return err
	}
	iter := c.rdb.Scan(ctx, 0, keyDayPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
