package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"course-graph/backend/internal/store"
	"course-graph/backend/pkg/logger"
)

// setIfNewer only writes when the cached version is absent or older, so a slow reader can never
// overwrite a snapshot a writer has just published.
var setIfNewer = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'body', ARGV[2], 'updated_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// Redis is a SnapshotCache on a Redis hash per document
type Redis struct {
	rdb    *goredis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis connects to addr and verifies the connection
func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb, ttl: ttl, logger: logger.Named("cache")}, nil
}

func (c *Redis) Get(ctx context.Context, kind, courseID string) (*store.Document, bool) {
	vals, err := c.rdb.HGetAll(ctx, key(kind, courseID)).Result()
	if err != nil {
		c.logger.Warn("Cache read failed", zap.String("course_id", courseID), zap.Error(err))
		return nil, false
	}
	if len(vals) == 0 {
		return nil, false
	}
	version, err := strconv.ParseInt(vals["version"], 10, 64)
	if err != nil {
		return nil, false
	}
	updated, _ := time.Parse(time.RFC3339Nano, vals["updated_at"])
	return &store.Document{
		Kind:      kind,
		CourseID:  courseID,
		Version:   version,
		Body:      []byte(vals["body"]),
		UpdatedAt: updated,
	}, true
}

func (c *Redis) Set(ctx context.Context, doc *store.Document) {
	if doc == nil {
		return
	}
	err := setIfNewer.Run(ctx, c.rdb, []string{key(doc.Kind, doc.CourseID)},
		doc.Version,
		string(doc.Body),
		doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
		c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		c.logger.Warn("Cache write failed",
			zap.String("course_id", doc.CourseID),
			zap.Int64("version", doc.Version),
			zap.Error(err),
		)
	}
}

func (c *Redis) Invalidate(ctx context.Context, kind, courseID string) {
	if err := c.rdb.Del(ctx, key(kind, courseID)).Err(); err != nil {
		c.logger.Warn("Cache invalidate failed", zap.String("course_id", courseID), zap.Error(err))
	}
}

func (c *Redis) Close() error {
	return c.rdb.Close()
}
