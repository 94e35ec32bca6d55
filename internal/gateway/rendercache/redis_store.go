package rendercache

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edgecomet/revalidator/internal/common/redis"
	"github.com/edgecomet/revalidator/pkg/types"
)

const (
	fieldPath     = "path"
	fieldRoute    = "route"
	fieldTags     = "tags"
	fieldStale    = "stale"
	fieldStaleAt  = "stale_at"
	fieldStoredAt = "stored_at"

	markBatchSize = 500
)

// markStaleScript flags every existing entry hash in KEYS as stale.
// stale_at keeps the time of the first invalidation so repeated calls do not move it.
const markStaleScript = `
local n = 0
for _, key in ipairs(KEYS) do
  if redis.call('EXISTS', key) == 1 then
    if redis.call('HGET', key, 'stale') ~= '1' then
      redis.call('HSET', key, 'stale', '1', 'stale_at', ARGV[1])
    end
    n = n + 1
  end
end
return n
`

// RedisStore keeps the render cache index in Redis so every render node sees one state.
//
// Layout under the key namespace:
//
//	entry:{hash}    hash  path, route, tags, stale, stale_at, stored_at
//	tag:{tag}       set   entry keys carrying the tag
//	paths           hash  path -> entry key
//	route:{route}   set   entry keys rendered from a dynamic route
//	routes          set   dynamic routes with cached entries
type RedisStore struct {
	client  *redis.Client
	keys    *redis.KeyGenerator
	channel string
	sender  string
	logger  *zap.Logger
}

// NewRedisStore wraps a connected client. An empty channel disables notices.
func NewRedisStore(client *redis.Client, channel, sender string, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client:  client,
		keys:    redis.NewKeyGenerator(""),
		channel: channel,
		sender:  sender,
		logger:  logger,
	}
}

func (s *RedisStore) Put(ctx context.Context, path string, tags []string) error {
	return s.PutRoute(ctx, path, path, tags)
}

func (s *RedisStore) PutRoute(ctx context.Context, path, route string, tags []string) error {
	key := s.keys.EntryKey(path)

	previous, err := s.client.HGetAll(ctx, key)
	if err != nil {
		return err
	}

	return s.client.Pipelined(ctx, "put", func(pipe goredis.Pipeliner) error {
		for _, tag := range splitTags(previous[fieldTags]) {
			pipe.SRem(ctx, s.keys.TagKey(tag), key)
		}
		if old := previous[fieldRoute]; IsPattern(old) {
			pipe.SRem(ctx, s.keys.RouteKey(old), key)
		}
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldPath, path,
			fieldRoute, route,
			fieldTags, strings.Join(tags, ","),
			fieldStale, "0",
			fieldStoredAt, time.Now().UTC().Format(time.RFC3339Nano))
		for _, tag := range tags {
			pipe.SAdd(ctx, s.keys.TagKey(tag), key)
		}
		pipe.HSet(ctx, s.keys.PathIndexKey(), path, key)
		if IsPattern(route) {
			pipe.SAdd(ctx, s.keys.RouteKey(route), key)
			pipe.SAdd(ctx, s.keys.RouteIndexKey(), route)
		}
		return nil
	})
}

func (s *RedisStore) Get(ctx context.Context, path string) (Entry, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.keys.EntryKey(path))
	if err != nil {
		return Entry{}, false, err
	}
	if len(fields) == 0 {
		return Entry{}, false, nil
	}

	entry := Entry{
		Path:  fields[fieldPath],
		Route: fields[fieldRoute],
		Tags:  splitTags(fields[fieldTags]),
		Stale: fields[fieldStale] == "1",
	}
	entry.StaleAt, _ = time.Parse(time.RFC3339Nano, fields[fieldStaleAt])
	entry.StoredAt, _ = time.Parse(time.RFC3339Nano, fields[fieldStoredAt])
	return entry, true, nil
}

func (s *RedisStore) InvalidateTag(ctx context.Context, tag string) error {
	members, err := s.client.SMembers(ctx, s.keys.TagKey(tag))
	if err != nil {
		return fmt.Errorf("failed to read tag %s: %w", tag, err)
	}

	marked, err := s.markStale(ctx, members)
	if err != nil {
		return fmt.Errorf("failed to invalidate tag %s: %w", tag, err)
	}

	s.logger.Debug("Tag invalidated", zap.String("tag", tag), zap.Int("entries", marked))
	s.notify(ctx, Notice{Kind: NoticeTag, Target: tag, Entries: marked})
	return nil
}

func (s *RedisStore) InvalidatePath(ctx context.Context, path string, kind types.PathKind) error {
	keys, err := s.pathKeys(ctx, path, kind)
	if err != nil {
		return fmt.Errorf("failed to look up path %s (%s): %w", path, kind, err)
	}

	marked, err := s.markStale(ctx, keys)
	if err != nil {
		return fmt.Errorf("failed to invalidate path %s (%s): %w", path, kind, err)
	}

	s.logger.Debug("Path invalidated",
		zap.String("path", path),
		zap.String("kind", string(kind)),
		zap.Int("entries", marked))
	s.notify(ctx, Notice{Kind: NoticePath, Target: path, PathKind: kind, Entries: marked})
	return nil
}

// pathKeys resolves a path target to the entry keys it covers
func (s *RedisStore) pathKeys(ctx context.Context, path string, kind types.PathKind) ([]string, error) {
	switch {
	case IsPattern(path) && kind == types.PathPage:
		return s.client.SMembers(ctx, s.keys.RouteKey(path))

	case IsPattern(path):
		routes, err := s.client.SMembers(ctx, s.keys.RouteIndexKey())
		if err != nil {
			return nil, err
		}
		var keys []string
		for _, route := range routes {
			if !MatchPath(path, kind, route) {
				continue
			}
			members, err := s.client.SMembers(ctx, s.keys.RouteKey(route))
			if err != nil {
				return nil, err
			}
			keys = append(keys, members...)
		}
		return keys, nil

	case kind == types.PathPage:
		key, err := s.client.HGet(ctx, s.keys.PathIndexKey(), path)
		if err != nil || key == "" {
			return nil, err
		}
		return []string{key}, nil

	default:
		var keys []string
		err := s.client.HScanAll(ctx, s.keys.PathIndexKey(), func(cached, key string) error {
			if MatchPath(path, kind, cached) {
				keys = append(keys, key)
			}
			return nil
		})
		return keys, err
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) markStale(ctx context.Context, keys []string) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	total := 0
	for start := 0; start < len(keys); start += markBatchSize {
		end := start + markBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		result, err := s.client.Eval(ctx, markStaleScript, keys[start:end], now)
		if err != nil {
			return total, err
		}
		if n, ok := result.(int64); ok {
			total += int(n)
		}
	}
	return total, nil
}

// notify publishes a notice. Delivery is best effort: the index is already updated.
func (s *RedisStore) notify(ctx context.Context, n Notice) {
	if s.channel == "" {
		return
	}
	n.Sender = s.sender
	n.At = time.Now().UTC()
	payload, err := n.Encode()
	if err != nil {
		s.logger.Warn("Failed to encode invalidation notice", zap.Error(err))
		return
	}
	if _, err := s.client.Publish(ctx, s.channel, payload); err != nil {
		s.logger.Warn("Failed to publish invalidation notice",
			zap.String("channel", s.channel),
			zap.String("target", n.Target),
			zap.Error(err))
	}
}

func splitTags(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
