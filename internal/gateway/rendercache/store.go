package rendercache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/revalidator/internal/common/configtypes"
	"github.com/edgecomet/revalidator/internal/common/redis"
	"github.com/edgecomet/revalidator/pkg/types"
)

// Entry is the index record of one rendered route. Content lives with the renderer;
// the store only tracks which tags a route depends on and whether it is stale.
type Entry struct {
	Path string
	// Route is the template the path was rendered from, localized like Path.
	// Static routes are their own template.
	Route    string
	Tags     []string
	Stale    bool
	StaleAt  time.Time
	StoredAt time.Time
}

// Store is a render cache index addressable by tag or by path
type Store interface {
	// Put registers a freshly rendered static route and its tags, clearing any stale flag
	Put(ctx context.Context, path string, tags []string) error
	// PutRoute registers a path rendered from a dynamic route such as /es/[category]/[slug]
	PutRoute(ctx context.Context, path, route string, tags []string) error
	Get(ctx context.Context, path string) (Entry, bool, error)
	InvalidateTag(ctx context.Context, tag string) error
	InvalidatePath(ctx context.Context, path string, kind types.PathKind) error
	Ping(ctx context.Context) error
	Close() error
}

// New builds the configured backend
func New(cfg configtypes.RenderCacheConfig, redisCfg configtypes.RedisConfig, gatewayID string, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case configtypes.RenderCacheMemory:
		return NewMemoryStore(cfg.MemorySize, logger)
	case configtypes.RenderCacheRedis, "":
		client, err := redis.NewClient(&redisCfg, logger)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, cfg.Channel, gatewayID, logger), nil
	default:
		return nil, fmt.Errorf("unknown render cache backend %q", cfg.Backend)
	}
}

// MatchPath reports whether target covers candidate, comparing segments literally.
// A page target covers the same path; a layout target also covers everything below it.
// Bracketed segments are not wildcards: a route target such as /[category] is matched
// against the route an entry was rendered from (see Covers), never against concrete paths.
func MatchPath(target string, kind types.PathKind, candidate string) bool {
	t := segments(target)
	c := segments(candidate)

	if kind == types.PathLayout {
		if len(c) < len(t) {
			return false
		}
	} else if len(c) != len(t) {
		return false
	}

	for i, seg := range t {
		if seg != c[i] {
			return false
		}
	}
	return true
}

// Covers reports whether invalidating target marks entry stale.
// Route targets compare with the entry's route, concrete targets with its path.
func Covers(target string, kind types.PathKind, entry *Entry) bool {
	if IsPattern(target) {
		return MatchPath(target, kind, entry.route())
	}
	return MatchPath(target, kind, entry.Path)
}

func (e *Entry) route() string {
	if e.Route == "" {
		return e.Path
	}
	return e.Route
}

// IsPattern reports whether target has route parameters and so cannot be looked up directly
func IsPattern(target string) bool {
	for _, seg := range segments(target) {
		if isParam(seg) {
			return true
		}
	}
	return false
}

func segments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func isParam(seg string) bool {
	return len(seg) > 2 && seg[0] == '[' && seg[len(seg)-1] == ']'
}
