package invalidation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/revalidator/internal/gateway/metrics"
	"github.com/edgecomet/revalidator/pkg/types"
)

// RenderCache is the part of the render cache the executor needs: marking entries stale
type RenderCache interface {
	InvalidateTag(ctx context.Context, tag string) error
	InvalidatePath(ctx context.Context, path string, kind types.PathKind) error
}

// Executor applies invalidation scopes to the render cache
type Executor struct {
	cache   RenderCache
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewExecutor(cache RenderCache, m *metrics.Metrics, logger *zap.Logger) *Executor {
	return &Executor{cache: cache, metrics: m, logger: logger}
}

// Apply marks every tag and path of sc stale.
// It stops at the first failure and returns what was done so far together with a
// *types.PartialInvalidationError. Nothing is rolled back or retried: marking an
// entry stale twice has no further effect, so the caller can simply re-send.
func (e *Executor) Apply(ctx context.Context, sc *types.InvalidationScope) (types.InvalidationResult, error) {
	start := time.Now()
	var result types.InvalidationResult

	fail := func(target string, err error) (types.InvalidationResult, error) {
		result.Duration = time.Since(start)
		perr := &types.PartialInvalidationError{Result: result, Target: target, Err: err}
		e.metrics.RecordInvalidation(result.TagsInvalidated, result.PathsInvalidated, result.Duration, perr)
		e.logger.Error("Invalidation stopped",
			zap.String("target", target),
			zap.Int("tags_invalidated", result.TagsInvalidated),
			zap.Int("paths_invalidated", result.PathsInvalidated),
			zap.Error(err))
		return result, perr
	}

	for _, tag := range sc.Tags() {
		if err := ctx.Err(); err != nil {
			return fail("tag:"+tag, err)
		}
		if err := e.cache.InvalidateTag(ctx, tag); err != nil {
			return fail("tag:"+tag, err)
		}
		result.TagsInvalidated++
	}

	for _, p := range sc.Paths() {
		if err := ctx.Err(); err != nil {
			return fail("path:"+p.String(), err)
		}
		if err := e.cache.InvalidatePath(ctx, p.Path, p.Kind); err != nil {
			return fail("path:"+p.String(), err)
		}
		result.PathsInvalidated++
	}

	result.Duration = time.Since(start)
	e.metrics.RecordInvalidation(result.TagsInvalidated, result.PathsInvalidated, result.Duration, nil)
	e.logger.Debug("Scope applied",
		zap.Int("tags_invalidated", result.TagsInvalidated),
		zap.Int("paths_invalidated", result.PathsInvalidated),
		zap.Duration("duration", result.Duration))
	return result, nil
}
