package sitemap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/revalidator/internal/common/httputil"
	"github.com/edgecomet/revalidator/internal/common/requestid"
	"github.com/edgecomet/revalidator/internal/gateway/locale"
	"github.com/edgecomet/revalidator/internal/gateway/metrics"
	"github.com/edgecomet/revalidator/internal/gateway/scope"
	"github.com/edgecomet/revalidator/pkg/types"
)

// Variant selects which document a sitemap route serves
type Variant string

const (
	VariantFull  Variant = "full"
	VariantNews  Variant = "news"
	VariantIndex Variant = "index"
)

// Route is a parsed sitemap request path. An empty Locale means the default locale.
type Route struct {
	Variant Variant
	Locale  string
	Gzip    bool
}

// ParseRoute recognizes the sitemap paths:
//
//	/sitemap.xml  /sitemap/{locale}.xml[.gz]  /{locale}/sitemap.xml
//	/news-sitemap.xml  /news-sitemap/{locale}.xml  /{locale}/news-sitemap.xml
//	/sitemap-index.xml
func ParseRoute(path string) (Route, bool) {
	switch path {
	case "/sitemap.xml":
		return Route{Variant: VariantFull}, true
	case "/news-sitemap.xml":
		return Route{Variant: VariantNews}, true
	case "/sitemap-index.xml":
		return Route{Variant: VariantIndex}, true
	}

	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(segs) != 2 || segs[0] == "" || segs[1] == "" {
		return Route{}, false
	}

	switch {
	case segs[0] == "sitemap" || segs[0] == "news-sitemap":
		variant := VariantFull
		if segs[0] == "news-sitemap" {
			variant = VariantNews
		}
		name, gz := segs[1], false
		if variant == VariantFull && strings.HasSuffix(name, ".xml.gz") {
			name, gz = strings.TrimSuffix(name, ".xml.gz"), true
		} else if strings.HasSuffix(name, ".xml") {
			name = strings.TrimSuffix(name, ".xml")
		} else {
			return Route{}, false
		}
		if name == "" {
			return Route{}, false
		}
		return Route{Variant: variant, Locale: name, Gzip: gz}, true
	case segs[1] == "sitemap.xml":
		return Route{Variant: VariantFull, Locale: segs[0]}, true
	case segs[1] == "news-sitemap.xml":
		return Route{Variant: VariantNews, Locale: segs[0]}, true
	}
	return Route{}, false
}

// Builder produces sitemap entries
type Builder interface {
	Build(ctx context.Context, locale string) ([]types.SitemapURLEntry, error)
	BuildNews(ctx context.Context, locale string) ([]types.SitemapURLEntry, error)
}

// Registrar records a rendered route in the render cache so later invalidations reach it
type Registrar interface {
	Put(ctx context.Context, path string, tags []string) error
}

// Handler serves every sitemap route
type Handler struct {
	builder   Builder
	resolver  *locale.Resolver
	baseURL   string
	registrar Registrar
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewHandler(builder Builder, resolver *locale.Resolver, baseURL string, registrar Registrar, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		builder:   builder,
		resolver:  resolver,
		baseURL:   strings.TrimRight(baseURL, "/"),
		registrar: registrar,
		metrics:   m,
		logger:    logger,
	}
}

// Serve answers a parsed sitemap route. Build failures never surface as an
// error status: the caller gets a valid empty urlset instead.
func (h *Handler) Serve(ctx *fasthttp.RequestCtx, route Route) {
	if route.Variant == VariantIndex {
		h.serveIndex(ctx)
		return
	}

	loc := route.Locale
	if loc == "" {
		loc = h.resolver.Default()
	}
	if !h.resolver.Supports(loc) {
		httputil.JSONMessage(ctx, fasthttp.StatusNotFound, "Sitemap not found")
		return
	}

	reqID := requestid.FromRequest(ctx)
	logger := h.logger.With(zap.String("request_id", reqID), zap.String("locale", loc), zap.String("variant", string(route.Variant)))

	start := time.Now()
	build := h.builder.Build
	if route.Variant == VariantNews {
		build = h.builder.BuildNews
	}
	entries, err := h.safeBuild(build, loc)
	duration := time.Since(start)

	if err != nil {
		logger.Error("Sitemap build failed, serving empty urlset", zap.Error(err))
		h.metrics.RecordSitemapBuild(loc, string(route.Variant), "failed", 0, duration)
		h.write(ctx, EmptyURLSet(), route.Gzip, logger)
		return
	}

	body, err := EncodeURLSet(entries)
	if err != nil {
		logger.Error("Sitemap encoding failed, serving empty urlset", zap.Error(err))
		h.metrics.RecordSitemapBuild(loc, string(route.Variant), "failed", 0, duration)
		h.write(ctx, EmptyURLSet(), route.Gzip, logger)
		return
	}

	h.metrics.RecordSitemapBuild(loc, string(route.Variant), "success", len(entries), duration)
	logger.Debug("Sitemap built", zap.Int("urls", len(entries)), zap.Duration("duration", duration))
	h.register(route.Variant, loc, logger)
	h.write(ctx, body, route.Gzip, logger)
}

// safeBuild runs build and turns a panic into an error
func (h *Handler) safeBuild(build func(context.Context, string) ([]types.SitemapURLEntry, error), loc string) (entries []types.SitemapURLEntry, err error) {
	defer func() {
		if r := recover(); r != nil {
			entries = nil
			err = &panicError{value: r}
		}
	}()
	return build(context.Background(), loc)
}

type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("sitemap build panicked: %v", e.value)
}

func (h *Handler) serveIndex(ctx *fasthttp.RequestCtx) {
	var locations []string
	for _, loc := range h.resolver.Locales() {
		locations = append(locations,
			h.baseURL+"/sitemap/"+loc+".xml",
			h.baseURL+"/news-sitemap/"+loc+".xml")
	}

	body, err := EncodeIndex(locations, time.Now())
	if err != nil {
		h.logger.Error("Sitemap index encoding failed", zap.Error(err))
		httputil.XML(ctx, fasthttp.StatusOK, EmptyURLSet())
		return
	}
	httputil.XML(ctx, fasthttp.StatusOK, body)
}

func (h *Handler) register(variant Variant, loc string, logger *zap.Logger) {
	if h.registrar == nil {
		return
	}

	path, tag := "/sitemap.xml", scope.TagPrefix+"-sitemap"
	if variant == VariantNews {
		path, tag = "/news-sitemap.xml", scope.TagPrefix+"-news-sitemap"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.registrar.Put(ctx, h.resolver.Localize(path, loc), []string{scope.TagPrefix, tag}); err != nil {
		logger.Warn("Failed to register sitemap in render cache", zap.Error(err))
	}
}

func (h *Handler) write(ctx *fasthttp.RequestCtx, body []byte, gz bool, logger *zap.Logger) {
	if !gz {
		httputil.XML(ctx, fasthttp.StatusOK, body)
		return
	}

	compressed, err := Gzip(body)
	if err != nil {
		logger.Error("Sitemap compression failed", zap.Error(err))
		httputil.XML(ctx, fasthttp.StatusOK, body)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("application/gzip")
	ctx.SetBody(compressed)
}
