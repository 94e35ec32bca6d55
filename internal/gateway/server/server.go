package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/revalidator/internal/common/configtypes"
	"github.com/edgecomet/revalidator/internal/common/httputil"
	"github.com/edgecomet/revalidator/internal/common/requestid"
	"github.com/edgecomet/revalidator/internal/gateway/metrics"
	"github.com/edgecomet/revalidator/internal/gateway/sitemap"
)

// Path constants for the public endpoints
const (
	PathHealth      = "/health"
	PathReady       = "/ready"
	PathRevalidate  = "/api/revalidate"
	PathPreview     = "/api/preview"
	PathPreviewExit = "/api/preview/exit"
)

// route label used for metrics on unmatched and sitemap requests
const (
	routeSitemap  = "sitemap"
	routeNotFound = "not_found"
)

// Pinger reports whether a backend is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// SitemapServer answers parsed sitemap routes
type SitemapServer interface {
	Serve(ctx *fasthttp.RequestCtx, route sitemap.Route)
}

// Server is the public HTTP front of the content gateway
type Server struct {
	routes  map[string]map[string]fasthttp.RequestHandler // method -> path -> handler
	sitemap SitemapServer
	ready   Pinger

	cfg     configtypes.ServerConfig
	server  *fasthttp.Server
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func New(cfg configtypes.ServerConfig, ready Pinger, m *metrics.Metrics, logger *zap.Logger) *Server {
	s := &Server{
		routes:  make(map[string]map[string]fasthttp.RequestHandler),
		ready:   ready,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
	s.RegisterHandler(fasthttp.MethodGet, PathHealth, s.handleHealth)
	s.RegisterHandler(fasthttp.MethodGet, PathReady, s.handleReady)
	return s
}

// RegisterHandler registers a handler for a specific method and path
func (s *Server) RegisterHandler(method, path string, handler fasthttp.RequestHandler) {
	if s.routes[method] == nil {
		s.routes[method] = make(map[string]fasthttp.RequestHandler)
	}

	if _, exists := s.routes[method][path]; exists {
		s.logger.Warn("Overwriting existing handler registration",
			zap.String("method", method),
			zap.String("path", path))
	}

	s.routes[method][path] = handler
	s.logger.Debug("Registered handler",
		zap.String("method", method),
		zap.String("path", path))
}

// RegisterSitemaps serves every path sitemap.ParseRoute recognizes on GET
func (s *Server) RegisterSitemaps(h SitemapServer) {
	s.sitemap = h
}

// Handler returns the FastHTTP request handler
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		route := routeNotFound
		defer func() {
			if r := recover(); r != nil {
				ctx.Response.Reset()
				id := requestid.FromRequest(ctx)
				ctx.Response.Header.Set(requestid.Header, id)
				s.logger.Error("Handler panicked",
					zap.String("request_id", id),
					zap.String("path", string(ctx.Path())),
					zap.Any("panic", r))
				httputil.JSONMessage(ctx, fasthttp.StatusInternalServerError, "Internal server error")
			}
			s.metrics.RecordResponse(route, ctx.Response.StatusCode())
		}()

		requestid.FromRequest(ctx)

		method := string(ctx.Method())
		if method == fasthttp.MethodHead {
			method = fasthttp.MethodGet
		}
		path := string(ctx.Path())

		if methodRoutes, ok := s.routes[method]; ok {
			if handler, ok := methodRoutes[path]; ok {
				route = path
				handler(ctx)
				return
			}
		}

		// 405 when the path exists under another method
		for _, methodRoutes := range s.routes {
			if _, ok := methodRoutes[path]; ok {
				route = path
				httputil.JSONMessage(ctx, fasthttp.StatusMethodNotAllowed, "Method not allowed")
				return
			}
		}

		if s.sitemap != nil {
			if sr, ok := sitemap.ParseRoute(path); ok {
				route = routeSitemap
				if method != fasthttp.MethodGet {
					httputil.JSONMessage(ctx, fasthttp.StatusMethodNotAllowed, "Method not allowed")
					return
				}
				s.sitemap.Serve(ctx, sr)
				return
			}
		}

		s.logger.Debug("Not found", zap.String("path", path))
		httputil.JSONMessage(ctx, fasthttp.StatusNotFound, "Endpoint not found")
	}
}

// Serve blocks serving ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.server = &fasthttp.Server{
		Handler:            s.Handler(),
		Name:               "content-gateway",
		ReadTimeout:        time.Duration(s.cfg.Timeout),
		WriteTimeout:       time.Duration(s.cfg.Timeout),
		MaxRequestBodySize: s.cfg.MaxBodySize,
		CloseOnShutdown:    true,
	}

	s.logger.Info("Content gateway listening", zap.String("address", ln.Addr().String()))
	return s.server.Serve(ln)
}

// ListenAndServe binds the configured listen address and serves it
func (s *Server) ListenAndServe() error {
	address, err := configtypes.NormalizeListen(s.cfg.Listen)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp4", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return s.Serve(ln)
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Shutting down content gateway")
	return s.server.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Content-Type", "text/plain")
	ctx.Response.SetStatusCode(fasthttp.StatusOK)
	ctx.Response.SetBodyString("OK")
}

func (s *Server) handleReady(ctx *fasthttp.RequestCtx) {
	if s.ready != nil {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(pingCtx); err != nil {
			s.logger.Warn("Render cache not available", zap.Error(err))
			httputil.JSONMessage(ctx, fasthttp.StatusServiceUnavailable, "Render cache not available")
			return
		}
	}

	ctx.Response.Header.Set("Content-Type", "text/plain")
	ctx.Response.SetStatusCode(fasthttp.StatusOK)
	ctx.Response.SetBodyString("OK")
}
