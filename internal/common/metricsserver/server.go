package metricsserver

import (
	"fmt"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/revalidator/internal/common/configtypes"
)

// MetricsHandler serves the scrape endpoint
type MetricsHandler interface {
	ServeHTTP(ctx *fasthttp.RequestCtx)
}

// Start binds the metrics listener and serves it in the background.
// Returns nil, nil when metrics are disabled. The listener is bound before
// returning so a port conflict is reported to the caller instead of the log.
func Start(cfg configtypes.MetricsConfig, handler MetricsHandler, logger *zap.Logger) (*fasthttp.Server, error) {
	if !cfg.Enabled {
		logger.Info("Metrics collection disabled")
		return nil, nil
	}

	ln, err := net.Listen("tcp4", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to bind metrics listener %s: %w", cfg.Listen, err)
	}

	server := New(cfg.Path, handler)
	go Serve(server, ln, cfg.Path, logger)
	return server, nil
}

// New creates the metrics server without binding it
func New(path string, handler MetricsHandler) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:            createMetricsHandler(path, handler),
		Name:               "content-gateway-metrics",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		MaxRequestBodySize: 1024,
		TCPKeepalive:       true,
		TCPKeepalivePeriod: 30 * time.Second,
		MaxConnsPerIP:      100,
		MaxRequestsPerConn: 1000,
		Concurrency:        100,
	}
}

// Serve blocks serving ln until the server is shut down
func Serve(server *fasthttp.Server, ln net.Listener, path string, logger *zap.Logger) {
	logger.Info("Metrics server listening",
		zap.String("listen", ln.Addr().String()),
		zap.String("path", path))

	if err := server.Serve(ln); err != nil {
		logger.Error("Metrics server stopped", zap.Error(err))
	}
}

func createMetricsHandler(path string, handler MetricsHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) == path {
			handler.ServeHTTP(ctx)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetBodyString("Not Found")
	}
}
