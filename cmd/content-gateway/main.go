package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/revalidator/internal/common/clientip"
	"github.com/edgecomet/revalidator/internal/common/config"
	"github.com/edgecomet/revalidator/internal/common/logger"
	"github.com/edgecomet/revalidator/internal/common/metricsserver"
	"github.com/edgecomet/revalidator/internal/gateway/audit"
	"github.com/edgecomet/revalidator/internal/gateway/auth"
	"github.com/edgecomet/revalidator/internal/gateway/cms"
	"github.com/edgecomet/revalidator/internal/gateway/invalidation"
	"github.com/edgecomet/revalidator/internal/gateway/locale"
	"github.com/edgecomet/revalidator/internal/gateway/metrics"
	"github.com/edgecomet/revalidator/internal/gateway/preview"
	"github.com/edgecomet/revalidator/internal/gateway/rendercache"
	"github.com/edgecomet/revalidator/internal/gateway/scope"
	"github.com/edgecomet/revalidator/internal/gateway/server"
	"github.com/edgecomet/revalidator/internal/gateway/sitemap"
)

func main() {
	configPath := flag.String("c", "configs/example/content-gateway.yaml", "path to content gateway configuration file")
	flag.Parse()

	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	initialLogger.Info("Starting Content Gateway",
		zap.String("config_path", *configPath))

	cfg, err := config.LoadGatewayConfig(*configPath, initialLogger.Logger)
	if err != nil {
		initialLogger.Fatal("Failed to load config", zap.Error(err))
	}

	// INFO during startup even when a quieter level is configured
	dynamicLogger, err := logger.NewLoggerWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}
	defer dynamicLogger.Sync()

	zapLogger := dynamicLogger.With(zap.String("gateway_id", cfg.GatewayID))

	resolver, err := locale.NewResolver(cfg.Site.DefaultLocale, cfg.Site.Locales)
	if err != nil {
		zapLogger.Fatal("Invalid locale configuration", zap.Error(err))
	}

	mapper, err := scope.NewMapper(resolver, scope.DefaultRules())
	if err != nil {
		zapLogger.Fatal("Invalid invalidation rules", zap.Error(err))
	}

	gatewayMetrics := metrics.New(cfg.Metrics.Namespace, zapLogger)

	store, err := rendercache.New(cfg.RenderCache, cfg.Redis, cfg.GatewayID, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize render cache", zap.Error(err))
	}
	defer store.Close()

	auditEmitter, err := audit.New(cfg.Revalidate.AuditLog, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize audit log", zap.Error(err))
	}
	defer auditEmitter.Close()

	webhook := invalidation.NewHandler(
		auth.NewAuthenticator(cfg.Revalidate.Secret),
		mapper,
		invalidation.NewExecutor(store, gatewayMetrics, zapLogger),
		invalidation.HandlerOptions{
			Audit:    auditEmitter,
			ClientIP: clientip.NewExtractor(cfg.Server.ClientIPHeaders),
			Metrics:  gatewayMetrics,
			Timeout:  time.Duration(cfg.Server.Timeout),
		},
		zapLogger,
	)

	validator := preview.NewHTTPValidator(cfg.Preview.ValidateURL, time.Duration(cfg.Preview.Timeout), zapLogger)
	previewHandler := preview.NewHandler(cfg.Preview, validator, resolver, gatewayMetrics, zapLogger)

	cmsClient := cms.NewClient(cfg.CMS, gatewayMetrics, zapLogger)
	assembler := sitemap.NewAssembler(cfg.Site, cfg.Sitemap, cmsClient, resolver, zapLogger)
	sitemapHandler := sitemap.NewHandler(assembler, resolver, cfg.Site.BaseURL, store, gatewayMetrics, zapLogger)

	gateway := server.New(cfg.Server, store, gatewayMetrics, zapLogger)
	gateway.RegisterRoutes(server.Handlers{
		Invalidation: webhook,
		Preview:      previewHandler,
		Sitemap:      sitemapHandler,
	})

	metricsServer, err := metricsserver.Start(cfg.Metrics, gatewayMetrics, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to start metrics server", zap.Error(err))
	}

	go func() {
		if err := gateway.ListenAndServe(); err != nil {
			zapLogger.Fatal("Content gateway server error", zap.Error(err))
		}
	}()

	zapLogger.Info("Content gateway started",
		zap.String("listen", cfg.Server.Listen),
		zap.String("render_cache", cfg.RenderCache.Backend),
		zap.Strings("locales", resolver.Locales()))

	dynamicLogger.SwitchToConfiguredLevel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	dynamicLogger.EnsureInfoLevelForShutdown()
	zapLogger.Info("Shutting down Content Gateway...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := gateway.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown server gracefully", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.ShutdownWithContext(shutdownCtx); err != nil {
			zapLogger.Error("Failed to shutdown metrics server gracefully", zap.Error(err))
		}
	}

	zapLogger.Info("Content gateway stopped")
}
