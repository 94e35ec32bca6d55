package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edgecomet/revalidator/internal/common/configtypes"
	"github.com/edgecomet/revalidator/internal/common/yamlutil"
)

// LoadGatewayConfig reads, expands, decodes, defaults and validates the gateway configuration
func LoadGatewayConfig(path string, logger *zap.Logger) (*configtypes.GatewayConfig, error) {
	logger.Info("Loading gateway configuration", zap.String("path", path))

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParseGatewayConfig(data)
	if err != nil {
		return nil, err
	}

	if cfg.Revalidate.Secret == "" {
		logger.Warn("revalidate.secret is empty, webhook calls will be rejected")
	}

	logger.Info("Gateway configuration loaded successfully",
		zap.String("gateway_id", cfg.GatewayID),
		zap.String("base_url", cfg.Site.BaseURL),
		zap.Strings("locales", cfg.Site.Locales),
		zap.String("render_cache", cfg.RenderCache.Backend))

	return cfg, nil
}

// ParseGatewayConfig decodes raw YAML into a validated configuration
func ParseGatewayConfig(data []byte) (*configtypes.GatewayConfig, error) {
	var cfg configtypes.GatewayConfig
	if err := yamlutil.UnmarshalStrict(yamlutil.ExpandEnv(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	ApplyDefaults(&cfg)

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
