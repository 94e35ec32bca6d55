package configtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *GatewayConfig {
	return &GatewayConfig{
		GatewayID: "gw-1",
		Server:    ServerConfig{Listen: ":10080"},
		Site: SiteConfig{
			BaseURL:       "https://news.example.com",
			Name:          "Example News",
			DefaultLocale: "en",
			Locales:       []string{"en", "ar", "fr"},
		},
		RenderCache: RenderCacheConfig{Backend: RenderCacheMemory},
		Metrics:     MetricsConfig{Enabled: true, Listen: ":10081"},
	}
}

func TestGatewayConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *GatewayConfig)
		errContains string
	}{
		{name: "valid", mutate: func(c *GatewayConfig) {}},
		{
			name:        "metrics port collides with server",
			mutate:      func(c *GatewayConfig) { c.Metrics.Listen = ":10080" },
			errContains: "must differ",
		},
		{
			name:        "default locale not listed",
			mutate:      func(c *GatewayConfig) { c.Site.DefaultLocale = "de" },
			errContains: "must be listed",
		},
		{
			name:        "invalid locale tag",
			mutate:      func(c *GatewayConfig) { c.Site.Locales = append(c.Site.Locales, "not a locale") },
			errContains: "not a valid language tag",
		},
		{
			name:        "base url with path",
			mutate:      func(c *GatewayConfig) { c.Site.BaseURL = "https://news.example.com/blog" },
			errContains: "must not contain a path",
		},
		{
			name: "redis backend without address",
			mutate: func(c *GatewayConfig) {
				c.RenderCache.Backend = RenderCacheRedis
				c.Redis.Addr = ""
			},
			errContains: "redis.addr",
		},
		{
			name:        "bad server listen",
			mutate:      func(c *GatewayConfig) { c.Server.Listen = "nope" },
			errContains: "server.listen",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.errContains)
			}
		})
	}
}
