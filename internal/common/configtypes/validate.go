package configtypes

import (
	"fmt"
	"net/url"
	"time"

	"golang.org/x/text/language"
)

// Validate runs the cross-field checks that struct tags cannot express
func (c *GatewayConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	serverPort, err := ListenPort(c.Server.Listen)
	if err != nil {
		return fmt.Errorf("invalid server.listen: %w", err)
	}

	if c.Metrics.Enabled {
		metricsPort, err := ListenPort(c.Metrics.Listen)
		if err != nil {
			return fmt.Errorf("invalid metrics.listen: %w", err)
		}
		if metricsPort == serverPort {
			return fmt.Errorf("metrics.listen port (%d) must differ from server.listen port (%d)", metricsPort, serverPort)
		}
	}

	base, err := url.Parse(c.Site.BaseURL)
	if err != nil || base.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute URL, got %q", c.Site.BaseURL)
	}
	if base.Path != "" && base.Path != "/" {
		return fmt.Errorf("site.base_url must not contain a path, got %q", c.Site.BaseURL)
	}

	defaultFound := false
	for _, locale := range c.Site.Locales {
		if _, err := language.Parse(locale); err != nil {
			return fmt.Errorf("site.locales: %q is not a valid language tag: %w", locale, err)
		}
		if locale == c.Site.DefaultLocale {
			defaultFound = true
		}
	}
	if !defaultFound {
		return fmt.Errorf("site.default_locale %q must be listed in site.locales", c.Site.DefaultLocale)
	}

	if c.RenderCache.Backend == RenderCacheRedis && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must be specified when render_cache.backend is redis")
	}

	if time.Duration(c.Preview.Timeout) < 0 || time.Duration(c.CMS.Timeout) < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	return nil
}
