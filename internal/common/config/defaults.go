package config

import (
	"time"

	"github.com/edgecomet/revalidator/internal/common/configtypes"
	"github.com/edgecomet/revalidator/pkg/types"
)

const (
	DefaultServerTimeout     = 30 * time.Second
	DefaultMaxBodySize       = 1 << 20
	DefaultPreviewTimeout    = 5 * time.Second
	DefaultCMSTimeout        = 10 * time.Second
	DefaultPageSize          = 100
	DefaultMaxPages          = 500
	DefaultNewsLimit         = 1000
	DefaultNewsWindow        = 48 * time.Hour
	DefaultBuildTimeout      = 60 * time.Second
	DefaultDraftCookie       = "__draft_mode"
	DefaultInvalidateChannel = "rendercache:invalidate"
	DefaultMemoryCacheSize   = 10000
	DefaultMetricsPath       = "/metrics"
	DefaultMetricsNamespace  = "revalidator"
	DefaultArticleCategory   = "news"
)

// Pages served by dedicated routes; generic document entries for them are skipped.
var defaultExcludedPages = []string{"home", "about", "contact", "faq", "privacy", "search", "tags", "sitemap"}

// System categories that never get a public listing page.
var defaultExcludedCategories = []string{"uncategorized", "featured", "breaking", "slider", "system"}

var defaultStaticPages = []configtypes.StaticPage{
	{Path: "/about", Priority: 0.8},
	{Path: "/contact", Priority: 0.7},
	{Path: "/faq", Priority: 0.7},
	{Path: "/privacy", Priority: 0.7},
}

// ApplyDefaults fills zero values with the gateway defaults
func ApplyDefaults(cfg *configtypes.GatewayConfig) {
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = types.Duration(DefaultServerTimeout)
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultMaxBodySize
	}

	if cfg.Preview.Timeout == 0 {
		cfg.Preview.Timeout = types.Duration(DefaultPreviewTimeout)
	}
	if cfg.Preview.CookieName == "" {
		cfg.Preview.CookieName = DefaultDraftCookie
	}
	if cfg.Preview.SecureCookie == nil {
		secure := true
		cfg.Preview.SecureCookie = &secure
	}

	if cfg.CMS.Timeout == 0 {
		cfg.CMS.Timeout = types.Duration(DefaultCMSTimeout)
	}
	if cfg.CMS.PageSize == 0 {
		cfg.CMS.PageSize = DefaultPageSize
	}
	if cfg.CMS.MaxPages == 0 {
		cfg.CMS.MaxPages = DefaultMaxPages
	}

	if cfg.RenderCache.Backend == "" {
		cfg.RenderCache.Backend = configtypes.RenderCacheRedis
	}
	if cfg.RenderCache.Channel == "" {
		cfg.RenderCache.Channel = DefaultInvalidateChannel
	}
	if cfg.RenderCache.MemorySize == 0 {
		cfg.RenderCache.MemorySize = DefaultMemoryCacheSize
	}

	if cfg.Sitemap.StaticPages == nil {
		cfg.Sitemap.StaticPages = append([]configtypes.StaticPage(nil), defaultStaticPages...)
	}
	if cfg.Sitemap.ExcludedPages == nil {
		cfg.Sitemap.ExcludedPages = append([]string(nil), defaultExcludedPages...)
	}
	if cfg.Sitemap.ExcludedCategories == nil {
		cfg.Sitemap.ExcludedCategories = append([]string(nil), defaultExcludedCategories...)
	}
	if cfg.Sitemap.DefaultCategory == "" {
		cfg.Sitemap.DefaultCategory = DefaultArticleCategory
	}
	if cfg.Sitemap.NewsLimit == 0 {
		cfg.Sitemap.NewsLimit = DefaultNewsLimit
	}
	if cfg.Sitemap.NewsWindow == nil {
		window := types.Duration(DefaultNewsWindow)
		cfg.Sitemap.NewsWindow = &window
	}
	if cfg.Sitemap.BuildTimeout == 0 {
		cfg.Sitemap.BuildTimeout = types.Duration(DefaultBuildTimeout)
	}

	// If both outputs are disabled, enable console by default
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = configtypes.LogFormatConsole
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = configtypes.LogFormatText
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
