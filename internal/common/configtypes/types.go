package configtypes

import (
	"github.com/edgecomet/revalidator/pkg/types"
)

// Log level constants
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Log format constants
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
	LogFormatText    = "text"
)

// Render cache backends
const (
	RenderCacheRedis  = "redis"
	RenderCacheMemory = "memory"
)

// GatewayConfig is the root configuration of the content gateway
type GatewayConfig struct {
	GatewayID   string            `yaml:"gateway_id" validate:"required"`
	Server      ServerConfig      `yaml:"server"`
	Site        SiteConfig        `yaml:"site"`
	Revalidate  RevalidateConfig  `yaml:"revalidate"`
	Preview     PreviewConfig     `yaml:"preview"`
	CMS         CMSConfig         `yaml:"cms"`
	RenderCache RenderCacheConfig `yaml:"render_cache"`
	Redis       RedisConfig       `yaml:"redis"`
	Sitemap     SitemapConfig     `yaml:"sitemap"`
	Log         LogConfig         `yaml:"log"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type ServerConfig struct {
	Listen          string         `yaml:"listen" validate:"required"`
	Timeout         types.Duration `yaml:"timeout"`
	MaxBodySize     int            `yaml:"max_body_size" validate:"gte=0"`
	ClientIPHeaders []string       `yaml:"client_ip_headers"`
}

// SiteConfig describes the public site the gateway serves
type SiteConfig struct {
	BaseURL       string   `yaml:"base_url" validate:"required,url"`
	Name          string   `yaml:"name" validate:"required"`
	DefaultLocale string   `yaml:"default_locale" validate:"required"`
	Locales       []string `yaml:"locales" validate:"required,min=1,unique,dive,required"`
}

// RevalidateConfig configures the invalidation webhook.
// An empty Secret is accepted at load time; the webhook then rejects every call with a 500.
type RevalidateConfig struct {
	Secret   string         `yaml:"secret"`
	AuditLog AuditLogConfig `yaml:"audit_log"`
}

// AuditLogConfig configures the one-line-per-webhook audit file
type AuditLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path" validate:"required_if=Enabled true"`
	Template string         `yaml:"template"`
	Rotation RotationConfig `yaml:"rotation"`
}

type PreviewConfig struct {
	ValidateURL  string         `yaml:"validate_url" validate:"required,url"`
	Timeout      types.Duration `yaml:"timeout"`
	CookieName   string         `yaml:"cookie_name"`
	SecureCookie *bool          `yaml:"secure_cookie,omitempty"`
}

// CMSConfig points at the WPGraphQL endpoint used for enumeration
type CMSConfig struct {
	GraphQLURL string         `yaml:"graphql_url" validate:"required,url"`
	AuthToken  string         `yaml:"auth_token"`
	Timeout    types.Duration `yaml:"timeout"`
	PageSize   int            `yaml:"page_size" validate:"gte=0,lte=100"`
	MaxPages   int            `yaml:"max_pages" validate:"gte=0"`
}

type RenderCacheConfig struct {
	Backend    string `yaml:"backend" validate:"omitempty,oneof=redis memory"`
	Channel    string `yaml:"channel"`
	MemorySize int    `yaml:"memory_size" validate:"gte=0"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

// StaticPage is a fixed informational page always listed in the sitemap
type StaticPage struct {
	Path     string  `yaml:"path" validate:"required,startswith=/"`
	Priority float64 `yaml:"priority" validate:"gte=0,lte=1"`
}

type SitemapConfig struct {
	StaticPages        []StaticPage    `yaml:"static_pages" validate:"dive"`
	ExcludedPages      []string        `yaml:"excluded_pages"`
	ExcludedCategories []string        `yaml:"excluded_categories"`
	DefaultCategory    string          `yaml:"default_category"`
	NewsLimit          int             `yaml:"news_limit" validate:"gte=0,lte=1000"`
	NewsWindow         *types.Duration `yaml:"news_window,omitempty"` // nil = default, 0 = no window
	BuildTimeout       types.Duration  `yaml:"build_timeout"`
}

type LogConfig struct {
	Level   string           `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
}

type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format" validate:"omitempty,oneof=json console"`
	Level   string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
}

type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path" validate:"required_if=Enabled true"`
	Format   string         `yaml:"format" validate:"omitempty,oneof=json text"`
	Level    string         `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `yaml:"max_size" validate:"gte=0"`
	MaxAge     int  `yaml:"max_age" validate:"gte=0"`
	MaxBackups int  `yaml:"max_backups" validate:"gte=0"`
	Compress   bool `yaml:"compress"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen" validate:"required_if=Enabled true"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}
