package locale

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Resolver expands canonical routes into one variant per supported locale.
// The default locale is served unprefixed; every other locale lives under /{locale}.
type Resolver struct {
	defaultLocale string
	locales       []string
	supported     map[string]bool
}

// NewResolver validates the locale set. Each locale must be a BCP 47 tag and
// the default must be a member of the set.
func NewResolver(defaultLocale string, locales []string) (*Resolver, error) {
	if len(locales) == 0 {
		return nil, fmt.Errorf("at least one locale is required")
	}

	r := &Resolver{
		defaultLocale: defaultLocale,
		supported:     make(map[string]bool, len(locales)),
	}
	for _, loc := range locales {
		if _, err := language.Parse(loc); err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", loc, err)
		}
		if r.supported[loc] {
			continue
		}
		r.supported[loc] = true
		r.locales = append(r.locales, loc)
	}
	if !r.supported[defaultLocale] {
		return nil, fmt.Errorf("default locale %q is not in locales %v", defaultLocale, locales)
	}
	return r, nil
}

// MustNewResolver panics on an invalid locale set. Intended for tests and static setup.
func MustNewResolver(defaultLocale string, locales ...string) *Resolver {
	r, err := NewResolver(defaultLocale, locales)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns the unprefixed locale
func (r *Resolver) Default() string {
	return r.defaultLocale
}

// Locales returns the supported locales in configuration order
func (r *Resolver) Locales() []string {
	out := make([]string, len(r.locales))
	copy(out, r.locales)
	return out
}

// Supports reports whether locale is one of the configured locales
func (r *Resolver) Supports(locale string) bool {
	return r.supported[locale]
}

// Localize returns the variant of a canonical path served for locale.
// The path is taken as canonical: a first segment equal to a locale code is a slug, not a prefix.
func (r *Resolver) Localize(path, locale string) string {
	path = normalize(path)
	if locale == r.defaultLocale || !r.supported[locale] {
		return path
	}
	if path == "/" {
		return "/" + locale
	}
	return "/" + locale + path
}

// Expand returns every locale variant of a canonical path, default locale first.
// The result has exactly one entry per supported locale.
func (r *Resolver) Expand(path string) []string {
	out := make([]string, 0, len(r.locales))
	seen := make(map[string]bool, len(r.locales))
	for _, loc := range r.orderedLocales() {
		p := r.Localize(path, loc)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Canonical strips a non-default locale prefix from a request path and normalizes slashes
func (r *Resolver) Canonical(path string) string {
	path = normalize(path)

	first, rest := path[1:], ""
	if i := strings.IndexByte(first, '/'); i >= 0 {
		first, rest = first[:i], first[i:]
	}
	if first != "" && first != r.defaultLocale && r.supported[first] {
		if rest == "" {
			return "/"
		}
		return rest
	}
	return path
}

// Split separates a request path into its locale and canonical path
func (r *Resolver) Split(path string) (string, string) {
	canonical := r.Canonical(path)
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if trimmed != r.defaultLocale && r.supported[trimmed] {
		return trimmed, canonical
	}
	return r.defaultLocale, canonical
}

// Tag returns the parsed language tag of a supported locale
func (r *Resolver) Tag(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.Und
	}
	return tag
}

// normalize adds the leading slash and drops trailing ones
func normalize(path string) string {
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

func (r *Resolver) orderedLocales() []string {
	ordered := make([]string, 0, len(r.locales))
	ordered = append(ordered, r.defaultLocale)
	for _, loc := range r.locales {
		if loc != r.defaultLocale {
			ordered = append(ordered, loc)
		}
	}
	return ordered
}
