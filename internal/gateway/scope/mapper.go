package scope

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/edgecomet/revalidator/internal/gateway/locale"
	"github.com/edgecomet/revalidator/pkg/types"
)

// Mapper turns a normalized CMS event into the locale expanded set of stale tags and paths
type Mapper struct {
	rules    []Rule
	resolver *locale.Resolver
	special  map[string]bool
}

// NewMapper validates the rule table. The last rule must match every event so
// no event can produce an empty scope.
func NewMapper(resolver *locale.Resolver, rules []Rule) (*Mapper, error) {
	if resolver == nil {
		return nil, fmt.Errorf("locale resolver is required")
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("at least one rule is required")
	}
	last := rules[len(rules)-1]
	if len(last.Actions) != 0 || len(last.Resources) != 0 {
		return nil, fmt.Errorf("last rule %q must be a catch-all", last.Name)
	}
	if len(last.Tags) == 0 && len(last.Paths) == 0 {
		return nil, fmt.Errorf("catch-all rule %q must not be empty", last.Name)
	}

	special := make(map[string]bool, len(SpecialPages))
	for _, p := range SpecialPages {
		special[p] = true
	}
	return &Mapper{rules: rules, resolver: resolver, special: special}, nil
}

// Map returns the scope of ev. It has no side effects and is safe for concurrent use.
func (m *Mapper) Map(ev types.InvalidationEvent) *types.InvalidationScope {
	rule := m.Match(ev)
	return m.build(rule, m.bindings(ev))
}

// Match returns the first rule that applies to ev
func (m *Mapper) Match(ev types.InvalidationEvent) Rule {
	for _, r := range m.rules {
		if r.Matches(ev) {
			return r
		}
	}
	return m.rules[len(m.rules)-1]
}

// FullSite returns the scope used by the operator triggered GET refresh
func (m *Mapper) FullSite() *types.InvalidationScope {
	return m.build(FullSiteRule(), nil)
}

func (m *Mapper) build(rule Rule, values map[string]string) *types.InvalidationScope {
	sc := types.NewInvalidationScope()
	for _, t := range rule.Tags {
		if resolved, ok := substitute(t, values, false); ok {
			sc.AddTag(resolved)
		}
	}
	for _, p := range rule.Paths {
		resolved, ok := substitute(p.Template, values, true)
		if !ok {
			continue
		}
		for _, variant := range m.resolver.Expand(resolved) {
			sc.AddPath(variant, p.Kind)
		}
	}
	return sc
}

func (m *Mapper) bindings(ev types.InvalidationEvent) map[string]string {
	slug := normalizeSlug(ev.Slug)
	values := map[string]string{
		placeholderSlug:     slug,
		placeholderCategory: normalizeSlug(ev.CategorySlug),
	}
	if ev.ResourceID != nil {
		values[placeholderID] = strconv.FormatInt(*ev.ResourceID, 10)
	}
	if m.special[strings.ToLower(slug)] {
		values[placeholderSpecial] = strings.ToLower(slug)
	}
	return values
}

// substitute fills the placeholders of template. The second return is false when
// a placeholder has no value. Path values are escaped so a slug stays one segment.
func substitute(template string, values map[string]string, escape bool) (string, bool) {
	out := template
	for _, key := range placeholders {
		if !strings.Contains(out, key) {
			continue
		}
		value := values[key]
		if value == "" {
			return "", false
		}
		if escape {
			value = url.PathEscape(value)
		}
		out = strings.ReplaceAll(out, key, value)
	}
	return out, true
}

// normalizeSlug decodes percent escapes and trims slashes.
// CMS slugs for non-latin titles arrive percent-encoded.
func normalizeSlug(raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), "/")
	if decoded, err := url.PathUnescape(s); err == nil {
		s = decoded
	}
	return s
}
