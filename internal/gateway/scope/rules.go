package scope

import (
	"github.com/edgecomet/revalidator/pkg/types"
)

// TagPrefix is the namespace of every tag the renderer attaches to CMS data
const TagPrefix = "wordpress"

// Placeholders substituted from the event. A template whose placeholder resolves
// to an empty value is skipped for that event.
const (
	placeholderSlug     = "{slug}"
	placeholderCategory = "{category}"
	placeholderID       = "{id}"
	placeholderSpecial  = "{special}"
)

var placeholders = []string{placeholderSlug, placeholderCategory, placeholderID, placeholderSpecial}

// SpecialPages are documents served by dedicated routes with their own cache tag
var SpecialPages = []string{"about", "contact", "faq", "privacy"}

// PathRule is a canonical route that a rule marks stale before locale fan-out.
// A template with bracketed segments such as [slug] names a dynamic route; the render cache
// matches it against the route each entry was rendered from.
type PathRule struct {
	Template string
	Kind     types.PathKind
}

// Rule is one row of the event to scope table.
// An empty Actions or Resources list matches any value.
type Rule struct {
	Name      string
	Actions   []types.Action
	Resources []types.ResourceType
	Tags      []string
	Paths     []PathRule
}

// Matches reports whether the rule applies to the event
func (r Rule) Matches(ev types.InvalidationEvent) bool {
	return containsAction(r.Actions, ev.Action) && containsResource(r.Resources, ev.ResourceType)
}

func page(template string) PathRule {
	return PathRule{Template: template, Kind: types.PathPage}
}

func layout(template string) PathRule {
	return PathRule{Template: template, Kind: types.PathLayout}
}

func tag(suffix string) string {
	if suffix == "" {
		return TagPrefix
	}
	return TagPrefix + "-" + suffix
}

var contentWrites = []types.Action{types.ActionCreate, types.ActionUpdate, types.ActionPublish}

// DefaultRules is the rule table of a WordPress backed site.
// The last row matches everything and must stay last.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "menu",
			Actions: []types.Action{types.ActionMenuUpdate},
			Tags:    []string{tag(""), tag("menu"), tag("header")},
			Paths:   []PathRule{layout("/")},
		},
		{
			Name:      "article-write",
			Actions:   contentWrites,
			Resources: []types.ResourceType{types.ResourceArticle},
			Tags: []string{
				tag(""), tag("article"), tag("article-" + placeholderSlug),
				tag("category"), tag("category-" + placeholderCategory),
				tag("tag"), tag("tags"), tag("search"),
				tag("sitemap"), tag("news-sitemap"),
			},
			Paths: []PathRule{
				page("/"), page("/[category]/[slug]"), page("/[category]"),
				page("/tag/[tag]"), page("/tags"), page("/search"),
				page("/sitemap.xml"), page("/news-sitemap.xml"),
			},
		},
		{
			Name:      "document-write",
			Actions:   contentWrites,
			Resources: []types.ResourceType{types.ResourceDocument},
			Tags: []string{
				tag(""), tag("page-" + placeholderID), tag("pages"), tag("seo"),
				tag("sitemap"), tag(placeholderSpecial),
			},
			Paths: []PathRule{
				layout("/"), page("/" + placeholderSlug), page("/" + placeholderSpecial), page("/sitemap.xml"),
			},
		},
		{
			Name:    "removal",
			Actions: []types.Action{types.ActionDelete, types.ActionUnpublish},
			Tags: []string{
				tag(""), tag("article"), tag("category"), tag("tag"), tag("author"),
				tag("sitemap"), tag("news-sitemap"),
			},
			Paths: []PathRule{
				layout("/"), page("/"), page("/sitemap.xml"), page("/news-sitemap.xml"),
			},
		},
		{
			Name:    "media",
			Actions: []types.Action{types.ActionMediaUpdate},
			Tags:    []string{tag("")},
			Paths:   []PathRule{layout("/"), page("/")},
		},
		{
			Name:    "theme",
			Actions: []types.Action{types.ActionThemeSettingsUpdate},
			Tags:    []string{tag("")},
			Paths:   []PathRule{layout("/"), page("/")},
		},
		{
			Name:    "user-profile",
			Actions: []types.Action{types.ActionUserProfileUpdate},
			Tags: []string{
				tag("author"), tag("author-" + placeholderID),
				tag("article"), tag("category"), tag("tag"),
			},
			Paths: []PathRule{
				page("/"), page("/author/[id]"), page("/[category]/[slug]"),
				page("/[category]"), page("/tag/[tag]"),
			},
		},
		{
			Name:  "default",
			Tags:  []string{tag("")},
			Paths: []PathRule{page("/"), layout("/")},
		},
	}
}

// FullSiteRule is the operator triggered refresh of every cached page
func FullSiteRule() Rule {
	return Rule{
		Name: "full-site",
		Tags: []string{
			tag(""), tag("menu"), tag("header"), tag("article"), tag("pages"),
			tag("category"), tag("tag"), tag("tags"), tag("author"), tag("search"),
			tag("seo"), tag("sitemap"), tag("news-sitemap"),
		},
		Paths: []PathRule{layout("/")},
	}
}

func containsAction(list []types.Action, a types.Action) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == a {
			return true
		}
	}
	return false
}

func containsResource(list []types.ResourceType, r types.ResourceType) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == r {
			return true
		}
	}
	return false
}
