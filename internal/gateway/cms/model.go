package cms

import (
	"time"
)

// Document is a static CMS page
type Document struct {
	Slug string
	Date time.Time
}

// Article is a CMS post with its categories in CMS order
type Article struct {
	Slug       string
	Date       time.Time
	Title      string
	Categories []string
}

// Term is a category or tag
type Term struct {
	Slug string `json:"slug"`
}

type documentNode struct {
	Slug string `json:"slug"`
	Date string `json:"date"`
}

func (n documentNode) toDocument() Document {
	return Document{Slug: n.Slug, Date: ParseDate(n.Date)}
}

type articleNode struct {
	Slug       string `json:"slug"`
	Date       string `json:"date"`
	Title      string `json:"title"`
	Categories struct {
		Nodes []Term `json:"nodes"`
	} `json:"categories"`
}

func (n articleNode) toArticle() Article {
	a := Article{Slug: n.Slug, Date: ParseDate(n.Date), Title: n.Title}
	for _, c := range n.Categories.Nodes {
		if c.Slug != "" {
			a.Categories = append(a.Categories, c.Slug)
		}
	}
	return a
}

// WPGraphQL reports dates in site time without an offset; those are read as UTC
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a CMS date. Unparseable values yield the zero time.
func ParseDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
