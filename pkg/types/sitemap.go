package types

import (
	"time"
)

// ChangeFrequency is the sitemap changefreq hint
type ChangeFrequency string

const (
	ChangeDaily   ChangeFrequency = "daily"
	ChangeWeekly  ChangeFrequency = "weekly"
	ChangeMonthly ChangeFrequency = "monthly"
)

// SitemapURLEntry is one <url> row of a sitemap
type SitemapURLEntry struct {
	Location        string
	LastModified    time.Time
	ChangeFrequency ChangeFrequency
	Priority        float64

	// News is set only for news sitemap entries
	News *NewsEntry
}

// NewsEntry carries the <news:news> block of a news sitemap row
type NewsEntry struct {
	PublicationName string
	Language        string
	PublicationDate time.Time
	Title           string
}

// Collection names one of the CMS resource collections enumerated per locale
type Collection string

const (
	CollectionDocuments  Collection = "documents"
	CollectionArticles   Collection = "articles"
	CollectionCategories Collection = "categories"
	CollectionTags       Collection = "tags"
)
