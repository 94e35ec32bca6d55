package sitemap

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edgecomet/revalidator/internal/common/configtypes"
	"github.com/edgecomet/revalidator/internal/gateway/cms"
	"github.com/edgecomet/revalidator/internal/gateway/locale"
	"github.com/edgecomet/revalidator/pkg/types"
)

const (
	homePriority     = 1.0
	articlePriority  = 0.9
	categoryPriority = 0.7
	documentPriority = 0.6
	tagPriority      = 0.5

	defaultBuildTimeout = 60 * time.Second
)

// Source enumerates the public content of one locale
type Source interface {
	Documents(locale string) *cms.Pager[cms.Document]
	Articles(locale string) *cms.Pager[cms.Article]
	Categories(locale string) *cms.Pager[cms.Term]
	Tags(locale string) *cms.Pager[cms.Term]
}

// Content is everything the CMS returned for one locale
type Content struct {
	Documents  []cms.Document
	Articles   []cms.Article
	Categories []cms.Term
	Tags       []cms.Term
}

// Assembler turns CMS content into sitemap entries
type Assembler struct {
	source   Source
	resolver *locale.Resolver
	baseURL  string
	siteName string
	cfg      configtypes.SitemapConfig

	excludedPages      map[string]bool
	excludedCategories map[string]bool

	now    func() time.Time
	logger *zap.Logger
}

func NewAssembler(site configtypes.SiteConfig, cfg configtypes.SitemapConfig, source Source, resolver *locale.Resolver, logger *zap.Logger) *Assembler {
	a := &Assembler{
		source:             source,
		resolver:           resolver,
		baseURL:            strings.TrimRight(site.BaseURL, "/"),
		siteName:           site.Name,
		cfg:                cfg,
		excludedPages:      toSet(cfg.ExcludedPages),
		excludedCategories: toSet(cfg.ExcludedCategories),
		now:                time.Now,
		logger:             logger,
	}
	if a.cfg.DefaultCategory == "" {
		a.cfg.DefaultCategory = "news"
	}
	if a.cfg.BuildTimeout <= 0 {
		a.cfg.BuildTimeout = types.Duration(defaultBuildTimeout)
	}
	return a
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(strings.Trim(item, "/"))] = true
	}
	return set
}

// Build returns the entries of the full sitemap of locale.
// A collection whose fetch fails contributes what it got before the failure.
// An error means the build as a whole could not complete.
func (a *Assembler) Build(ctx context.Context, loc string) ([]types.SitemapURLEntry, error) {
	content, err := a.Collect(ctx, loc)
	if err != nil {
		return nil, err
	}
	return a.Entries(loc, content), nil
}

// Collect fetches the four collections of locale concurrently
func (a *Assembler) Collect(ctx context.Context, loc string) (*Content, error) {
	if !a.resolver.Supports(loc) {
		return nil, fmt.Errorf("unsupported locale %q", loc)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.BuildTimeout))
	defer cancel()

	content := &Content{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return collect(gctx, a, loc, types.CollectionDocuments, a.source.Documents, &content.Documents)
	})
	g.Go(func() error {
		return collect(gctx, a, loc, types.CollectionArticles, a.source.Articles, &content.Articles)
	})
	g.Go(func() error {
		return collect(gctx, a, loc, types.CollectionCategories, a.source.Categories, &content.Categories)
	})
	g.Go(func() error {
		return collect(gctx, a, loc, types.CollectionTags, a.source.Tags, &content.Tags)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sitemap build for %s interrupted: %w", loc, err)
	}
	return content, nil
}

// collect drains one collection into dst. Fetch errors degrade to a partial list;
// only a panic fails the whole build.
func collect[T any](ctx context.Context, a *Assembler, loc string, collection types.Collection, pager func(string) *cms.Pager[T], dst *[]T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Sitemap collector panicked",
				zap.String("locale", loc),
				zap.String("collection", string(collection)),
				zap.Any("panic", r))
			err = fmt.Errorf("%s collector panicked: %v", collection, r)
		}
	}()

	p := pager(loc)
	items, fetchErr := cms.Collect(ctx, p)
	if fetchErr != nil {
		a.logger.Warn("Sitemap collection incomplete",
			zap.String("locale", loc),
			zap.String("collection", string(collection)),
			zap.Int("items", len(items)),
			zap.Error(fetchErr))
	}
	if p.Truncated() {
		a.logger.Warn("Sitemap collection hit the page limit",
			zap.String("locale", loc),
			zap.String("collection", string(collection)),
			zap.Int("pages", p.Pages()))
	}
	*dst = items
	return nil
}

// Entries lays out the sitemap rows for already fetched content
func (a *Assembler) Entries(loc string, content *Content) []types.SitemapURLEntry {
	now := a.now().UTC()
	b := newEntryBuilder()

	b.add(types.SitemapURLEntry{
		Location:        a.location(loc, "/"),
		LastModified:    now,
		ChangeFrequency: types.ChangeDaily,
		Priority:        homePriority,
	})

	for _, page := range a.cfg.StaticPages {
		b.add(types.SitemapURLEntry{
			Location:        a.location(loc, page.Path),
			LastModified:    now,
			ChangeFrequency: types.ChangeMonthly,
			Priority:        page.Priority,
		})
	}

	for _, article := range content.Articles {
		if article.Slug == "" {
			continue
		}
		b.add(types.SitemapURLEntry{
			Location:        a.location(loc, a.ArticlePath(article)),
			LastModified:    orNow(article.Date, now),
			ChangeFrequency: types.ChangeWeekly,
			Priority:        articlePriority,
		})
	}

	for _, doc := range content.Documents {
		if doc.Slug == "" || a.excludedPages[strings.ToLower(doc.Slug)] {
			continue
		}
		b.add(types.SitemapURLEntry{
			Location:        a.location(loc, "/"+url.PathEscape(doc.Slug)),
			LastModified:    orNow(doc.Date, now),
			ChangeFrequency: types.ChangeMonthly,
			Priority:        documentPriority,
		})
	}

	for _, category := range content.Categories {
		if category.Slug == "" || a.excludedCategories[strings.ToLower(category.Slug)] {
			continue
		}
		b.add(types.SitemapURLEntry{
			Location:        a.location(loc, "/"+url.PathEscape(category.Slug)),
			LastModified:    now,
			ChangeFrequency: types.ChangeDaily,
			Priority:        categoryPriority,
		})
	}

	for _, tag := range content.Tags {
		if tag.Slug == "" {
			continue
		}
		b.add(types.SitemapURLEntry{
			Location:        a.location(loc, "/tag/"+url.PathEscape(tag.Slug)),
			LastModified:    now,
			ChangeFrequency: types.ChangeWeekly,
			Priority:        tagPriority,
		})
	}

	return b.entries
}

// BuildNews returns the news sitemap entries of locale: the most recent articles
// published inside the configured window, newest first.
func (a *Assembler) BuildNews(ctx context.Context, loc string) ([]types.SitemapURLEntry, error) {
	if !a.resolver.Supports(loc) {
		return nil, fmt.Errorf("unsupported locale %q", loc)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.BuildTimeout))
	defer cancel()

	var articles []cms.Article
	if err := collect(ctx, a, loc, types.CollectionArticles, a.source.Articles, &articles); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("news sitemap build for %s interrupted: %w", loc, err)
	}
	return a.NewsEntries(loc, articles), nil
}

// NewsEntries filters, orders and limits articles for the news sitemap
func (a *Assembler) NewsEntries(loc string, articles []cms.Article) []types.SitemapURLEntry {
	now := a.now().UTC()
	var cutoff time.Time
	if a.cfg.NewsWindow != nil && *a.cfg.NewsWindow > 0 {
		cutoff = now.Add(-time.Duration(*a.cfg.NewsWindow))
	}

	recent := make([]cms.Article, 0, len(articles))
	for _, article := range articles {
		if article.Slug == "" || article.Date.IsZero() {
			continue
		}
		if !cutoff.IsZero() && article.Date.Before(cutoff) {
			continue
		}
		recent = append(recent, article)
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Date.After(recent[j].Date)
	})

	language := newsLanguage(a.resolver.Tag(loc))
	b := newEntryBuilder()
	for _, article := range recent {
		if a.cfg.NewsLimit > 0 && len(b.entries) >= a.cfg.NewsLimit {
			break
		}
		b.add(types.SitemapURLEntry{
			Location:        a.location(loc, a.ArticlePath(article)),
			LastModified:    article.Date,
			ChangeFrequency: types.ChangeDaily,
			Priority:        articlePriority,
			News: &types.NewsEntry{
				PublicationName: a.siteName,
				Language:        language,
				PublicationDate: article.Date,
				Title:           FlattenTitle(article.Title),
			},
		})
	}
	return b.entries
}

// ArticlePath is /{category}/{slug}, using the first category that is not excluded
func (a *Assembler) ArticlePath(article cms.Article) string {
	category := a.cfg.DefaultCategory
	for _, c := range article.Categories {
		if c != "" && !a.excludedCategories[strings.ToLower(c)] {
			category = c
			break
		}
	}
	return "/" + url.PathEscape(category) + "/" + url.PathEscape(article.Slug)
}

func (a *Assembler) location(loc, path string) string {
	return a.baseURL + a.resolver.Localize(path, loc)
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}

type entryBuilder struct {
	seen    map[string]bool
	entries []types.SitemapURLEntry
}

func newEntryBuilder() *entryBuilder {
	return &entryBuilder{seen: make(map[string]bool)}
}

// add keeps the first entry for each location
func (b *entryBuilder) add(e types.SitemapURLEntry) {
	if b.seen[e.Location] {
		return
	}
	b.seen[e.Location] = true
	b.entries = append(b.entries, e)
}
