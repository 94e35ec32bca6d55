package cms

import (
	"context"
)

// Page is one cursor page of a collection
type Page[T any] struct {
	Items       []T
	HasNextPage bool
	EndCursor   string
}

// FetchFunc loads the page that starts after cursor. An empty cursor means the first page.
type FetchFunc[T any] func(ctx context.Context, after string) (Page[T], error)

// Pager walks a cursor-paginated collection one page at a time.
// Nothing is fetched until Next is called, and Reset starts the walk over.
// A Pager is not safe for concurrent use.
type Pager[T any] struct {
	fetch    FetchFunc[T]
	maxPages int

	cursor    string
	pages     int
	done      bool
	truncated bool
	err       error
}

// NewPager creates a pager. maxPages <= 0 means no page limit.
func NewPager[T any](fetch FetchFunc[T], maxPages int) *Pager[T] {
	return &Pager[T]{fetch: fetch, maxPages: maxPages}
}

// Next fetches the following page. It returns false once the collection is
// exhausted or a fetch failed; check Err to tell the two apart.
func (p *Pager[T]) Next(ctx context.Context) ([]T, bool) {
	if p.done {
		return nil, false
	}
	if p.maxPages > 0 && p.pages >= p.maxPages {
		p.done = true
		p.truncated = true
		return nil, false
	}
	if err := ctx.Err(); err != nil {
		p.done = true
		p.err = err
		return nil, false
	}

	page, err := p.fetch(ctx, p.cursor)
	if err != nil {
		p.done = true
		p.err = err
		return nil, false
	}
	p.pages++

	// a cursor that does not move would loop forever
	if !page.HasNextPage || page.EndCursor == "" || page.EndCursor == p.cursor {
		p.done = true
	}
	p.cursor = page.EndCursor
	return page.Items, true
}

// Err returns the error that stopped the walk, if any
func (p *Pager[T]) Err() error {
	return p.err
}

// Pages returns how many pages have been fetched since the last Reset
func (p *Pager[T]) Pages() int {
	return p.pages
}

// Truncated reports whether the walk stopped at the page limit
func (p *Pager[T]) Truncated() bool {
	return p.truncated
}

// Reset rewinds the pager to the first page
func (p *Pager[T]) Reset() {
	p.cursor = ""
	p.pages = 0
	p.done = false
	p.truncated = false
	p.err = nil
}

// Collect drains the pager. On a fetch error it returns everything gathered
// before the failure together with the error.
func Collect[T any](ctx context.Context, p *Pager[T]) ([]T, error) {
	var all []T
	for {
		items, ok := p.Next(ctx)
		if !ok {
			break
		}
		all = append(all, items...)
	}
	return all, p.Err()
}
