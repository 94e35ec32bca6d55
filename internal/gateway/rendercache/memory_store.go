package rendercache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/edgecomet/revalidator/pkg/types"
)

// MemoryStore is a bounded in-process index for single node deployments and tests.
// Least recently stored routes are evicted first.
type MemoryStore struct {
	entries *lru.Cache[string, *Entry]

	// mu guards the tag index and the mutable fields of cached entries.
	// It is never held while calling into the LRU to avoid lock inversion.
	mu    sync.Mutex
	byTag map[string]map[string]struct{}

	logger *zap.Logger
}

func NewMemoryStore(size int, logger *zap.Logger) (*MemoryStore, error) {
	if size <= 0 {
		return nil, fmt.Errorf("memory render cache size must be positive, got %d", size)
	}
	cache, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU: %w", err)
	}
	return &MemoryStore{
		entries: cache,
		byTag:   make(map[string]map[string]struct{}),
		logger:  logger,
	}, nil
}

func (s *MemoryStore) Put(ctx context.Context, path string, tags []string) error {
	return s.PutRoute(ctx, path, path, tags)
}

func (s *MemoryStore) PutRoute(_ context.Context, path, route string, tags []string) error {
	entry := &Entry{
		Path:     path,
		Route:    route,
		Tags:     append([]string(nil), tags...),
		StoredAt: time.Now().UTC(),
	}
	s.entries.Add(path, entry)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tag := range tags {
		paths, ok := s.byTag[tag]
		if !ok {
			paths = make(map[string]struct{})
			s.byTag[tag] = paths
		}
		paths[path] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, path string) (Entry, bool, error) {
	entry, ok := s.entries.Peek(path)
	if !ok {
		return Entry{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := *entry
	snapshot.Tags = append([]string(nil), entry.Tags...)
	return snapshot, true, nil
}

func (s *MemoryStore) InvalidateTag(_ context.Context, tag string) error {
	s.mu.Lock()
	paths := make([]string, 0, len(s.byTag[tag]))
	for p := range s.byTag[tag] {
		paths = append(paths, p)
	}
	s.mu.Unlock()

	marked := 0
	var gone []string
	for _, p := range paths {
		entry, ok := s.entries.Peek(p)
		if !ok || !hasTag(entry, tag) {
			gone = append(gone, p)
			continue
		}
		s.markStale(entry)
		marked++
	}

	// evicted or re-tagged routes are pruned from the index lazily
	if len(gone) > 0 {
		s.mu.Lock()
		for _, p := range gone {
			delete(s.byTag[tag], p)
		}
		if len(s.byTag[tag]) == 0 {
			delete(s.byTag, tag)
		}
		s.mu.Unlock()
	}

	s.logger.Debug("Tag invalidated", zap.String("tag", tag), zap.Int("entries", marked))
	return nil
}

func (s *MemoryStore) InvalidatePath(_ context.Context, path string, kind types.PathKind) error {
	marked := 0
	if kind == types.PathPage && !IsPattern(path) {
		if entry, ok := s.entries.Peek(path); ok {
			s.markStale(entry)
			marked++
		}
	} else {
		for _, cached := range s.entries.Keys() {
			entry, ok := s.entries.Peek(cached)
			if !ok || !Covers(path, kind, entry) {
				continue
			}
			s.markStale(entry)
			marked++
		}
	}

	s.logger.Debug("Path invalidated",
		zap.String("path", path),
		zap.String("kind", string(kind)),
		zap.Int("entries", marked))
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	s.entries.Purge()
	return nil
}

// Len returns the number of cached routes
func (s *MemoryStore) Len() int {
	return s.entries.Len()
}

func (s *MemoryStore) markStale(entry *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !entry.Stale {
		entry.Stale = true
		entry.StaleAt = time.Now().UTC()
	}
}

func hasTag(entry *Entry, tag string) bool {
	for _, t := range entry.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
