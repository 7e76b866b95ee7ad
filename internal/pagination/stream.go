package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrStale is returned when a page arrives after the stream was invalidated.
// The page is dropped.
var ErrStale = errors.New("stale page discarded")

// FetchFunc loads the page identified by cursor.
type FetchFunc[T any] func(ctx context.Context, cursor Cursor) ([]T, error)

// Stream accumulates the pages of one listing. Each stream owns its cursor;
// two streams never share state even when they read the same endpoint.
//
// The lock is not held while a page is being fetched. A response belonging
// to a generation older than the current one is discarded.
type Stream[T any] struct {
	key   string
	limit int
	fetch FetchFunc[T]

	mu         sync.Mutex
	pages      [][]T
	cursor     Cursor
	hasNext    bool
	generation uint64
	fetching   bool
	// inflight is closed when the running fetch settles or is invalidated.
	inflight chan struct{}
}

// NewStream creates a stream positioned at the first page.
func NewStream[T any](key string, limit int, fetch FetchFunc[T]) *Stream[T] {
	first := First(limit)
	return &Stream[T]{
		key:     key,
		limit:   first.Limit,
		fetch:   fetch,
		cursor:  first,
		hasNext: true,
	}
}

// Key returns the cache key of the stream.
func (s *Stream[T]) Key() string { return s.key }

// FetchNextPage loads the page under the cursor, appends it and returns it.
// Calling it with no next page, or while another fetch on the same stream is
// in flight, is a no-op returning no items.
func (s *Stream[T]) FetchNextPage(ctx context.Context) ([]T, error) {
	s.mu.Lock()
	if !s.hasNext || s.fetching {
		s.mu.Unlock()
		return nil, nil
	}
	s.fetching = true
	done := make(chan struct{})
	s.inflight = done
	cursor := s.cursor
	generation := s.generation
	s.mu.Unlock()

	items, err := s.fetch(ctx, cursor)

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		// Invalidate already reset the fetching flag and closed done.
		return nil, ErrStale
	}
	s.fetching = false
	s.inflight = nil
	close(done)
	if err != nil {
		return nil, fmt.Errorf("fetch %s page %d: %w", s.key, cursor.Page, err)
	}

	s.pages = append(s.pages, items)
	next, ok := cursor.Next(len(items))
	s.hasNext = ok
	if ok {
		s.cursor = next
	}
	return append([]T(nil), items...), nil
}

// FetchAll keeps fetching until the listing is exhausted. A fetch already
// in flight on the stream is waited for rather than duplicated.
func (s *Stream[T]) FetchAll(ctx context.Context) ([]T, error) {
	for s.HasNextPage() {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		if _, err := s.FetchNextPage(ctx); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return s.Items(), nil
}

// wait blocks until no fetch is in flight or ctx is done.
func (s *Stream[T]) wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.inflight
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HasNextPage reports whether another page may exist.
func (s *Stream[T]) HasNextPage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasNext
}

// Items returns the loaded pages flattened in request order.
func (s *Stream[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.pages {
		n += len(p)
	}
	out := make([]T, 0, n)
	for _, p := range s.pages {
		out = append(out, p...)
	}
	return out
}

// Pages returns a copy of the loaded pages.
func (s *Stream[T]) Pages() [][]T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]T, len(s.pages))
	for i, p := range s.pages {
		out[i] = append([]T(nil), p...)
	}
	return out
}

// PageCount returns how many pages have been loaded.
func (s *Stream[T]) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// Cursor returns the cursor of the next page to fetch.
func (s *Stream[T]) Cursor() Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Update rewrites loaded items in place. It is used for local patches of the
// displayed page cache and does not move the cursor.
func (s *Stream[T]) Update(fn func(item T) T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pages {
		for i := range p {
			p[i] = fn(p[i])
		}
	}
}

// Invalidate drops every loaded page and rewinds to the first page.
// In-flight fetches are not aborted but their responses are discarded.
func (s *Stream[T]) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.pages = nil
	s.cursor = First(s.limit)
	s.hasNext = true
	s.fetching = false
	if s.inflight != nil {
		close(s.inflight)
		s.inflight = nil
	}
}
