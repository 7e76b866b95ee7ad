// Package categories caches the category tree of an account and routes
// every change to it through the backend.
package categories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/finance-ledger/internal/apiclient"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultStaleTime is how long a fetched tree is served from cache.
const DefaultStaleTime = 5 * time.Minute

// API is the category part of the backend.
type API interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	InsertCategory(ctx context.Context, label string) (domain.Category, error)
	InsertSubcategory(ctx context.Context, categoryID domain.ID, label string) (domain.Subcategory, error)
	UpdateCategory(ctx context.Context, id domain.ID, label string) error
	UpdateSubcategory(ctx context.Context, id domain.ID, label string) error
	DeleteCategory(ctx context.Context, id domain.ID) error
	DeleteSubcategory(ctx context.Context, id domain.ID) error
}

var _ API = (*apiclient.Client)(nil)

type entry struct {
	tree    []domain.Category
	fetched time.Time
}

// Store is the shared, read-mostly category cache of one account schema.
// Mutations never patch the cache: they call the backend and invalidate.
type Store struct {
	api       API
	key       string
	staleTime time.Duration
	now       func() time.Time
	log       zerolog.Logger

	group singleflight.Group

	mu         sync.Mutex
	entry      *entry
	generation uint64
}

// NewStore creates a store for schema. A non-positive staleTime falls back
// to DefaultStaleTime.
func NewStore(api API, schema string, staleTime time.Duration, log zerolog.Logger) *Store {
	if staleTime <= 0 {
		staleTime = DefaultStaleTime
	}
	return &Store{
		api:       api,
		key:       "categories:" + schema,
		staleTime: staleTime,
		now:       time.Now,
		log:       log,
	}
}

// List returns the category tree ordered by label. Concurrent callers
// share a single backend request.
func (s *Store) List(ctx context.Context) ([]domain.Category, error) {
	s.mu.Lock()
	if s.entry != nil && s.now().Sub(s.entry.fetched) < s.staleTime {
		tree := cloneTree(s.entry.tree)
		s.mu.Unlock()
		return tree, nil
	}
	generation := s.generation
	s.mu.Unlock()

	v, err, _ := s.group.Do(fmt.Sprintf("%s#%d", s.key, generation), func() (any, error) {
		tree, err := s.api.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		sortByLabel(tree)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation == generation {
			s.entry = &entry{tree: tree, fetched: s.now()}
		} else {
			s.log.Debug().Str("cache", s.key).Msg("Dropping category list fetched before invalidation")
		}
		return tree, nil
	})
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return cloneTree(v.([]domain.Category)), nil
}

// Invalidate forces the next List to refetch.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = nil
	s.generation++
}

// Category returns the category with id.
func (s *Store) Category(ctx context.Context, id domain.ID) (domain.Category, error) {
	tree, err := s.List(ctx)
	if err != nil {
		return domain.Category{}, err
	}
	c, ok := domain.FindCategory(tree, id)
	if !ok {
		return domain.Category{}, fmt.Errorf("%w: %s", ErrUnknownCategory, id)
	}
	return c, nil
}

// Subcategories returns the subcategories of the category with id.
func (s *Store) Subcategories(ctx context.Context, categoryID domain.ID) ([]domain.Subcategory, error) {
	c, err := s.Category(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Subcategory, len(c.Subcategories))
	for i, sub := range c.Subcategories {
		sub.CategoryID = c.Value
		out[i] = sub
	}
	return out, nil
}

// Validator returns a validator over the current tree.
func (s *Store) Validator(ctx context.Context) (*Validator, error) {
	tree, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return NewValidator(tree), nil
}

// AddCategory creates a category.
func (s *Store) AddCategory(ctx context.Context, label string) (domain.Category, error) {
	if strings.TrimSpace(label) == "" {
		return domain.Category{}, ErrEmptyLabel
	}
	v, err := s.Validator(ctx)
	if err != nil {
		return domain.Category{}, err
	}
	if err := v.ValidateNewCategory(label, ""); err != nil {
		return domain.Category{}, err
	}
	c, err := s.api.InsertCategory(ctx, strings.TrimSpace(label))
	if err != nil {
		return domain.Category{}, fmt.Errorf("AddCategory: %w", err)
	}
	s.Invalidate()
	return c, nil
}

// AddSubcategory creates a subcategory under categoryID.
func (s *Store) AddSubcategory(ctx context.Context, categoryID domain.ID, label string) (domain.Subcategory, error) {
	if strings.TrimSpace(label) == "" {
		return domain.Subcategory{}, ErrEmptyLabel
	}
	if categoryID.IsZero() {
		return domain.Subcategory{}, fmt.Errorf("%w: no category selected", ErrUnknownCategory)
	}
	v, err := s.Validator(ctx)
	if err != nil {
		return domain.Subcategory{}, err
	}
	if err := v.ValidateNewSubcategory(categoryID, label, ""); err != nil {
		return domain.Subcategory{}, err
	}
	sub, err := s.api.InsertSubcategory(ctx, categoryID, strings.TrimSpace(label))
	if err != nil {
		return domain.Subcategory{}, fmt.Errorf("AddSubcategory: %w", err)
	}
	s.Invalidate()
	return sub, nil
}

// RenameCategory changes the label of a category.
func (s *Store) RenameCategory(ctx context.Context, id domain.ID, label string) error {
	if strings.TrimSpace(label) == "" {
		return ErrEmptyLabel
	}
	v, err := s.Validator(ctx)
	if err != nil {
		return err
	}
	if _, ok := v.categories[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, id)
	}
	if err := v.ValidateNewCategory(label, id); err != nil {
		return err
	}
	if err := s.api.UpdateCategory(ctx, id, strings.TrimSpace(label)); err != nil {
		return fmt.Errorf("RenameCategory: %w", err)
	}
	s.Invalidate()
	return nil
}

// RenameSubcategory changes the label of a subcategory.
func (s *Store) RenameSubcategory(ctx context.Context, id domain.ID, label string) error {
	if strings.TrimSpace(label) == "" {
		return ErrEmptyLabel
	}
	v, err := s.Validator(ctx)
	if err != nil {
		return err
	}
	parent, ok := v.ParentOf(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubcategory, id)
	}
	if err := v.ValidateNewSubcategory(parent, label, id); err != nil {
		return err
	}
	if err := s.api.UpdateSubcategory(ctx, id, strings.TrimSpace(label)); err != nil {
		return fmt.Errorf("RenameSubcategory: %w", err)
	}
	s.Invalidate()
	return nil
}

// DeleteCategory removes a category.
func (s *Store) DeleteCategory(ctx context.Context, id domain.ID) error {
	if id.IsZero() {
		return fmt.Errorf("%w: no category selected", ErrUnknownCategory)
	}
	if err := s.api.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("DeleteCategory: %w", err)
	}
	s.Invalidate()
	return nil
}

// DeleteSubcategory removes a subcategory.
func (s *Store) DeleteSubcategory(ctx context.Context, id domain.ID) error {
	if id.IsZero() {
		return fmt.Errorf("%w: no subcategory selected", ErrUnknownSubcategory)
	}
	if err := s.api.DeleteSubcategory(ctx, id); err != nil {
		return fmt.Errorf("DeleteSubcategory: %w", err)
	}
	s.Invalidate()
	return nil
}

func sortByLabel(tree []domain.Category) {
	c := collate.New(language.Spanish, collate.IgnoreCase)
	sort.SliceStable(tree, func(i, j int) bool {
		return c.CompareString(tree[i].Label, tree[j].Label) < 0
	})
}

func cloneTree(tree []domain.Category) []domain.Category {
	out := make([]domain.Category, len(tree))
	for i, c := range tree {
		c.Subcategories = append([]domain.Subcategory(nil), c.Subcategories...)
		out[i] = c
	}
	return out
}
