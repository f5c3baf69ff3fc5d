package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

// BookSnapshot est immuable une fois publié
type BookSnapshot struct {
	Version  uint64
	LoadedAt time.Time
	Books    []models.Book
	byID     map[uuid.UUID]int
}

func (s *BookSnapshot) Get(id uuid.UUID) (models.Book, bool) {
	i, ok := s.byID[id]
	if !ok {
		return models.Book{}, false
	}
	return s.Books[i], true
}

// BookLookup : recherche locale sur le catalogue actif
type BookLookup interface {
	Loaded() bool
	Search(ctx context.Context, query string, limit int) ([]models.Book, error)
	Suggest(ctx context.Context, prefix string, limit int) ([]models.Book, error)
	Invalidate()
}

// BookCache garde un snapshot versionné des livres actifs, rechargé à la demande
type BookCache struct {
	store   repository.Store
	current atomic.Pointer[BookSnapshot]
	version atomic.Uint64
	mu      sync.Mutex
}

func NewBookCache(store repository.Store) *BookCache {
	return &BookCache{store: store}
}

func (c *BookCache) Loaded() bool {
	return c.current.Load() != nil
}

// Snapshot renvoie le snapshot courant (nil avant le premier chargement)
func (c *BookCache) Snapshot() *BookSnapshot {
	return c.current.Load()
}

// Invalidate force un rechargement au prochain accès
func (c *BookCache) Invalidate() {
	c.current.Store(nil)
}

func (c *BookCache) Refresh(ctx context.Context) (*BookSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	books, err := c.store.Books().List(ctx, repository.BookFilter{})
	if err != nil {
		return nil, err
	}
	snap := &BookSnapshot{
		Version:  c.version.Add(1),
		LoadedAt: nowUTC(),
		Books:    books,
		byID:     make(map[uuid.UUID]int, len(books)),
	}
	for i, b := range books {
		snap.byID[b.ID] = i
	}
	c.current.Store(snap)
	return snap, nil
}

func (c *BookCache) load(ctx context.Context) (*BookSnapshot, error) {
	if snap := c.current.Load(); snap != nil {
		return snap, nil
	}
	return c.Refresh(ctx)
}

// Search : correspondance sur titre, auteur ou ISBN, insensible à la casse
func (c *BookCache) Search(ctx context.Context, query string, limit int) ([]models.Book, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := []models.Book{}
	for _, b := range snap.Books {
		if q == "" || strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) || strings.Contains(b.ISBN, q) {
			out = append(out, b)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Suggest : titres commençant par prefix, triés alphabétiquement
func (c *BookCache) Suggest(ctx context.Context, prefix string, limit int) ([]models.Book, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	p := strings.ToLower(strings.TrimSpace(prefix))
	out := []models.Book{}
	if p == "" {
		return out, nil
	}
	for _, b := range snap.Books {
		if strings.HasPrefix(strings.ToLower(b.Title), p) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
