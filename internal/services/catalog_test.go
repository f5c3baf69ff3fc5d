package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/audit"
	"bookstore_back_end/internal/models"
)

// fakeElastic répond aux requêtes esapi sans serveur
type fakeElastic struct {
	mu       sync.Mutex
	requests []string
	hits     []uuid.UUID
	down     bool
}

func (f *fakeElastic) Perform(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req.Method+" "+req.URL.Path)
	if f.down {
		return nil, errors.New("connection refused")
	}

	body := `{"result":"created"}`
	if strings.HasSuffix(req.URL.Path, "/_search") {
		hits := make([]string, 0, len(f.hits))
		for _, id := range f.hits {
			hits = append(hits, fmt.Sprintf(`{"_id":%q}`, id.String()))
		}
		body = `{"hits":{"hits":[` + strings.Join(hits, ",") + `]}}`
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}, nil
}

func (f *fakeElastic) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newCatalog(t *testing.T, es *fakeElastic) (*testEnv, *CatalogService, *BookCache) {
	t.Helper()
	e := newTestEnv(t)
	cache := NewBookCache(e.store)
	var svc *CatalogService
	if es != nil {
		svc = NewCatalogService(e.store, es, cache, e.audit)
	} else {
		svc = NewCatalogService(e.store, nil, cache, e.audit)
	}
	svc.now = e.now
	return e, svc, cache
}

func TestCatalogCreateIndexesAndAudits(t *testing.T) {
	es := &fakeElastic{}
	e, svc, _ := newCatalog(t, es)
	ctx := context.Background()

	b, err := svc.Create(ctx, models.BookRequest{
		Title: " Truyện Kiều ", Author: "Nguyễn Du", ISBN: "9786041000001", Price: dong(95000), Stock: 3, WeightGrams: 300,
	}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "Truyện Kiều", b.Title)
	assert.True(t, b.IsActive)

	require.NotEmpty(t, es.calls())
	assert.Equal(t, "PUT /books/_doc/"+b.ID.String(), es.calls()[0])

	entries, err := e.audit.List(ctx, audit.ResourceBook, b.ID.String(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionBookCreate, entries[0].Action)
}

func TestCatalogValidation(t *testing.T) {
	_, svc, _ := newCatalog(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.BookRequest
	}{
		{"titre vide", models.BookRequest{Title: " ", Price: dong(1000)}},
		{"prix négatif", models.BookRequest{Title: "A", Price: dong(-1)}},
		{"prix fractionnaire", models.BookRequest{Title: "A", Price: dong(1000).Add(dong(1).Div(dong(2)))}},
		{"stock négatif", models.BookRequest{Title: "A", Price: dong(1000), Stock: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req, "admin")
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}
}

func TestCatalogInactiveHiddenFromCustomers(t *testing.T) {
	_, svc, _ := newCatalog(t, nil)
	ctx := context.Background()
	off := false

	b, err := svc.Create(ctx, models.BookRequest{Title: "Archive", Author: "X", Price: dong(1000), IsActive: &off}, "admin")
	require.NoError(t, err)

	_, err = svc.Get(ctx, b.ID, false)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	got, err := svc.Get(ctx, b.ID, true)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestCatalogSearchElastic(t *testing.T) {
	es := &fakeElastic{}
	e, svc, _ := newCatalog(t, es)
	ctx := context.Background()

	a := e.addBook(t, "Số đỏ", 100000, 1, 100)
	b := e.addBook(t, "Tắt đèn", 100000, 1, 100)
	hidden := e.addBook(t, "Retiré", 100000, 1, 100)
	hidden.IsActive = false
	require.NoError(t, e.store.Books().Update(ctx, &hidden))

	es.hits = []uuid.UUID{b.ID, uuid.New(), hidden.ID, a.ID}
	books, err := svc.Search(ctx, "vũ trọng phụng", 10)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, b.ID, books[0].ID, "ordre de pertinence conservé")
	assert.Equal(t, a.ID, books[1].ID)

	_, err = svc.Search(ctx, "  ", 10)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCatalogSearchFallsBackToCache(t *testing.T) {
	es := &fakeElastic{down: true}
	e, svc, cache := newCatalog(t, es)
	ctx := context.Background()

	e.addBook(t, "Dế Mèn phiêu lưu ký", 50000, 1, 100)
	e.addBook(t, "Đất rừng phương Nam", 50000, 1, 100)

	books, err := svc.Search(ctx, "dế mèn", 10)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Dế Mèn phiêu lưu ký", books[0].Title)
	assert.True(t, cache.Loaded())
}

func TestBookCacheInvalidation(t *testing.T) {
	e, svc, cache := newCatalog(t, nil)
	ctx := context.Background()
	e.addBook(t, "Alpha", 1000, 1, 100)

	snap, err := cache.Refresh(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Books, 1)
	first := snap.Version

	_, err = svc.Create(ctx, models.BookRequest{Title: "Alphabet", Author: "Y", Price: dong(2000)}, "admin")
	require.NoError(t, err)
	assert.False(t, cache.Loaded(), "une écriture invalide le snapshot")

	books, err := svc.Suggest(ctx, "alp", 10)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Alpha", books[0].Title)
	assert.Equal(t, "Alphabet", books[1].Title)
	assert.Greater(t, cache.Snapshot().Version, first)

	b, ok := cache.Snapshot().Get(books[1].ID)
	assert.True(t, ok)
	assert.Equal(t, "Alphabet", b.Title)

	empty, err := svc.Suggest(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCatalogUpdate(t *testing.T) {
	_, svc, _ := newCatalog(t, nil)
	ctx := context.Background()

	b, err := svc.Create(ctx, models.BookRequest{Title: "A", Author: "X", Price: dong(1000), Stock: 1}, "admin")
	require.NoError(t, err)

	up, err := svc.Update(ctx, b.ID, models.BookRequest{Title: "A (2e éd.)", Author: "X", Price: dong(1500), Stock: 4}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "A (2e éd.)", up.Title)
	assert.Equal(t, 4, up.Stock)

	_, err = svc.Update(ctx, uuid.New(), models.BookRequest{Title: "Z", Price: dong(1)}, "admin")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
