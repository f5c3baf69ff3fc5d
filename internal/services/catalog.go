package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/audit"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

const booksIndex = "books"

// bookDocument : champs indexés dans Elasticsearch
type bookDocument struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

type CatalogService struct {
	store repository.Store
	es    esapi.Transport // nil = recherche locale uniquement
	cache BookLookup
	audit audit.Logger
	now   func() time.Time
}

func NewCatalogService(store repository.Store, es esapi.Transport, cache BookLookup, auditLog audit.Logger) *CatalogService {
	return &CatalogService{store: store, es: es, cache: cache, audit: auditLog, now: nowUTC}
}

func (s *CatalogService) List(ctx context.Context, limit, offset int) ([]models.Book, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	books, err := s.store.Books().List(ctx, repository.BookFilter{Limit: limit, Offset: max(offset, 0)})
	if err != nil {
		return nil, internal(err)
	}
	return books, nil
}

// Get : un livre inactif n'est visible que par un admin
func (s *CatalogService) Get(ctx context.Context, id uuid.UUID, isAdmin bool) (*models.Book, error) {
	b, err := s.store.Books().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "Livre introuvable")
	}
	if !b.IsActive && !isAdmin {
		return nil, apperr.NotFound("Livre introuvable")
	}
	return b, nil
}

func validateBook(req models.BookRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return apperr.FieldError("title", "Le titre est requis")
	}
	if req.Price.IsNegative() {
		return apperr.FieldError("price", "Le prix ne peut pas être négatif")
	}
	if !req.Price.Equal(req.Price.Floor()) {
		return apperr.FieldError("price", "Le prix doit être un nombre entier de đồng")
	}
	if req.Stock < 0 {
		return apperr.FieldError("stock", "Le stock ne peut pas être négatif")
	}
	return nil
}

func (s *CatalogService) Create(ctx context.Context, req models.BookRequest, actor string) (*models.Book, error) {
	if err := validateBook(req); err != nil {
		return nil, err
	}
	now := s.now()
	b := &models.Book{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(req.Title),
		Author:      strings.TrimSpace(req.Author),
		ISBN:        strings.TrimSpace(req.ISBN),
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		WeightGrams: req.WeightGrams,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
	if err := s.store.Books().Create(ctx, b); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict("Un livre avec cet ISBN existe déjà")
		}
		return nil, internal(err)
	}

	s.afterWrite(ctx, b)
	s.record(ctx, audit.NewEntry(audit.ResourceBook, b.ID.String(), audit.ActionBookCreate, actor, nil, b))
	return b, nil
}

func (s *CatalogService) Update(ctx context.Context, id uuid.UUID, req models.BookRequest, actor string) (*models.Book, error) {
	if err := validateBook(req); err != nil {
		return nil, err
	}
	b, err := s.store.Books().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "Livre introuvable")
	}
	old := *b

	b.Title = strings.TrimSpace(req.Title)
	b.Author = strings.TrimSpace(req.Author)
	b.ISBN = strings.TrimSpace(req.ISBN)
	b.Description = req.Description
	b.Price = req.Price
	b.Stock = req.Stock
	b.WeightGrams = req.WeightGrams
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
	b.UpdatedAt = s.now()

	if err := s.store.Books().Update(ctx, b); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict("Un livre avec cet ISBN existe déjà")
		}
		return nil, notFound(err, "Livre introuvable")
	}

	s.afterWrite(ctx, b)
	s.record(ctx, audit.NewEntry(audit.ResourceBook, b.ID.String(), audit.ActionBookUpdate, actor, old, b))
	return b, nil
}

func (s *CatalogService) afterWrite(ctx context.Context, b *models.Book) {
	if s.cache != nil {
		s.cache.Invalidate()
	}
	s.index(ctx, b)
}

// index est best effort : la base reste la référence
func (s *CatalogService) index(ctx context.Context, b *models.Book) {
	if s.es == nil {
		return
	}
	data, err := json.Marshal(bookDocument{
		ID: b.ID.String(), Title: b.Title, Author: b.Author, ISBN: b.ISBN,
		Description: b.Description, IsActive: b.IsActive,
	})
	if err != nil {
		return
	}
	req := esapi.IndexRequest{
		Index:      booksIndex,
		DocumentID: b.ID.String(),
		Body:       bytes.NewReader(data),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, s.es)
	if err != nil {
		log.Println("❌ Erreur envoi Elastic:", err)
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Printf("⚠️ Elastic a renvoyé une erreur pour %s: %s", b.Title, res.String())
	} else {
		log.Printf("✅ Livre indexé dans Elasticsearch: %s", b.Title)
	}
}

// Search interroge Elasticsearch puis relit les livres en base ; repli sur le cache local
func (s *CatalogService) Search(ctx context.Context, query string, limit int) ([]models.Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.FieldError("q", "Le terme de recherche est requis")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	if s.es != nil {
		ids, err := s.searchIDs(ctx, query, limit)
		if err == nil {
			return s.loadActive(ctx, ids), nil
		}
		log.Printf("⚠️ Recherche Elastic indisponible, repli sur le cache: %v", err)
	}
	if s.cache == nil {
		return []models.Book{}, nil
	}
	books, err := s.cache.Search(ctx, query, limit)
	if err != nil {
		return nil, internal(err)
	}
	return books, nil
}

func (s *CatalogService) Suggest(ctx context.Context, prefix string, limit int) ([]models.Book, error) {
	if limit <= 0 || limit > 20 {
		limit = 10
	}
	if s.cache == nil {
		return []models.Book{}, nil
	}
	books, err := s.cache.Suggest(ctx, prefix, limit)
	if err != nil {
		return nil, internal(err)
	}
	return books, nil
}

func (s *CatalogService) searchIDs(ctx context.Context, query string, limit int) ([]uuid.UUID, error) {
	var buf bytes.Buffer
	q := map[string]any{
		"size": limit,
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":  query,
						"fields": []string{"title^3", "author^2", "isbn", "description"},
					},
				},
				"filter": map[string]any{"term": map[string]any{"is_active": true}},
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(q); err != nil {
		return nil, fmt.Errorf("erreur encodage requête: %w", err)
	}

	req := esapi.SearchRequest{Index: []string{booksIndex}, Body: &buf}
	res, err := req.Do(ctx, s.es)
	if err != nil {
		return nil, fmt.Errorf("erreur requête Elastic: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elastic: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("erreur décodage JSON: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		if id, err := uuid.Parse(h.ID); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// loadActive conserve l'ordre de pertinence et ignore les livres supprimés ou désactivés
func (s *CatalogService) loadActive(ctx context.Context, ids []uuid.UUID) []models.Book {
	out := make([]models.Book, 0, len(ids))
	for _, id := range ids {
		b, err := s.store.Books().Get(ctx, id)
		if err != nil || !b.IsActive {
			continue
		}
		out = append(out, *b)
	}
	return out
}

func (s *CatalogService) record(ctx context.Context, e audit.Entry) {
	if s.audit != nil {
		s.audit.Record(ctx, e)
	}
}
