package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

type CommentService struct {
	store repository.Store
	now   func() time.Time
}

func NewCommentService(store repository.Store) *CommentService {
	return &CommentService{store: store, now: nowUTC}
}

// Create : une réponse doit viser un commentaire du même livre ; la note est réservée aux racines
func (s *CommentService) Create(ctx context.Context, bookID uuid.UUID, userID string, req models.CommentRequest) (*models.Comment, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperr.FieldError("content", "Le commentaire est vide")
	}
	if _, err := s.store.Books().Get(ctx, bookID); err != nil {
		return nil, notFound(err, "Livre introuvable")
	}

	c := &models.Comment{
		ID:        uuid.New(),
		BookID:    bookID,
		UserID:    userID,
		Content:   content,
		Rating:    req.Rating,
		CreatedAt: s.now(),
	}
	if req.ParentID != nil {
		parent, err := s.store.Comments().Get(ctx, *req.ParentID)
		if err != nil {
			return nil, notFound(err, "Commentaire parent introuvable")
		}
		if parent.BookID != bookID {
			return nil, apperr.FieldError("parent_id", "Le commentaire parent concerne un autre livre")
		}
		if req.Rating != 0 {
			return nil, apperr.FieldError("rating", "Une réponse ne peut pas porter de note")
		}
		pid := parent.ID
		c.ParentID = &pid
	}

	if err := s.store.Comments().Create(ctx, c); err != nil {
		return nil, internal(err)
	}
	return c, nil
}

// Thread construit le fil d'un livre : index parent → enfants, aucun pointeur vers le parent
func (s *CommentService) Thread(ctx context.Context, bookID uuid.UUID) ([]*models.CommentNode, error) {
	list, err := s.store.Comments().ListByBook(ctx, bookID)
	if err != nil {
		return nil, internal(err)
	}
	return BuildThread(list), nil
}

// BuildThread : list est supposée triée par date ; l'ordre est conservé à chaque niveau.
// Une réponse dont le parent est absent est remontée à la racine.
func BuildThread(list []models.Comment) []*models.CommentNode {
	nodes := make([]models.CommentNode, len(list))
	index := make(map[uuid.UUID]int, len(list))
	for i, c := range list {
		nodes[i] = models.CommentNode{Comment: c, Replies: []*models.CommentNode{}}
		index[c.ID] = i
	}

	children := make(map[int][]int, len(list))
	roots := []int{}
	for i, c := range list {
		if c.ParentID != nil {
			if p, ok := index[*c.ParentID]; ok && p != i {
				children[p] = append(children[p], i)
				continue
			}
		}
		roots = append(roots, i)
	}

	var attach func(i int) *models.CommentNode
	attach = func(i int) *models.CommentNode {
		n := &nodes[i]
		for _, child := range children[i] {
			n.Replies = append(n.Replies, attach(child))
		}
		return n
	}

	out := make([]*models.CommentNode, 0, len(roots))
	for _, r := range roots {
		out = append(out, attach(r))
	}
	return out
}

// Delete : par l'auteur uniquement, refusé si le commentaire a des réponses
func (s *CommentService) Delete(ctx context.Context, id uuid.UUID, userID string, isAdmin bool) error {
	c, err := s.store.Comments().Get(ctx, id)
	if err != nil {
		return notFound(err, "Commentaire introuvable")
	}
	if !isAdmin && c.UserID != userID {
		return apperr.Forbidden("Vous ne pouvez supprimer que vos commentaires")
	}
	has, err := s.store.Comments().HasReplies(ctx, id)
	if err != nil {
		return internal(err)
	}
	if has {
		return apperr.Conflict("Ce commentaire a des réponses et ne peut pas être supprimé")
	}
	if err := s.store.Comments().Delete(ctx, id); err != nil {
		return notFound(err, "Commentaire introuvable")
	}
	return nil
}
