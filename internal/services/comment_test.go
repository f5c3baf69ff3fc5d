package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"
)

func TestCommentThread(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	book := e.addBook(t, "Nhà giả kim", 79000, 10, 200)

	root, err := e.comments.Create(ctx, book.ID, "u1", models.CommentRequest{Content: "Très beau livre", Rating: 5})
	require.NoError(t, err)
	e.advance(time.Minute)
	reply, err := e.comments.Create(ctx, book.ID, "u2", models.CommentRequest{Content: "D'accord !", ParentID: &root.ID})
	require.NoError(t, err)
	e.advance(time.Minute)
	_, err = e.comments.Create(ctx, book.ID, "u1", models.CommentRequest{Content: "Merci", ParentID: &reply.ID})
	require.NoError(t, err)
	e.advance(time.Minute)
	_, err = e.comments.Create(ctx, book.ID, "u3", models.CommentRequest{Content: "Un peu long", Rating: 3})
	require.NoError(t, err)

	thread, err := e.comments.Thread(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, root.ID, thread[0].ID)
	require.Len(t, thread[0].Replies, 1)
	assert.Equal(t, reply.ID, thread[0].Replies[0].ID)
	require.Len(t, thread[0].Replies[0].Replies, 1)
	assert.Equal(t, "Merci", thread[0].Replies[0].Replies[0].Content)
	assert.Empty(t, thread[1].Replies)
}

func TestCommentCreateErrors(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	book := e.addBook(t, "A", 10000, 1, 100)
	other := e.addBook(t, "B", 10000, 1, 100)

	root, err := e.comments.Create(ctx, book.ID, "u1", models.CommentRequest{Content: "Bien"})
	require.NoError(t, err)
	missing := uuid.New()

	tests := []struct {
		name   string
		bookID uuid.UUID
		req    models.CommentRequest
		kind   apperr.Kind
	}{
		{"contenu vide", book.ID, models.CommentRequest{Content: "   "}, apperr.KindValidation},
		{"livre inconnu", uuid.New(), models.CommentRequest{Content: "x"}, apperr.KindNotFound},
		{"parent inconnu", book.ID, models.CommentRequest{Content: "x", ParentID: &missing}, apperr.KindNotFound},
		{"parent d'un autre livre", other.ID, models.CommentRequest{Content: "x", ParentID: &root.ID}, apperr.KindValidation},
		{"réponse notée", book.ID, models.CommentRequest{Content: "x", ParentID: &root.ID, Rating: 4}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.comments.Create(ctx, tt.bookID, "u2", tt.req)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestCommentDelete(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	book := e.addBook(t, "A", 10000, 1, 100)

	root, err := e.comments.Create(ctx, book.ID, "u1", models.CommentRequest{Content: "Bien"})
	require.NoError(t, err)
	reply, err := e.comments.Create(ctx, book.ID, "u2", models.CommentRequest{Content: "Oui", ParentID: &root.ID})
	require.NoError(t, err)

	err = e.comments.Delete(ctx, root.ID, "u2", false)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	err = e.comments.Delete(ctx, root.ID, "u1", false)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "a des réponses")

	require.NoError(t, e.comments.Delete(ctx, reply.ID, "u2", false))
	require.NoError(t, e.comments.Delete(ctx, root.ID, "u1", false))

	err = e.comments.Delete(ctx, root.ID, "u1", false)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestBuildThreadOrphansBecomeRoots(t *testing.T) {
	ghost := uuid.New()
	a := models.Comment{ID: uuid.New(), Content: "a"}
	b := models.Comment{ID: uuid.New(), Content: "b", ParentID: &ghost}
	c := models.Comment{ID: uuid.New(), Content: "c", ParentID: &a.ID}

	thread := BuildThread([]models.Comment{a, b, c})
	require.Len(t, thread, 2)
	assert.Equal(t, "a", thread[0].Content)
	assert.Equal(t, "b", thread[1].Content)
	require.Len(t, thread[0].Replies, 1)
	assert.Equal(t, "c", thread[0].Replies[0].Content)

	assert.Empty(t, BuildThread(nil))
}
