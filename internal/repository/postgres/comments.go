package postgres

import (
	"context"

	"github.com/google/uuid"

	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

type commentRepo struct {
	q repository.Querier
}

const commentColumns = `id, book_id, user_id, parent_id, content, rating, created_at`

func scanComment(row rowScanner) (*models.Comment, error) {
	var c models.Comment
	if err := row.Scan(&c.ID, &c.BookID, &c.UserID, &c.ParentID, &c.Content, &c.Rating, &c.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r commentRepo) Create(ctx context.Context, c *models.Comment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO comments (`+commentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.BookID, c.UserID, c.ParentID, c.Content, c.Rating, c.CreatedAt)
	return mapErr(err)
}

func (r commentRepo) Get(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	return scanComment(r.q.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
}

func (r commentRepo) ListByBook(ctx context.Context, bookID uuid.UUID) ([]models.Comment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+commentColumns+` FROM comments WHERE book_id = $1 ORDER BY created_at, id`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

func (r commentRepo) HasReplies(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM comments WHERE parent_id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r commentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return expectOne(tag)
}
