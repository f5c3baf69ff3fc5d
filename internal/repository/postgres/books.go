package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

type bookRepo struct {
	q repository.Querier
}

const bookColumns = `id, title, author, isbn, description, price, stock, weight_grams, is_active, created_at, updated_at`

func scanBook(row rowScanner) (*models.Book, error) {
	var b models.Book
	var price int64
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Description, &price, &b.Stock,
		&b.WeightGrams, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	b.Price = fromDong(price)
	return &b, nil
}

func (r bookRepo) Get(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	return scanBook(r.q.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id))
}

func (r bookRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	return scanBook(r.q.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1 FOR UPDATE`, id))
}

func (r bookRepo) List(ctx context.Context, f repository.BookFilter) ([]models.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE ($1 OR is_active) ORDER BY title, id OFFSET $2`
	args := []any{f.IncludeInactive, f.Offset}
	if f.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, f.Limit)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

func (r bookRepo) Create(ctx context.Context, b *models.Book) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO books (`+bookColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, b.Title, b.Author, b.ISBN, b.Description, toDong(b.Price), b.Stock, b.WeightGrams,
		b.IsActive, b.CreatedAt, b.UpdatedAt)
	return mapErr(err)
}

func (r bookRepo) Update(ctx context.Context, b *models.Book) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE books
		SET title = $2, author = $3, isbn = $4, description = $5, price = $6, stock = $7,
		    weight_grams = $8, is_active = $9, updated_at = $10
		WHERE id = $1`,
		b.ID, b.Title, b.Author, b.ISBN, b.Description, toDong(b.Price), b.Stock, b.WeightGrams,
		b.IsActive, b.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return expectOne(tag)
}

func (r bookRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE books SET stock = stock + $2, updated_at = $3
		WHERE id = $1 AND stock + $2 >= 0`, id, delta, time.Now().UTC())
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return repository.ErrConflict
	}
	return nil
}
