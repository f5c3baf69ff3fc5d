package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

// --- Livres ---

type bookRepo struct{ s *Store }

func (r bookRepo) Get(_ context.Context, id uuid.UUID) (*models.Book, error) {
	var out *models.Book
	err := r.s.run(func(st *state) error {
		b, ok := st.books[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &b
		return nil
	})
	return out, err
}

// GetForUpdate : le verrou global de la transaction suffit
func (r bookRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	return r.Get(ctx, id)
}

func (r bookRepo) List(_ context.Context, f repository.BookFilter) ([]models.Book, error) {
	var out []models.Book
	err := r.s.run(func(st *state) error {
		for _, b := range st.books {
			if b.IsActive || f.IncludeInactive {
				out = append(out, b)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return paginate(out, f.Offset, f.Limit), err
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return items[:0:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (r bookRepo) Create(_ context.Context, b *models.Book) error {
	return r.s.run(func(st *state) error {
		if _, ok := st.books[b.ID]; ok {
			return repository.ErrConflict
		}
		st.books[b.ID] = *b
		return nil
	})
}

func (r bookRepo) Update(_ context.Context, b *models.Book) error {
	return r.s.run(func(st *state) error {
		old, ok := st.books[b.ID]
		if !ok {
			return repository.ErrNotFound
		}
		nb := *b
		nb.CreatedAt = old.CreatedAt
		st.books[b.ID] = nb
		return nil
	})
}

func (r bookRepo) AdjustStock(_ context.Context, id uuid.UUID, delta int) error {
	return r.s.run(func(st *state) error {
		b, ok := st.books[id]
		if !ok {
			return repository.ErrNotFound
		}
		if b.Stock+delta < 0 {
			return repository.ErrConflict
		}
		b.Stock += delta
		b.UpdatedAt = time.Now().UTC()
		st.books[id] = b
		return nil
	})
}

// --- Coupons ---

type couponRepo struct{ s *Store }

func (r couponRepo) GetByCode(_ context.Context, code string) (*models.Coupon, error) {
	var out *models.Coupon
	err := r.s.run(func(st *state) error {
		c, ok := st.coupons[code]
		if !ok {
			return repository.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r couponRepo) List(_ context.Context) ([]models.Coupon, error) {
	var out []models.Coupon
	err := r.s.run(func(st *state) error {
		for _, c := range st.coupons {
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r couponRepo) Create(_ context.Context, c *models.Coupon) error {
	return r.s.run(func(st *state) error {
		if _, ok := st.coupons[c.Code]; ok {
			return repository.ErrConflict
		}
		st.coupons[c.Code] = *c
		return nil
	})
}

func (r couponRepo) Update(_ context.Context, c *models.Coupon) error {
	return r.s.run(func(st *state) error {
		old, ok := findCoupon(st, c.ID)
		if !ok {
			return repository.ErrNotFound
		}
		nc := *c
		nc.Code = old.Code
		nc.UsedCount = old.UsedCount
		st.coupons[old.Code] = nc
		return nil
	})
}

func findCoupon(st *state, id uuid.UUID) (models.Coupon, bool) {
	for _, c := range st.coupons {
		if c.ID == id {
			return c, true
		}
	}
	return models.Coupon{}, false
}

func (r couponRepo) IncrementUsage(_ context.Context, id uuid.UUID) error {
	return r.s.run(func(st *state) error {
		c, ok := findCoupon(st, id)
		if !ok {
			return repository.ErrNotFound
		}
		if c.Exhausted() {
			return repository.ErrConflict
		}
		c.UsedCount++
		st.coupons[c.Code] = c
		return nil
	})
}

func (r couponRepo) DecrementUsage(_ context.Context, id uuid.UUID) error {
	return r.s.run(func(st *state) error {
		c, ok := findCoupon(st, id)
		if !ok {
			return repository.ErrNotFound
		}
		if c.UsedCount > 0 {
			c.UsedCount--
			st.coupons[c.Code] = c
		}
		return nil
	})
}

// --- Commentaires ---

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, c *models.Comment) error {
	return r.s.run(func(st *state) error {
		if _, ok := st.books[c.BookID]; !ok {
			return repository.ErrNotFound
		}
		if c.ParentID != nil {
			if _, ok := st.comments[*c.ParentID]; !ok {
				return repository.ErrNotFound
			}
		}
		st.comments[c.ID] = *c
		return nil
	})
}

func (r commentRepo) Get(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	var out *models.Comment
	err := r.s.run(func(st *state) error {
		c, ok := st.comments[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r commentRepo) ListByBook(_ context.Context, bookID uuid.UUID) ([]models.Comment, error) {
	var out []models.Comment
	err := r.s.run(func(st *state) error {
		for _, c := range st.comments {
			if c.BookID == bookID {
				out = append(out, c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return strings.Compare(out[i].ID.String(), out[j].ID.String()) < 0
	})
	return out, err
}

func (r commentRepo) HasReplies(_ context.Context, id uuid.UUID) (bool, error) {
	found := false
	err := r.s.run(func(st *state) error {
		for _, c := range st.comments {
			if c.ParentID != nil && *c.ParentID == id {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

func (r commentRepo) Delete(_ context.Context, id uuid.UUID) error {
	return r.s.run(func(st *state) error {
		if _, ok := st.comments[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.comments, id)
		return nil
	})
}

// --- Notifications ---

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(_ context.Context, n *models.Notification) error {
	return r.s.run(func(st *state) error {
		st.notifications[n.ID] = *n
		return nil
	})
}

func (r notificationRepo) ListByUser(_ context.Context, userID string, limit int) ([]models.Notification, error) {
	out := []models.Notification{}
	err := r.s.run(func(st *state) error {
		for _, n := range st.notifications {
			if n.UserID == userID {
				out = append(out, n)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, 0, limit), err
}

func (r notificationRepo) MarkRead(_ context.Context, id uuid.UUID, userID string) error {
	return r.s.run(func(st *state) error {
		n, ok := st.notifications[id]
		if !ok || n.UserID != userID {
			return repository.ErrNotFound
		}
		n.IsRead = true
		st.notifications[id] = n
		return nil
	})
}
