package models

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID        uuid.UUID  `json:"id"`
	BookID    uuid.UUID  `json:"book_id"`
	UserID    string     `json:"user_id"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	Content   string     `json:"content"`
	Rating    int        `json:"rating,omitempty"` // 1-5, racine seulement
	CreatedAt time.Time  `json:"created_at"`
}

// CommentNode : vue arborescente du fil
type CommentNode struct {
	Comment
	Replies []*CommentNode `json:"replies"`
}

type CommentRequest struct {
	Content  string     `json:"content" binding:"required,max=2000"`
	ParentID *uuid.UUID `json:"parent_id"`
	Rating   int        `json:"rating" binding:"omitempty,min=1,max=5"`
}
