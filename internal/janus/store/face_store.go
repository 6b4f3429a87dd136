package store

import (
	"context"
	"time"
)

// FaceTemplate binds one user to one embedding. A user has at most one.
type FaceTemplate struct {
	UserID     string
	Embedding  []float32
	CapturedAt time.Time
}

type FaceTemplateStore interface {
	// PutTemplate inserts or replaces the template for t.UserID.
	PutTemplate(ctx context.Context, t FaceTemplate) error
	GetTemplate(ctx context.Context, userID string) (FaceTemplate, error)
	ListTemplates(ctx context.Context) ([]FaceTemplate, error)
}
