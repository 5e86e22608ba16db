package repository

import (
	"context"

	"gorm.io/gorm"

	"demand-foresight/internal/model"
)

// Models lists every table the service owns, in migration order.
func Models() []any {
	return []any{
		&model.User{},
		&model.Document{},
		&model.Grant{},
		&model.Tag{},
		&model.Vector{},
		&model.ChatMessage{},
		&model.CostRecord{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// SessionSource reads the record sets a request session is built from.
type SessionSource struct {
	Documents *DocumentRepository
	Grants    *GrantRepository
	Tags      *TagRepository
}

func (s SessionSource) ListDocuments(ctx context.Context) ([]model.Document, error) {
	return s.Documents.ListDocuments(ctx)
}

func (s SessionSource) ListGrants(ctx context.Context) ([]model.Grant, error) {
	return s.Grants.ListGrants(ctx)
}

func (s SessionSource) ListTags(ctx context.Context) ([]model.Tag, error) {
	return s.Tags.ListTags(ctx)
}
