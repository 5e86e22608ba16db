package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"demand-foresight/internal/model"
)

type GrantRepository struct {
	db *gorm.DB
}

func NewGrantRepository(db *gorm.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

func (r *GrantRepository) ListGrants(ctx context.Context) ([]model.Grant, error) {
	var grants []model.Grant
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("list grants failed: %w", err)
	}
	return grants, nil
}

// ApplyChanges deletes and creates grants in one transaction and returns the
// created rows with their assigned ids.
func (r *GrantRepository) ApplyChanges(ctx context.Context, create []model.Grant, deleteIDs []string) ([]model.Grant, error) {
	created := make([]model.Grant, len(create))
	copy(created, create)
	for i := range created {
		if created[i].ID == "" {
			created[i].ID = uuid.NewString()
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(deleteIDs) > 0 {
			if err := tx.Where("id IN ?", deleteIDs).Delete(&model.Grant{}).Error; err != nil {
				return fmt.Errorf("delete grants failed: %w", err)
			}
		}
		if len(created) > 0 {
			if err := tx.Create(&created).Error; err != nil {
				return fmt.Errorf("create grants failed: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
