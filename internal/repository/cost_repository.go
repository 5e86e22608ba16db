package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"demand-foresight/internal/model"
)

type CostRepository struct {
	db *gorm.DB
}

func NewCostRepository(db *gorm.DB) *CostRepository {
	return &CostRepository{db: db}
}

func (r *CostRepository) Append(ctx context.Context, record *model.CostRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("append cost record failed: %w", err)
	}
	return nil
}

// List returns cost records for username, or for every user when username
// is empty.
func (r *CostRepository) List(ctx context.Context, username string) ([]model.CostRecord, error) {
	q := r.db.WithContext(ctx).Model(&model.CostRecord{})
	if username != "" {
		q = q.Where("username = ?", username)
	}
	var records []model.CostRecord
	if err := q.Order("timestamp ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list cost records failed: %w", err)
	}
	return records, nil
}
