package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"demand-foresight/internal/model"
)

type TagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) ListTags(ctx context.Context) ([]model.Tag, error) {
	var tags []model.Tag
	if err := r.db.WithContext(ctx).Order("tag ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("list tags failed: %w", err)
	}
	return tags, nil
}

func (r *TagRepository) CreateTags(ctx context.Context, tags []model.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&tags).Error; err != nil {
		return fmt.Errorf("create tags failed: %w", err)
	}
	return nil
}

// RenameTag renames the tag and rewrites the inline tag value on every
// document that carried the old name. Both happen or neither does.
func (r *TagRepository) RenameTag(ctx context.Context, tagID, newName string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag model.Tag
		if err := tx.Where("tag_id = ?", tagID).First(&tag).Error; err != nil {
			return fmt.Errorf("load tag failed: %w", err)
		}
		if err := tx.Model(&model.Tag{}).Where("tag_id = ?", tagID).Update("tag", newName).Error; err != nil {
			return fmt.Errorf("rename tag failed: %w", err)
		}
		if err := tx.Model(&model.Document{}).Where("tag = ?", tag.Tag).Update("tag", newName).Error; err != nil {
			return fmt.Errorf("cascade tag rename failed: %w", err)
		}
		return nil
	})
}

func (r *TagRepository) DeleteTag(ctx context.Context, tagID string) error {
	if err := r.db.WithContext(ctx).Where("tag_id = ?", tagID).Delete(&model.Tag{}).Error; err != nil {
		return fmt.Errorf("delete tag failed: %w", err)
	}
	return nil
}
