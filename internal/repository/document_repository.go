package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"demand-foresight/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, documentID string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// CreateDocument appends the document, its owner grant and its vector
// mapping rows in one transaction.
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *model.Document, owner *model.Grant, vectors []model.Vector) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("create document failed: %w", err)
		}
		if err := tx.Create(owner).Error; err != nil {
			return fmt.Errorf("create owner grant failed: %w", err)
		}
		if len(vectors) > 0 {
			if err := tx.CreateInBatches(vectors, 500).Error; err != nil {
				return fmt.Errorf("create vector rows failed: %w", err)
			}
		}
		return nil
	})
}

// ListVectorIDs returns the index entry ids for the given documents.
func (r *DocumentRepository) ListVectorIDs(ctx context.Context, documentIDs []string) ([]string, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.Vector{}).
		Where("document_id IN ?", documentIDs).
		Order("id ASC").
		Pluck("vector_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list vector ids failed: %w", err)
	}
	return ids, nil
}

// DeleteDocuments removes grants, then documents, then vector mapping rows.
// Index entries must already be gone when this is called.
func (r *DocumentRepository) DeleteDocuments(ctx context.Context, documentIDs []string) error {
	if len(documentIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id IN ?", documentIDs).Delete(&model.Grant{}).Error; err != nil {
			return fmt.Errorf("delete document grants failed: %w", err)
		}
		if err := tx.Where("document_id IN ?", documentIDs).Delete(&model.Document{}).Error; err != nil {
			return fmt.Errorf("delete documents failed: %w", err)
		}
		if err := tx.Where("document_id IN ?", documentIDs).Delete(&model.Vector{}).Error; err != nil {
			return fmt.Errorf("delete vector rows failed: %w", err)
		}
		return nil
	})
}

func (r *DocumentRepository) UpdateSummary(ctx context.Context, documentID, summary string) error {
	if err := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("document_id = ?", documentID).
		Update("summary", summary).Error; err != nil {
		return fmt.Errorf("update document summary failed: %w", err)
	}
	return nil
}
