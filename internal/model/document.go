package model

import "time"

// Document is a single uploaded file. Tag is stored inline, so renaming a tag
// has to rewrite every document that carries the old value.
type Document struct {
	DocumentID string    `gorm:"primaryKey;size:36" json:"document_id"`
	Title      string    `gorm:"size:256;not null;index" json:"title"`
	Tag        string    `gorm:"size:64;not null;index" json:"tag"`
	Summary    string    `gorm:"type:text" json:"summary"`
	CreatedAt  time.Time `json:"created_at"`
}

// Vector maps a document to one of its entries in the vector index.
type Vector struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	DocumentID string `gorm:"size:36;not null;index" json:"document_id"`
	VectorID   string `gorm:"size:64;not null;index" json:"vector_id"`
}
