package model

import "time"

type AccessLevel string

const (
	// AccessWrite marks the owner (uploader) of a document.
	AccessWrite AccessLevel = "write"
	// AccessRead marks a share granted to another user.
	AccessRead AccessLevel = "read"
)

// Grant is a (user, document, access level) authorization record. A given
// (username, document_id) pair has at most one grant.
type Grant struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	Username    string      `gorm:"size:64;not null;uniqueIndex:idx_grant_user_doc" json:"username"`
	DocumentID  string      `gorm:"size:36;not null;uniqueIndex:idx_grant_user_doc;index" json:"document_id"`
	AccessLevel AccessLevel `gorm:"size:8;not null" json:"access_level"`
	CreatedAt   time.Time   `json:"created_at"`
}
