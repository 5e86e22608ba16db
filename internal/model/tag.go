package model

type Tag struct {
	TagID string `gorm:"primaryKey;size:36" json:"tag_id"`
	Tag   string `gorm:"size:64;not null;uniqueIndex" json:"tag"`
}
