package model

import "time"

// CostRecord is one charge against a user, in USD.
type CostRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:64;not null;index" json:"username"`
	Model     string    `gorm:"size:128" json:"model"`
	Cost      float64   `gorm:"not null" json:"cost"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
}
