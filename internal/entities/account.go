package entities

import (
	"time"

	"gorm.io/gorm"
)

type Account struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;size:100" json:"username"`
	Email        string         `gorm:"uniqueIndex;size:255" json:"email"`
	PasswordHash string         `gorm:"size:100" json:"-"` // bcrypt hash, hidden from JSON
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Account) TableName() string {
	return "accounts"
}

// UsageStats tracks per-account backup usage counters.
type UsageStats struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	AccountID        uint       `gorm:"uniqueIndex" json:"account_id"`
	TotalBackups     int64      `json:"total_backups"`
	LastBackupSize   int64      `json:"last_backup_size"`
	LastBackupAt     *time.Time `json:"last_backup_at,omitempty"`
	TotalRestores    int64      `json:"total_restores"`
	LastRestoreAt    *time.Time `json:"last_restore_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (UsageStats) TableName() string {
	return "usage_stats"
}
