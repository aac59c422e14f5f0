package entities

import "time"

type BackupFrequency string

const (
	BackupFrequencyDaily   BackupFrequency = "daily"
	BackupFrequencyWeekly  BackupFrequency = "weekly"
	BackupFrequencyMonthly BackupFrequency = "monthly"
)

// ValidBackupFrequency reports whether s is a known frequency.
func ValidBackupFrequency(s string) bool {
	switch BackupFrequency(s) {
	case BackupFrequencyDaily, BackupFrequencyWeekly, BackupFrequencyMonthly:
		return true
	}
	return false
}

type BackupStatus string

const (
	BackupStatusSuccess    BackupStatus = "success"
	BackupStatusFailed     BackupStatus = "failed"
	BackupStatusInProgress BackupStatus = "in_progress"
)

// BackupSchedule holds the automatic-backup state machine for one account.
// Mutated only by the scheduler and by explicit schedule updates.
type BackupSchedule struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	AccountID uint `gorm:"uniqueIndex" json:"account_id"`

	Enabled   bool            `gorm:"default:false" json:"enabled"`
	Frequency BackupFrequency `gorm:"size:20;default:'weekly'" json:"frequency"`
	Time      string          `gorm:"size:5;default:'03:00'" json:"time"` // "HH:MM"
	Timezone  string          `gorm:"size:64;default:'UTC'" json:"timezone"`
	Provider  ProviderKind    `gorm:"size:20" json:"provider"`

	LastBackup       *time.Time   `json:"last_backup,omitempty"`
	LastBackupStatus BackupStatus `gorm:"size:20" json:"last_backup_status,omitempty"`
	NextBackup       *time.Time   `gorm:"index" json:"next_backup,omitempty"`
	FailureCount     int          `gorm:"default:0" json:"failure_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BackupSchedule) TableName() string {
	return "backup_schedules"
}

type BackupType string

const (
	BackupTypeManual    BackupType = "manual"
	BackupTypeAutomatic BackupType = "automatic"
)

// BackupRecord is the local history entry for a generated/uploaded backup.
type BackupRecord struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	AccountID uint         `gorm:"index" json:"account_id"`
	Filename  string       `gorm:"size:255" json:"filename"`
	RemoteID  string       `gorm:"size:255" json:"remote_id,omitempty"`
	Provider  ProviderKind `gorm:"size:20" json:"provider"`
	Type      BackupType   `gorm:"size:20" json:"type"`
	SizeBytes int64        `json:"size_bytes"`
	Status    BackupStatus `gorm:"size:20" json:"status"`
	ErrorMsg  string       `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (BackupRecord) TableName() string {
	return "backup_records"
}
