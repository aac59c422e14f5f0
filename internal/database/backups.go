package database

import (
	"time"

	"github.com/mealkeeper/mealkeeper/internal/entities"
)

func (d *Database) CreateBackupRecord(record *entities.BackupRecord) error {
	return d.DB.Create(record).Error
}

func (d *Database) SaveBackupRecord(record *entities.BackupRecord) error {
	return d.DB.Save(record).Error
}

func (d *Database) BackupRecordsForAccount(accountID uint, limit int) ([]entities.BackupRecord, error) {
	var records []entities.BackupRecord
	query := d.DB.Where("account_id = ?", accountID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

// RecordBackupUsage bumps the account's backup counters after a
// successful upload.
func (d *Database) RecordBackupUsage(accountID uint, size int64, at time.Time) error {
	var stats entities.UsageStats
	err := d.DB.Where(entities.UsageStats{AccountID: accountID}).FirstOrCreate(&stats).Error
	if err != nil {
		return err
	}
	stats.TotalBackups++
	stats.LastBackupSize = size
	stats.LastBackupAt = &at
	return d.DB.Save(&stats).Error
}

// RecordRestoreUsage bumps the account's restore counters.
func (d *Database) RecordRestoreUsage(accountID uint, at time.Time) error {
	var stats entities.UsageStats
	err := d.DB.Where(entities.UsageStats{AccountID: accountID}).FirstOrCreate(&stats).Error
	if err != nil {
		return err
	}
	stats.TotalRestores++
	stats.LastRestoreAt = &at
	return d.DB.Save(&stats).Error
}

func (d *Database) UsageStatsForAccount(accountID uint) (*entities.UsageStats, error) {
	var stats entities.UsageStats
	if err := d.DB.Where("account_id = ?", accountID).First(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}
