package database

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mealkeeper/mealkeeper/internal/entities"
)

// GetSchedule returns the account's backup schedule, creating the default
// disabled schedule on first access.
func (d *Database) GetSchedule(accountID uint) (*entities.BackupSchedule, error) {
	var schedule entities.BackupSchedule
	err := d.DB.Where("account_id = ?", accountID).First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		schedule = entities.BackupSchedule{
			AccountID: accountID,
			Frequency: entities.BackupFrequencyWeekly,
			Time:      "03:00",
			Timezone:  "UTC",
		}
		if err := d.DB.Create(&schedule).Error; err != nil {
			return nil, err
		}
		return &schedule, nil
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (d *Database) SaveSchedule(schedule *entities.BackupSchedule) error {
	return d.DB.Save(schedule).Error
}

// DueSchedules returns all enabled schedules whose next backup time has
// passed.
func (d *Database) DueSchedules(now time.Time) ([]entities.BackupSchedule, error) {
	var schedules []entities.BackupSchedule
	err := d.DB.
		Where("enabled = ? AND next_backup IS NOT NULL AND next_backup <= ?", true, now).
		Find(&schedules).Error
	return schedules, err
}
