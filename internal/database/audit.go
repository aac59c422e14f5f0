package database

import (
	"time"

	"github.com/mealkeeper/mealkeeper/internal/entities"
)

func (d *Database) LogAuditEvent(event *entities.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return d.DB.Create(event).Error
}

func (d *Database) AuditEventsForAccount(accountID uint, limit int) ([]entities.AuditEvent, error) {
	var events []entities.AuditEvent
	query := d.DB.Where("account_id = ?", accountID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&events).Error
	return events, err
}

// DeleteOldAuditEvents removes audit events older than the retention
// period. Returns the number of rows deleted.
func (d *Database) DeleteOldAuditEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := d.DB.Where("created_at < ?", cutoff).Delete(&entities.AuditEvent{})
	return result.RowsAffected, result.Error
}
