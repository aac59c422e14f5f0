// Package audit records a trail of data-interchange activity per
// account. Events are written asynchronously so that imports and
// backups never block on the trail.
package audit

import (
	"encoding/json"
	"log"

	"github.com/mealkeeper/mealkeeper/internal/entities"
)

// Recorder persists audit events.
type Recorder interface {
	LogAuditEvent(event *entities.AuditEvent) error
}

// Service provides high-level audit logging.
type Service struct {
	recorder Recorder
}

func NewService(recorder Recorder) *Service {
	return &Service{recorder: recorder}
}

// Log records an audit event synchronously.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.recorder.LogAuditEvent(event)
}

// LogAsync records an audit event in the background.
func (s *Service) LogAsync(event *entities.AuditEvent) {
	go func() {
		if err := s.recorder.LogAuditEvent(event); err != nil {
			log.Printf("Failed to log audit event: %v", err)
		}
	}()
}

// LogImport records a bundle import, with per-entity counts in the
// metadata.
func (s *Service) LogImport(accountID uint, mode string, imported, skipped int, counts map[string]int, err error) {
	event := &entities.AuditEvent{
		AccountID:   accountID,
		EventType:   entities.AuditEventImport,
		Action:      "bundle_import",
		Description: "Imported bundle in " + mode + " mode",
		Status:      entities.AuditStatusSuccess,
	}

	metadata := map[string]any{
		"mode":     mode,
		"imported": imported,
		"skipped":  skipped,
	}
	for k, v := range counts {
		metadata[k] = v
	}
	if mdBytes, e := json.Marshal(metadata); e == nil {
		event.Metadata = string(mdBytes)
	}

	applyError(event, err)
	s.LogAsync(event)
}

// LogBackup records a backup generation and upload.
func (s *Service) LogBackup(accountID uint, backupType entities.BackupType, provider entities.ProviderKind, size int64, err error) {
	event := &entities.AuditEvent{
		AccountID:   accountID,
		EventType:   entities.AuditEventBackup,
		Action:      string(backupType) + "_backup",
		Description: "Backup uploaded to " + string(provider),
		Status:      entities.AuditStatusSuccess,
	}

	if mdBytes, e := json.Marshal(map[string]any{"provider": provider, "size": size}); e == nil {
		event.Metadata = string(mdBytes)
	}

	applyError(event, err)
	s.LogAsync(event)
}

// LogRestore records a restore from a remote backup.
func (s *Service) LogRestore(accountID uint, provider entities.ProviderKind, backupID string, imported int, err error) {
	event := &entities.AuditEvent{
		AccountID:   accountID,
		EventType:   entities.AuditEventRestore,
		Action:      "remote_restore",
		Description: "Restored backup from " + string(provider),
		Status:      entities.AuditStatusSuccess,
	}

	if mdBytes, e := json.Marshal(map[string]any{"backup_id": backupID, "imported": imported}); e == nil {
		event.Metadata = string(mdBytes)
	}

	applyError(event, err)
	s.LogAsync(event)
}

// LogScheduleChange records an update to the backup schedule.
func (s *Service) LogScheduleChange(accountID uint, schedule *entities.BackupSchedule) {
	event := &entities.AuditEvent{
		AccountID:   accountID,
		EventType:   entities.AuditEventSchedule,
		Action:      "schedule_update",
		Description: "Backup schedule updated",
		Status:      entities.AuditStatusSuccess,
	}

	metadata := map[string]any{
		"enabled":   schedule.Enabled,
		"frequency": schedule.Frequency,
		"provider":  schedule.Provider,
	}
	if mdBytes, e := json.Marshal(metadata); e == nil {
		event.Metadata = string(mdBytes)
	}

	s.LogAsync(event)
}

// LogDataReplacement records the destructive phase of a replace-mode
// import.
func (s *Service) LogDataReplacement(accountID uint, err error) {
	event := &entities.AuditEvent{
		AccountID:   accountID,
		EventType:   entities.AuditEventDelete,
		Action:      "data_replace",
		Description: "Deleted existing data before replace-mode import",
		Status:      entities.AuditStatusSuccess,
	}

	applyError(event, err)
	s.LogAsync(event)
}

func applyError(event *entities.AuditEvent, err error) {
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
