// Package services wires the data-interchange engine together for the
// HTTP layer: imports, exports, remote backups, restores and schedule
// management.
package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mealkeeper/mealkeeper/internal/audit"
	"github.com/mealkeeper/mealkeeper/internal/auth"
	"github.com/mealkeeper/mealkeeper/internal/bundle"
	"github.com/mealkeeper/mealkeeper/internal/database"
	"github.com/mealkeeper/mealkeeper/internal/entities"
	"github.com/mealkeeper/mealkeeper/internal/importer"
	"github.com/mealkeeper/mealkeeper/internal/scheduler"
	"github.com/mealkeeper/mealkeeper/internal/storage"
	"github.com/mealkeeper/mealkeeper/internal/validator"
)

// Preview summarizes a bundle without importing it.
type Preview struct {
	Version       string             `json:"version"`
	ExportDate    string             `json:"export_date"`
	Recipes       int                `json:"recipes"`
	Collections   int                `json:"collections"`
	MealPlans     int                `json:"meal_plans"`
	ShoppingLists int                `json:"shopping_lists"`
	Statistics    *bundle.Statistics `json:"statistics,omitempty"`
}

// ScheduleInput carries a full schedule update.
type ScheduleInput struct {
	Enabled   bool   `json:"enabled"`
	Frequency string `json:"frequency"`
	Time      string `json:"time"`
	Timezone  string `json:"timezone"`
	Provider  string `json:"provider"`
}

// BackupService is the orchestration layer over the parser, validator,
// restorer and cloud storage.
type BackupService struct {
	db        *database.Database
	parser    *bundle.Parser
	validator *validator.Validator
	generator *bundle.Generator
	restorer  *importer.Restorer
	resolver  *ProviderResolver
	audit     *audit.Service
}

func NewBackupService(db *database.Database, generator *bundle.Generator, resolver *ProviderResolver, auditService *audit.Service) *BackupService {
	return &BackupService{
		db:        db,
		parser:    bundle.NewParser(),
		validator: validator.New(),
		generator: generator,
		restorer:  importer.NewRestorer(db),
		resolver:  resolver,
		audit:     auditService,
	}
}

// confirmPassword verifies the account password before a destructive
// operation.
func (s *BackupService) confirmPassword(accountID uint, password string) error {
	if password == "" {
		return &SecurityError{Reason: "password confirmation required"}
	}
	account, err := s.db.GetAccountByID(accountID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if err := auth.CheckPassword(password, account.PasswordHash); err != nil {
		return &SecurityError{Reason: "password does not match"}
	}
	return nil
}

// parseAndValidate runs the full intake pipeline on an uploaded archive.
func (s *BackupService) parseAndValidate(archivePath string) (*bundle.Bundle, error) {
	b, err := s.parser.Parse(archivePath)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(b); err != nil {
		return nil, err
	}
	return b, nil
}

// PreviewBundle parses and validates an uploaded archive and reports
// what it contains, without writing anything.
func (s *BackupService) PreviewBundle(archivePath string) (*Preview, error) {
	b, err := s.parseAndValidate(archivePath)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Version:       b.Version,
		ExportDate:    b.ExportDate,
		Recipes:       len(b.Recipes),
		Collections:   len(b.Collections),
		MealPlans:     len(b.MealPlans),
		ShoppingLists: len(b.ShoppingLists),
		Statistics:    b.Statistics,
	}, nil
}

// ImportBundle runs the full import pipeline on an uploaded archive.
// Replace mode requires password confirmation.
func (s *BackupService) ImportBundle(accountID uint, archivePath string, mode importer.Mode, password string) (*importer.Statistics, error) {
	if mode == importer.ModeReplace {
		if err := s.confirmPassword(accountID, password); err != nil {
			return nil, err
		}
	}

	b, err := s.parseAndValidate(archivePath)
	if err != nil {
		return nil, err
	}

	stats, err := s.restorer.Restore(accountID, b, mode)
	s.logImport(accountID, mode, stats, err)
	if err != nil {
		return nil, err
	}

	if usageErr := s.db.RecordRestoreUsage(accountID, time.Now()); usageErr != nil {
		log.Printf("Backup service: failed to record import usage: %v", usageErr)
	}
	return stats, nil
}

func (s *BackupService) logImport(accountID uint, mode importer.Mode, stats *importer.Statistics, err error) {
	if s.audit == nil {
		return
	}
	imported, skipped := 0, 0
	counts := map[string]int{}
	if stats != nil {
		imported = stats.TotalImported
		skipped = stats.TotalSkipped
		counts["recipes"] = stats.Counts.RecipesImported
		counts["collections"] = stats.Counts.CollectionsImported
		counts["meal_plans"] = stats.Counts.MealPlansImported
		counts["shopping_lists"] = stats.Counts.ShoppingListsImported
	}
	s.audit.LogImport(accountID, string(mode), imported, skipped, counts, err)
}

// ExportBundle generates a backup archive for direct download. The
// caller owns the returned file.
func (s *BackupService) ExportBundle(accountID uint) (string, int64, error) {
	path, size, err := s.generator.Generate(accountID, entities.BackupTypeManual)
	if err != nil {
		return "", 0, err
	}
	if usageErr := s.db.RecordBackupUsage(accountID, size, time.Now()); usageErr != nil {
		log.Printf("Backup service: failed to record export usage: %v", usageErr)
	}
	return path, size, nil
}

// BackupToCloud generates a backup and uploads it to the account's
// connected provider. The local archive is always removed.
func (s *BackupService) BackupToCloud(ctx context.Context, accountID uint, kind entities.ProviderKind) (*storage.BackupInfo, error) {
	client, err := s.resolver.ClientFor(ctx, accountID, kind)
	if err != nil {
		return nil, err
	}

	localPath, size, err := s.generator.Generate(accountID, entities.BackupTypeManual)
	if err != nil {
		s.logBackup(accountID, kind, 0, err)
		return nil, err
	}
	defer os.Remove(localPath)

	info, err := client.UploadBackup(ctx, accountID, localPath, entities.BackupTypeManual)
	s.logBackup(accountID, kind, size, err)
	if err != nil {
		return nil, err
	}

	record := &entities.BackupRecord{
		AccountID: accountID,
		Filename:  info.Filename,
		RemoteID:  info.ID,
		Provider:  kind,
		Type:      entities.BackupTypeManual,
		SizeBytes: info.Size,
		Status:    entities.BackupStatusSuccess,
	}
	if err := s.db.CreateBackupRecord(record); err != nil {
		log.Printf("Backup service: failed to record backup: %v", err)
	}
	if err := s.db.RecordBackupUsage(accountID, info.Size, time.Now()); err != nil {
		log.Printf("Backup service: failed to record usage: %v", err)
	}
	return info, nil
}

func (s *BackupService) logBackup(accountID uint, kind entities.ProviderKind, size int64, err error) {
	if s.audit != nil {
		s.audit.LogBackup(accountID, entities.BackupTypeManual, kind, size, err)
	}
}

// ListRemoteBackups lists the account's backups on the given provider,
// newest first.
func (s *BackupService) ListRemoteBackups(ctx context.Context, accountID uint, kind entities.ProviderKind, limit int) ([]storage.BackupInfo, error) {
	client, err := s.resolver.ClientFor(ctx, accountID, kind)
	if err != nil {
		return nil, err
	}
	return client.ListBackups(ctx, accountID, limit)
}

// PreviewRemoteBackup downloads a remote backup and reports its contents
// without importing anything. The downloaded file is always removed.
func (s *BackupService) PreviewRemoteBackup(ctx context.Context, accountID uint, kind entities.ProviderKind, backupID string) (*Preview, error) {
	client, err := s.resolver.ClientFor(ctx, accountID, kind)
	if err != nil {
		return nil, err
	}

	localPath, err := client.DownloadBackup(ctx, accountID, backupID)
	if err != nil {
		return nil, err
	}
	defer os.Remove(localPath)

	return s.PreviewBundle(localPath)
}

// RestoreFromCloud downloads a remote backup and runs the import
// pipeline on it. Always requires password confirmation because it can
// rewrite the account's data.
func (s *BackupService) RestoreFromCloud(ctx context.Context, accountID uint, kind entities.ProviderKind, backupID string, mode importer.Mode, password string) (*importer.Statistics, error) {
	if err := s.confirmPassword(accountID, password); err != nil {
		return nil, err
	}

	client, err := s.resolver.ClientFor(ctx, accountID, kind)
	if err != nil {
		return nil, err
	}

	localPath, err := client.DownloadBackup(ctx, accountID, backupID)
	if err != nil {
		s.logRestore(accountID, kind, backupID, nil, err)
		return nil, err
	}
	defer os.Remove(localPath)

	b, err := s.parseAndValidate(localPath)
	if err != nil {
		s.logRestore(accountID, kind, backupID, nil, err)
		return nil, err
	}

	stats, err := s.restorer.Restore(accountID, b, mode)
	s.logRestore(accountID, kind, backupID, stats, err)
	if err != nil {
		return nil, err
	}

	if usageErr := s.db.RecordRestoreUsage(accountID, time.Now()); usageErr != nil {
		log.Printf("Backup service: failed to record restore usage: %v", usageErr)
	}
	return stats, nil
}

func (s *BackupService) logRestore(accountID uint, kind entities.ProviderKind, backupID string, stats *importer.Statistics, err error) {
	if s.audit == nil {
		return
	}
	imported := 0
	if stats != nil {
		imported = stats.TotalImported
	}
	s.audit.LogRestore(accountID, kind, backupID, imported, err)
}

// DeleteRemoteBackup removes a backup from the provider.
func (s *BackupService) DeleteRemoteBackup(ctx context.Context, accountID uint, kind entities.ProviderKind, backupID string) error {
	client, err := s.resolver.ClientFor(ctx, accountID, kind)
	if err != nil {
		return err
	}
	return client.DeleteBackup(ctx, accountID, backupID)
}

// GetSchedule returns the account's backup schedule, creating the
// disabled default on first access.
func (s *BackupService) GetSchedule(accountID uint) (*entities.BackupSchedule, error) {
	return s.db.GetSchedule(accountID)
}

// UpdateSchedule applies a full schedule update and recomputes the next
// run time.
func (s *BackupService) UpdateSchedule(accountID uint, input ScheduleInput) (*entities.BackupSchedule, error) {
	if !entities.ValidBackupFrequency(input.Frequency) {
		return nil, fmt.Errorf("invalid frequency %q", input.Frequency)
	}
	if input.Enabled && !entities.ValidProviderKind(entities.ProviderKind(input.Provider)) {
		return nil, fmt.Errorf("invalid provider %q", input.Provider)
	}
	if _, err := time.Parse("15:04", input.Time); err != nil {
		return nil, fmt.Errorf("invalid time %q, expected HH:MM", input.Time)
	}
	if input.Timezone != "" {
		if _, err := time.LoadLocation(input.Timezone); err != nil {
			return nil, fmt.Errorf("invalid timezone %q", input.Timezone)
		}
	}

	schedule, err := s.db.GetSchedule(accountID)
	if err != nil {
		return nil, err
	}

	schedule.Enabled = input.Enabled
	schedule.Frequency = entities.BackupFrequency(input.Frequency)
	schedule.Time = input.Time
	if input.Timezone != "" {
		schedule.Timezone = input.Timezone
	}
	schedule.Provider = entities.ProviderKind(input.Provider)

	if schedule.Enabled {
		// Enabling a schedule requires a connected provider.
		has, err := s.resolver.creds.HasCredential(accountID, schedule.Provider)
		if err != nil {
			return nil, fmt.Errorf("failed to check credential: %w", err)
		}
		if !has {
			return nil, &ProviderNotConnectedError{Provider: input.Provider}
		}

		next, err := scheduler.NextRun(schedule, time.Now())
		if err != nil {
			return nil, err
		}
		schedule.NextBackup = &next
		schedule.FailureCount = 0
	} else {
		schedule.NextBackup = nil
	}

	if err := s.db.SaveSchedule(schedule); err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.LogScheduleChange(accountID, schedule)
	}
	return schedule, nil
}

// BackupHistory returns the account's local backup records.
func (s *BackupService) BackupHistory(accountID uint, limit int) ([]entities.BackupRecord, error) {
	return s.db.BackupRecordsForAccount(accountID, limit)
}

// AuditTrail returns recent audit events for the account.
func (s *BackupService) AuditTrail(accountID uint, limit int) ([]entities.AuditEvent, error) {
	return s.db.AuditEventsForAccount(accountID, limit)
}

// UsageStats returns backup/restore usage counters for the account.
func (s *BackupService) UsageStats(accountID uint) (*entities.UsageStats, error) {
	return s.db.UsageStatsForAccount(accountID)
}
