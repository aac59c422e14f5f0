// Package scheduler drives automatic backups. A cron tick at the top
// of every hour picks up all due schedules and runs them concurrently,
// with per-account isolation so one failing account never blocks the
// rest.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mealkeeper/mealkeeper/internal/entities"
	"github.com/mealkeeper/mealkeeper/internal/storage"
)

const (
	// maxConcurrentBackups bounds the fan-out per tick.
	maxConcurrentBackups = 5

	// maxFailures is how many consecutive failures disable a schedule.
	maxFailures = 3

	// retryDelay is applied after a failure that has not yet hit the
	// disable threshold.
	retryDelay = time.Hour
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ScheduleStore is the persistence surface the scheduler needs.
type ScheduleStore interface {
	DueSchedules(now time.Time) ([]entities.BackupSchedule, error)
	SaveSchedule(schedule *entities.BackupSchedule) error
	CreateBackupRecord(record *entities.BackupRecord) error
	SaveBackupRecord(record *entities.BackupRecord) error
	RecordBackupUsage(accountID uint, size int64, at time.Time) error
}

// Generator produces a backup archive for an account.
type Generator interface {
	Generate(accountID uint, backupType entities.BackupType) (string, int64, error)
}

// ClientResolver returns a ready storage client for an account's
// provider.
type ClientResolver interface {
	ClientFor(ctx context.Context, accountID uint, kind entities.ProviderKind) (storage.Client, error)
}

// FailureNotifier alerts the account owner when a schedule is disabled.
type FailureNotifier interface {
	SendBackupDisabled(accountID uint, provider string, lastError string) error
}

// PruneEnqueuer queues retention cleanup after a successful backup.
// Best effort, enqueue failures are logged and ignored.
type PruneEnqueuer interface {
	EnqueuePrune(accountID uint, provider entities.ProviderKind) error
}

// BackupScheduler runs automatic backups for all accounts.
type BackupScheduler struct {
	store     ScheduleStore
	generator Generator
	resolver  ClientResolver
	notifier  FailureNotifier
	pruner    PruneEnqueuer
	clock     Clock

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isTicking  bool
	cancelFunc context.CancelFunc
}

// NewBackupScheduler creates a scheduler. Notifier and pruner may be
// nil, the corresponding steps are skipped.
func NewBackupScheduler(store ScheduleStore, generator Generator, resolver ClientResolver, notifier FailureNotifier, pruner PruneEnqueuer) *BackupScheduler {
	return &BackupScheduler{
		store:     store,
		generator: generator,
		resolver:  resolver,
		notifier:  notifier,
		pruner:    pruner,
		clock:     systemClock{},
		cron:      cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// WithClock replaces the clock. For tests.
func (s *BackupScheduler) WithClock(clock Clock) *BackupScheduler {
	s.clock = clock
	return s
}

// Start begins the hourly tick.
func (s *BackupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	entryID, err := s.cron.AddFunc("0 * * * *", func() {
		s.RunDue(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule backup tick: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true
	log.Printf("Backup scheduler: started (hourly tick)")

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for in-flight backup runs to finish. The mutex is released
// before waiting so a running tick can clear its in-progress flag.
func (s *BackupScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancelFunc
	s.cancelFunc = nil
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()

	if cancel != nil {
		cancel()
	}
	log.Printf("Backup scheduler: stopped")
}

// IsRunning returns whether the scheduler is active.
func (s *BackupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// RunDue executes all schedules due at the current tick. Each account
// runs in isolation, a failure in one never aborts the others. Only one
// tick may be active at a time, an overlapping tick is skipped.
func (s *BackupScheduler) RunDue(ctx context.Context) {
	s.mu.Lock()
	if s.isTicking {
		s.mu.Unlock()
		log.Printf("Backup scheduler: tick skipped (previous tick still running)")
		return
	}
	s.isTicking = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isTicking = false
		s.mu.Unlock()
	}()

	now := s.clock.Now()

	due, err := s.store.DueSchedules(now)
	if err != nil {
		log.Printf("Backup scheduler: failed to query due schedules: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	log.Printf("Backup scheduler: %d schedules due", len(due))

	sem := make(chan struct{}, maxConcurrentBackups)
	var wg sync.WaitGroup
	for i := range due {
		schedule := due[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.runOne(ctx, &schedule)
		}()
	}
	wg.Wait()
}

// runOne performs a single scheduled backup and updates the schedule's
// state machine.
func (s *BackupScheduler) runOne(ctx context.Context, schedule *entities.BackupSchedule) {
	now := s.clock.Now()

	schedule.LastBackupStatus = entities.BackupStatusInProgress
	if err := s.store.SaveSchedule(schedule); err != nil {
		log.Printf("Backup scheduler: account %d: failed to mark in progress: %v", schedule.AccountID, err)
		return
	}

	record := &entities.BackupRecord{
		AccountID: schedule.AccountID,
		Provider:  schedule.Provider,
		Type:      entities.BackupTypeAutomatic,
		Status:    entities.BackupStatusInProgress,
	}
	if err := s.store.CreateBackupRecord(record); err != nil {
		log.Printf("Backup scheduler: account %d: failed to create backup record: %v", schedule.AccountID, err)
		record = nil
	}

	info, runErr := s.performBackup(ctx, schedule)
	if runErr != nil {
		s.recordFailure(schedule, record, now, runErr)
		return
	}
	s.recordSuccess(schedule, record, now, info)
}

// performBackup generates the archive and uploads it. The local file is
// always removed, whether or not the upload succeeded.
func (s *BackupScheduler) performBackup(ctx context.Context, schedule *entities.BackupSchedule) (*storage.BackupInfo, error) {
	client, err := s.resolver.ClientFor(ctx, schedule.AccountID, schedule.Provider)
	if err != nil {
		return nil, fmt.Errorf("resolve storage client: %w", err)
	}

	localPath, _, err := s.generator.Generate(schedule.AccountID, entities.BackupTypeAutomatic)
	if err != nil {
		return nil, fmt.Errorf("generate backup: %w", err)
	}
	defer os.Remove(localPath)

	info, err := client.UploadBackup(ctx, schedule.AccountID, localPath, entities.BackupTypeAutomatic)
	if err != nil {
		return nil, fmt.Errorf("upload backup: %w", err)
	}
	return info, nil
}

func (s *BackupScheduler) recordSuccess(schedule *entities.BackupSchedule, record *entities.BackupRecord, now time.Time, info *storage.BackupInfo) {
	schedule.LastBackup = &now
	schedule.LastBackupStatus = entities.BackupStatusSuccess
	schedule.FailureCount = 0

	next, err := NextRun(schedule, now)
	if err != nil {
		log.Printf("Backup scheduler: account %d: failed to compute next run: %v", schedule.AccountID, err)
		next = now.Add(24 * time.Hour)
	}
	schedule.NextBackup = &next

	if err := s.store.SaveSchedule(schedule); err != nil {
		log.Printf("Backup scheduler: account %d: failed to save schedule: %v", schedule.AccountID, err)
	}

	if record != nil {
		record.Filename = info.Filename
		record.RemoteID = info.ID
		record.SizeBytes = info.Size
		record.Status = entities.BackupStatusSuccess
		if err := s.store.SaveBackupRecord(record); err != nil {
			log.Printf("Backup scheduler: account %d: failed to record backup: %v", schedule.AccountID, err)
		}
	}
	if err := s.store.RecordBackupUsage(schedule.AccountID, info.Size, now); err != nil {
		log.Printf("Backup scheduler: account %d: failed to record usage: %v", schedule.AccountID, err)
	}

	if s.pruner != nil {
		if err := s.pruner.EnqueuePrune(schedule.AccountID, schedule.Provider); err != nil {
			log.Printf("Backup scheduler: account %d: failed to enqueue prune: %v", schedule.AccountID, err)
		}
	}

	log.Printf("Backup scheduler: account %d: backup uploaded (%s, %d bytes), next run %s",
		schedule.AccountID, info.Filename, info.Size, next.Format(time.RFC3339))
}

func (s *BackupScheduler) recordFailure(schedule *entities.BackupSchedule, record *entities.BackupRecord, now time.Time, runErr error) {
	schedule.LastBackupStatus = entities.BackupStatusFailed
	schedule.FailureCount++

	if schedule.FailureCount >= maxFailures {
		schedule.Enabled = false
		schedule.NextBackup = nil
		log.Printf("Backup scheduler: account %d: disabled after %d consecutive failures: %v",
			schedule.AccountID, schedule.FailureCount, runErr)
		if s.notifier != nil {
			if err := s.notifier.SendBackupDisabled(schedule.AccountID, string(schedule.Provider), runErr.Error()); err != nil {
				log.Printf("Backup scheduler: account %d: failed to send notification: %v", schedule.AccountID, err)
			}
		}
	} else {
		retry := now.Add(retryDelay)
		schedule.NextBackup = &retry
		log.Printf("Backup scheduler: account %d: backup failed (attempt %d/%d), retrying at %s: %v",
			schedule.AccountID, schedule.FailureCount, maxFailures, retry.Format(time.RFC3339), runErr)
	}

	if err := s.store.SaveSchedule(schedule); err != nil {
		log.Printf("Backup scheduler: account %d: failed to save schedule: %v", schedule.AccountID, err)
	}

	if record != nil {
		record.Status = entities.BackupStatusFailed
		record.ErrorMsg = runErr.Error()
		if err := s.store.SaveBackupRecord(record); err != nil {
			log.Printf("Backup scheduler: account %d: failed to record failure: %v", schedule.AccountID, err)
		}
	}
}
