// Package notify delivers one-off alerts to account owners. The only
// alert today is the schedule-disabled notice sent after repeated
// backup failures.
package notify

import "log"

// Sender delivers notifications to account owners.
type Sender interface {
	// SendBackupDisabled tells the account owner their automatic
	// backup schedule was disabled after repeated failures.
	SendBackupDisabled(accountID uint, provider string, lastError string) error
}

// LogSender writes notifications to the application log. It stands in
// until an email or push channel is configured.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) SendBackupDisabled(accountID uint, provider string, lastError string) error {
	log.Printf("[NOTIFY] Automatic backups disabled for account %d (provider %s) after repeated failures: %s",
		accountID, provider, lastError)
	return nil
}
