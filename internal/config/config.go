package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Backup
		Dropbox
		Drive
		Crypto
		Tasks
		Audit
		Scheduler
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Backup struct {
		// OutputDir holds generated archives before upload or download.
		OutputDir string
		// KeepRemote is how many remote backups to retain per account.
		KeepRemote int
	}
	Dropbox struct {
		AppKey string
	}
	Drive struct {
		ClientID     string
		ClientSecret string
	}
	Crypto struct {
		// TokenKey is the hex-encoded AES-256 key protecting stored
		// provider credentials.
		TokenKey string
		// BcryptCost for password hashing.
		BcryptCost int
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Audit struct {
		RetentionDays int
	}
	Scheduler struct {
		Enabled bool
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("backup_output_dir", DefaultBackupOutputDir)
	v.SetDefault("backup_keep_remote", 10)
	v.SetDefault("bcrypt_cost", 12)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Housekeeping defaults
	v.SetDefault("audit_retention_days", 90)
	v.SetDefault("scheduler_enabled", true)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Backup: Backup{
			OutputDir:  v.GetString("BACKUP_OUTPUT_DIR"),
			KeepRemote: v.GetInt("BACKUP_KEEP_REMOTE"),
		},
		Dropbox: Dropbox{
			AppKey: v.GetString("DROPBOX_APP_KEY"),
		},
		Drive: Drive{
			ClientID:     v.GetString("DRIVE_CLIENT_ID"),
			ClientSecret: v.GetString("DRIVE_CLIENT_SECRET"),
		},
		Crypto: Crypto{
			TokenKey:   v.GetString("MEALKEEPER_TOKEN_KEY"),
			BcryptCost: v.GetInt("BCRYPT_COST"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Audit: Audit{
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
		Scheduler: Scheduler{
			Enabled: v.GetBool("SCHEDULER_ENABLED"),
		},
	}
}
