package config

// Default paths
const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./mealkeeper.db"

	// DefaultBackupOutputDir is where generated backup archives are staged
	DefaultBackupOutputDir = "./backups"
)
