package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mealkeeper/mealkeeper/internal/audit"
	"github.com/mealkeeper/mealkeeper/internal/bundle"
	"github.com/mealkeeper/mealkeeper/internal/config"
	"github.com/mealkeeper/mealkeeper/internal/database"
	"github.com/mealkeeper/mealkeeper/internal/entities"
	http_controllers "github.com/mealkeeper/mealkeeper/internal/http"
	"github.com/mealkeeper/mealkeeper/internal/notify"
	"github.com/mealkeeper/mealkeeper/internal/oauth2"
	"github.com/mealkeeper/mealkeeper/internal/oauth2/providers"
	"github.com/mealkeeper/mealkeeper/internal/scheduler"
	"github.com/mealkeeper/mealkeeper/internal/services"
	"github.com/mealkeeper/mealkeeper/internal/statestore"
	"github.com/mealkeeper/mealkeeper/internal/tasks"
	"github.com/mealkeeper/mealkeeper/internal/tokenstore"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT/SIGTERM, then drains.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

// pruneEnqueuer bridges the scheduler to the task queue.
type pruneEnqueuer struct {
	client *tasks.Client
	keep   int
}

func (p *pruneEnqueuer) EnqueuePrune(accountID uint, provider entities.ProviderKind) error {
	_, err := p.client.Add(tasks.PruneBackupsTask{
		AccountID: accountID,
		Provider:  string(provider),
		Keep:      p.keep,
	}).Save()
	return err
}

// Run wires the application together and serves it.
func Run(cfg *config.Config, version string) {
	log.Printf("Starting MealKeeper v%s", version)

	if err := os.MkdirAll(cfg.Backup.OutputDir, 0o755); err != nil {
		log.Fatalf("Failed to create backup output directory: %v", err)
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	// Credential storage with at-rest encryption
	tokenStore, err := tokenstore.New(db.DB, cfg.Crypto.TokenKey)
	if err != nil {
		log.Fatalf("Failed to initialize token store: %v", err)
	}

	// OAuth provider registry
	registry := oauth2.NewRegistry()
	if cfg.Dropbox.AppKey != "" {
		registry.Register(providers.NewDropbox(cfg.Dropbox.AppKey))
	} else {
		log.Printf("WARNING: DROPBOX_APP_KEY not set, Dropbox backups disabled")
	}
	if cfg.Drive.ClientID != "" && cfg.Drive.ClientSecret != "" {
		registry.Register(providers.NewDrive(cfg.Drive.ClientID, cfg.Drive.ClientSecret))
	} else {
		log.Printf("WARNING: DRIVE_CLIENT_ID/DRIVE_CLIENT_SECRET not set, Google Drive backups disabled")
	}

	// Authorization flow state store, durable with in-memory fallback
	var states statestore.Store
	if durable, err := statestore.NewDurableStore(db.DB); err != nil {
		log.Printf("WARNING: durable state store unavailable, using in-memory: %v", err)
		states = statestore.NewMemoryStore()
	} else {
		states = statestore.NewTwoTier(durable)
	}
	flow := oauth2.NewFlowHandler(registry, tokenStore, states)

	auditService := audit.NewService(db)
	resolver := services.NewProviderResolver(registry, tokenStore)
	generator := bundle.NewGenerator(db, cfg.Backup.OutputDir)
	backupService := services.NewBackupService(db, generator, resolver, auditService)

	// Task queue for background housekeeping
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	var enqueuer *pruneEnqueuer
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		})
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewPruneBackupsQueue(resolver),
			tasks.NewCleanupAuditEventsQueue(db),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		enqueuer = &pruneEnqueuer{client: taskClient, keep: cfg.Backup.KeepRemote}

		// Periodic audit trail cleanup rides the task queue
		if _, err := taskClient.Add(tasks.CleanupAuditEventsTask{RetentionDays: cfg.Audit.RetentionDays}).Save(); err != nil {
			log.Printf("WARNING: failed to enqueue audit cleanup: %v", err)
		}
	}

	// Automatic backup scheduler
	var backupScheduler *scheduler.BackupScheduler
	if cfg.Scheduler.Enabled {
		var pruner scheduler.PruneEnqueuer
		if enqueuer != nil {
			pruner = enqueuer
		}
		backupScheduler = scheduler.NewBackupScheduler(db, generator, resolver, notify.NewLogSender(), pruner)
		if err := backupScheduler.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start backup scheduler: %v", err)
		}
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:      db,
		BackupService: backupService,
		FlowHandler:   flow,
		TokenStore:    tokenStore,
		Version:       version,
	})

	onShutdown := func(ctx context.Context) {
		if backupScheduler != nil {
			backupScheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
