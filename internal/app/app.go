package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/semmidev/sqlkeep/internal/adapter/compressor"
	"github.com/semmidev/sqlkeep/internal/adapter/database"
	"github.com/semmidev/sqlkeep/internal/adapter/httpapi"
	"github.com/semmidev/sqlkeep/internal/adapter/storage"
	"github.com/semmidev/sqlkeep/internal/config"
	"github.com/semmidev/sqlkeep/internal/domain"
	"github.com/semmidev/sqlkeep/internal/infrastructure/logger"
	"github.com/semmidev/sqlkeep/internal/infrastructure/scheduler"
	"github.com/semmidev/sqlkeep/internal/usecase"
)

const (
	cleanupSchedule = "0 0 3 * * *"
	shutdownTimeout = 30 * time.Second
)

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *database.MySQLDatabase
	uploadTargets []usecase.UploadTarget

	backupUC  *usecase.Backup
	listUC    *usecase.BackupList
	restoreUC *usecase.Restore
	importer  *usecase.Importer
	exportUC  *usecase.Export
	schemaUC  *usecase.Schema
	cleanupUC *usecase.Cleanup
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(logger.Options{
		Level: cfg.App.LogLevel,
		File:  cfg.App.LogFile,
		JSON:  cfg.App.LogJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Infof("✓ Connected to %s", db.Name())

	localStorage := storage.NewLocal(cfg.ResolvePath(cfg.Paths.BackupDir))

	resolver, err := usecase.NewSourceResolver(cfg.Paths.ProjectRoot, cfg.Paths.BackupDir, cfg.Paths.UploadsDir)
	if err != nil {
		db.Close()
		log.Close()
		return nil, err
	}

	uploadTargets, notifier := initializeUploadTargets(ctx, cfg, log)
	comp := compressor.NewGzip()

	backupUC := usecase.NewBackup(
		db,
		localStorage,
		uploadTargets,
		comp,
		notifier,
		log,
		cfg.Backup.CompressUploads,
	)

	return &App{
		config:        cfg,
		logger:        log,
		db:            db,
		uploadTargets: uploadTargets,
		backupUC:      backupUC,
		listUC:        usecase.NewBackupList(localStorage),
		restoreUC: usecase.NewRestore(db, resolver, comp, backupUC, log, usecase.RestoreOptions{
			MaxErrorDetails:  cfg.Restore.MaxErrorDetails,
			PreRestoreBackup: cfg.Restore.PreRestoreBackup,
		}),
		importer:  usecase.NewImporter(db, log, cfg.Import.MaxPayloadBytes),
		exportUC:  usecase.NewExport(db, log),
		schemaUC:  usecase.NewSchema(db, log),
		cleanupUC: usecase.NewCleanup(uploadTargets, log, cfg.Backup.RetentionDays),
	}, nil
}

// initializeUploadTargets builds the off-site copy targets. A target that
// fails to initialize is logged and skipped. The first Telegram target also
// serves as the job outcome notifier.
func initializeUploadTargets(ctx context.Context, cfg *config.Config, log *logger.Logger) ([]usecase.UploadTarget, domain.Notifier) {
	var (
		targets  []usecase.UploadTarget
		notifier domain.Notifier
	)

	for _, targetCfg := range cfg.GetEnabledUploadTargets() {
		var stor domain.Storage

		switch targetCfg.Type {
		case "gdrive":
			gdrive, err := storage.NewGDrive(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Google Drive: %v", err)
				continue
			}
			stor = gdrive
			log.Infof("✓ Google Drive copies enabled")

		case "s3":
			s3, err := storage.NewS3(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize S3: %v", err)
				continue
			}
			stor = s3
			log.Infof("✓ AWS S3 copies enabled (bucket: %s)", targetCfg.Bucket)

		case "telegram":
			tg, err := storage.NewTelegram(&targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Telegram: %v", err)
				continue
			}
			if notifier == nil {
				notifier = tg
			}
			stor = tg
			log.Infof("✓ Telegram enabled (send file: %t)", targetCfg.SendFile && !targetCfg.NotifyOnly)

		case "local":
			dir := cfg.ResolvePath(targetCfg.Path)
			stor = storage.NewLocal(dir)
			log.Infof("✓ Local mirror enabled (%s)", dir)

		default:
			log.Warnf("Unknown upload target type: %s", targetCfg.Type)
			continue
		}

		targets = append(targets, usecase.UploadTarget{
			Name:    targetCfg.Type,
			Storage: stor,
		})
	}

	return targets, notifier
}

func (a *App) Logger() *logger.Logger { return a.logger }
func (a *App) Backup() *usecase.Backup { return a.backupUC }
func (a *App) List() *usecase.BackupList { return a.listUC }
func (a *App) Restore() *usecase.Restore { return a.restoreUC }
func (a *App) Importer() *usecase.Importer { return a.importer }
func (a *App) Export() *usecase.Export { return a.exportUC }
func (a *App) Schema() *usecase.Schema { return a.schemaUC }
func (a *App) Cleanup() *usecase.Cleanup { return a.cleanupUC }
func (a *App) Config() *config.Config { return a.config }

// startScheduler registers the backup and cleanup jobs. Without a backup
// schedule only the off-site cleanup runs.
func (a *App) startScheduler(ctx context.Context) (*scheduler.Scheduler, error) {
	sched := scheduler.New(ctx, a.logger)

	jobs := []domain.ScheduledJob{}
	if a.config.Backup.Schedule != "" {
		jobs = append(jobs, domain.ScheduledJob{Name: "backup", Schedule: a.config.Backup.Schedule, Executor: a.backupUC})
	}
	if len(a.uploadTargets) > 0 {
		jobs = append(jobs, domain.ScheduledJob{Name: "cleanup", Schedule: cleanupSchedule, Executor: a.cleanupUC})
	}

	for _, job := range jobs {
		if err := sched.AddJob(job.Name, job.Schedule, job.Executor.Execute); err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
		a.logger.Infof("Scheduled %s: %s", job.Name, job.Schedule)
	}

	sched.Start()
	a.logger.Infof("Backup destinations: local + %d off-site target(s)", len(a.uploadTargets))
	return sched, nil
}

// Run executes the scheduled jobs until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	sched, err := a.startScheduler(ctx)
	if err != nil {
		return err
	}
	defer sched.Stop()

	a.logger.Infof("Scheduler started successfully")
	<-ctx.Done()
	return nil
}

// Serve runs the HTTP API alongside the scheduler until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	sched, err := a.startScheduler(ctx)
	if err != nil {
		return err
	}
	defer sched.Stop()

	router := httpapi.NewRouter(httpapi.Services{
		Backup:   a.backupUC,
		List:     a.listUC,
		Restore:  a.restoreUC,
		Importer: a.importer,
		Export:   a.exportUC,
		Schema:   a.schemaUC,
	}, a.logger, a.config.HTTP.MaxUploadMB<<20)

	srv := &http.Server{
		Addr:              a.config.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP API listening on %s", a.config.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")
	if err := a.db.Close(); err != nil {
		a.logger.Warnf("Closing database: %v", err)
	}
	a.logger.Close()
}
