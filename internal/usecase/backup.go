package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/semmidev/sqlkeep/internal/domain"
	"github.com/semmidev/sqlkeep/internal/sqldump"
)

type UploadTarget struct {
	Name    string
	Storage domain.Storage
}

// BackupDirectory is the single local directory holding backup files.
type BackupDirectory interface {
	Dir() string
	GetPath(filename string) string
	CreateTemp() (*os.File, error)
	Commit(tempPath, filename string) error
	Files(ctx context.Context) ([]domain.BackupFile, error)
}

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

type Backup struct {
	db            domain.Database
	dir           BackupDirectory
	uploadTargets []UploadTarget
	compressor    domain.Compressor
	notifier      domain.Notifier
	logger        Logger
	compress      bool
	now           func() time.Time
}

func NewBackup(
	db domain.Database,
	dir BackupDirectory,
	uploadTargets []UploadTarget,
	compressor domain.Compressor,
	notifier domain.Notifier,
	logger Logger,
	compress bool,
) *Backup {
	return &Backup{
		db:            db,
		dir:           dir,
		uploadTargets: uploadTargets,
		compressor:    compressor,
		notifier:      notifier,
		logger:        logger,
		compress:      compress,
		now:           time.Now,
	}
}

// Execute runs a backup for the scheduler.
func (uc *Backup) Execute(ctx context.Context) error {
	_, err := uc.Create(ctx)
	return err
}

// Create dumps every table into a new backup file and then copies it to
// the configured off-site targets. Off-site failures are logged only.
func (uc *Backup) Create(ctx context.Context) (*domain.BackupFile, error) {
	start := uc.now()
	jobID := uuid.NewString()
	dbName := uc.db.Name()
	uc.logger.Infof("[%s] [%s] Starting backup...", jobID, dbName)

	file, err := uc.create(ctx, start)
	if err != nil {
		err = domain.Wrap("backup creation failed", err)
		uc.logger.Errorf("[%s] [%s] %v", jobID, dbName, err)
		uc.notify(ctx, fmt.Sprintf("❌ Backup of %s failed: %v", dbName, err))
		return nil, err
	}

	uc.logger.Infof("[%s] [%s] Backup created: %s (%d tables, %s)",
		jobID, dbName, file.Filename, file.Tables, humanize.Bytes(uint64(file.Size)))

	if len(uc.uploadTargets) > 0 {
		uc.copyOffsite(ctx, jobID, file)
	}

	uc.logger.Infof("[%s] [%s] Backup completed in %s: %s",
		jobID, dbName, time.Since(start).Round(time.Millisecond), file.Filename)

	return file, nil
}

func (uc *Backup) create(ctx context.Context, ts time.Time) (*domain.BackupFile, error) {
	if err := uc.db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database ping: %w", err)
	}

	filename := domain.BackupFilename(ts)
	if _, err := os.Stat(uc.dir.GetPath(filename)); err == nil {
		return nil, fmt.Errorf("backup file already exists: %s", filename)
	}

	tmp, err := uc.dir.CreateTemp()
	if err != nil {
		return nil, err
	}
	tempPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tempPath)
		}
	}()

	serializer := sqldump.NewSerializer(uc.db, uc.db.Name())
	stats, err := serializer.DumpAll(ctx, tmp)
	if err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write backup file: %w", err)
	}

	if err := uc.dir.Commit(tempPath, filename); err != nil {
		return nil, err
	}
	committed = true

	return &domain.BackupFile{
		Filename:  filename,
		Path:      uc.dir.GetPath(filename),
		Size:      stats.Bytes,
		CreatedAt: ts,
		Tables:    stats.Tables,
	}, nil
}

func (uc *Backup) copyOffsite(ctx context.Context, jobID string, file *domain.BackupFile) {
	path, name := file.Path, file.Filename

	if uc.compress {
		compressedName := name + uc.compressor.Extension()
		compressedPath := filepath.Join(os.TempDir(), compressedName)

		uc.logger.Infof("[%s] Compressing backup...", jobID)
		if err := uc.compressor.Compress(path, compressedPath); err != nil {
			uc.logger.Errorf("[%s] Compression failed, skipping off-site copies: %v", jobID, err)
			return
		}
		defer os.Remove(compressedPath)

		if info, err := os.Stat(compressedPath); err == nil && file.Size > 0 {
			uc.logger.Infof("[%s] Compression complete, size: %s (%.1f%% of original)",
				jobID, humanize.Bytes(uint64(info.Size())), float64(info.Size())/float64(file.Size)*100)
		}
		path, name = compressedPath, compressedName
	}

	uc.uploadToTargets(ctx, jobID, path, name)
}

func (uc *Backup) uploadToTargets(ctx context.Context, jobID, filePath, filename string) {
	var wg sync.WaitGroup

	for _, target := range uc.uploadTargets {
		wg.Add(1)
		go func(t UploadTarget) {
			defer wg.Done()

			uc.logger.Infof("[%s] Uploading to %s...", jobID, t.Name)
			if err := t.Storage.Upload(ctx, filePath, filename); err != nil {
				uc.logger.Errorf("[%s] Failed to upload to %s: %v", jobID, t.Name, err)
			} else {
				uc.logger.Infof("[%s] Successfully uploaded to %s", jobID, t.Name)
			}
		}(target)
	}

	wg.Wait()
}

func (uc *Backup) notify(ctx context.Context, message string) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Notify(ctx, message); err != nil {
		uc.logger.Warnf("Failed to send notification: %v", err)
	}
}
