package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/semmidev/sqlkeep/internal/domain"
)

// LocalStorage is a directory of dump files. It serves both as the backup
// directory and as a "local" off-site copy target (a second mount).
// The directory is created on first write.
type LocalStorage struct {
	basePath string
}

func NewLocal(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

func (l *LocalStorage) ensureDir() error {
	if err := os.MkdirAll(l.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	return nil
}

func (l *LocalStorage) Dir() string {
	return l.basePath
}

func (l *LocalStorage) GetPath(filename string) string {
	return filepath.Join(l.basePath, filename)
}

// CreateTemp opens a hidden scratch file inside the directory, so the final
// rename never crosses filesystems.
func (l *LocalStorage) CreateTemp() (*os.File, error) {
	if err := l.ensureDir(); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(l.basePath, ".partial-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return f, nil
}

// Commit publishes tempPath under filename. An existing file is never
// replaced.
func (l *LocalStorage) Commit(tempPath, filename string) error {
	dest := l.GetPath(filename)
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Link(tempPath, dest); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("backup file already exists: %s", filename)
		}
		return fmt.Errorf("failed to publish backup: %w", err)
	}
	return os.Remove(tempPath)
}

// Files returns the backups in the directory, newest first. A missing
// directory is an empty listing.
func (l *LocalStorage) Files(ctx context.Context) ([]domain.BackupFile, error) {
	matches, err := filepath.Glob(filepath.Join(l.basePath, "*"+domain.BackupExtension))
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	files := make([]domain.BackupFile, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to get file info for %s: %w", filepath.Base(path), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, domain.BackupFile{
			Filename:  info.Name(),
			Path:      path,
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

func (l *LocalStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	if err := l.ensureDir(); err != nil {
		return err
	}
	destPath := l.GetPath(remoteName)

	source, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer source.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest: %w", err)
	}
	defer dest.Close()

	if _, err := dest.ReadFrom(source); err != nil {
		return fmt.Errorf("failed to copy: %w", err)
	}

	return dest.Close()
}

func (l *LocalStorage) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			files = append(files, entry.Name())
		}
	}

	return files, nil
}

func (l *LocalStorage) Delete(ctx context.Context, remoteName string) error {
	filePath := l.GetPath(remoteName)
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetOldFiles only considers files carrying a backup timestamp in their name.
func (l *LocalStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	names, err := l.List(ctx)
	if err != nil {
		return nil, err
	}

	var oldFiles []string
	for _, name := range names {
		created, err := domain.BackupTime(name)
		if err != nil {
			continue
		}
		if created.Before(cutoffTime) {
			oldFiles = append(oldFiles, name)
		}
	}

	return oldFiles, nil
}
