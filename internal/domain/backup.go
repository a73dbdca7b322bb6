package domain

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

const (
	BackupPrefix     = "backup_"
	BackupExtension  = ".sql"
	BackupTimeLayout = "2006-01-02_15-04-05"
)

var backupNamePattern = regexp.MustCompile(`^backup_(\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2})\.sql$`)

// BackupFile is a dump artifact in the backup directory. It is never
// modified after it has been written.
type BackupFile struct {
	Filename  string
	Path      string
	Size      int64
	CreatedAt time.Time
	Tables    int
}

// BackupMetadata is the listing view of a BackupFile.
type BackupMetadata struct {
	Filename  string `json:"filename"`
	Path      string `json:"path"`
	Size      string `json:"size"`
	Created   string `json:"created"`
	Age       string `json:"age"`
	Timestamp int64  `json:"timestamp"`
}

func BackupFilename(t time.Time) string {
	return fmt.Sprintf("%s%s%s", BackupPrefix, t.Format(BackupTimeLayout), BackupExtension)
}

func IsBackupFilename(name string) bool {
	return backupNamePattern.MatchString(name)
}

// BackupTime extracts the creation timestamp embedded in a backup filename.
// Compressed off-site copies (".sql.gz") are accepted as well.
func BackupTime(name string) (time.Time, error) {
	if n := len(name); n > 3 && name[n-3:] == ".gz" {
		name = name[:n-3]
	}
	m := backupNamePattern.FindStringSubmatch(name)
	if len(m) < 2 {
		return time.Time{}, fmt.Errorf("invalid backup filename: %s", name)
	}
	return time.ParseInLocation(BackupTimeLayout, m[1], time.Local)
}

// ScheduledJob is a recurring job registered with the scheduler.
type ScheduledJob struct {
	Name     string
	Schedule string
	Executor JobExecutor
}

type JobExecutor interface {
	Execute(ctx context.Context) error
}
