package usecase

import (
	"context"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/semmidev/sqlkeep/internal/domain"
)

type BackupList struct {
	dir BackupDirectory
}

func NewBackupList(dir BackupDirectory) *BackupList {
	return &BackupList{dir: dir}
}

// Execute returns metadata for every backup file, newest first.
func (uc *BackupList) Execute(ctx context.Context) ([]domain.BackupMetadata, error) {
	files, err := uc.dir.Files(ctx)
	if err != nil {
		return nil, domain.Wrap("backup listing failed", err)
	}

	list := make([]domain.BackupMetadata, 0, len(files))
	for _, f := range files {
		list = append(list, domain.BackupMetadata{
			Filename:  f.Filename,
			Path:      f.Path,
			Size:      FormatBytes(f.Size),
			Created:   f.CreatedAt.Format("2006-01-02 15:04:05"),
			Age:       humanize.Time(f.CreatedAt),
			Timestamp: f.CreatedAt.Unix(),
		})
	}
	return list, nil
}

var byteUnits = []string{"B", "KB", "MB", "GB"}

// FormatBytes renders n in 1024 based units, at most GB, with up to two
// decimals.
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	size := float64(n)
	unit := 0
	for size >= 1024 && unit < len(byteUnits)-1 {
		size /= 1024
		unit++
	}
	size = math.Round(size*100) / 100
	return fmt.Sprintf("%s %s", humanize.FtoaWithDigits(size, 2), byteUnits[unit])
}
