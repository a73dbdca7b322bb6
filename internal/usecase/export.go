package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/semmidev/sqlkeep/internal/domain"
	"github.com/semmidev/sqlkeep/internal/sqldump"
)

type Export struct {
	db     domain.Database
	logger Logger
}

func NewExport(db domain.Database, logger Logger) *Export {
	return &Export{db: db, logger: logger}
}

// ExportFilename is the download name offered for an export made at t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("export_%s%s", t.Format(domain.BackupTimeLayout), domain.BackupExtension)
}

// Prepare validates a comma separated table list before anything is
// written to the sink.
func (uc *Export) Prepare(tableList string) ([]string, error) {
	tables, err := domain.ParseTableList(tableList)
	if err != nil {
		return nil, domain.Wrap("export failed", err)
	}
	return tables, nil
}

// Execute writes a dump of tables to w.
func (uc *Export) Execute(ctx context.Context, w io.Writer, tables []string) (*sqldump.DumpStats, error) {
	serializer := sqldump.NewSerializer(uc.db, uc.db.Name())
	stats, err := serializer.DumpTables(ctx, w, tables)
	if err != nil {
		err = domain.Wrap("export failed", err)
		uc.logger.Errorf("%v", err)
		return nil, err
	}

	uc.logger.Infof("Exported %d table(s), %d row(s), %s",
		stats.Tables, stats.Rows, humanize.Bytes(uint64(stats.Bytes)))
	return stats, nil
}
