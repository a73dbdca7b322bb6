package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/semmidev/sqlkeep/internal/domain"
	"github.com/semmidev/sqlkeep/internal/sqldump"
)

const (
	defaultMaxErrorDetails = 1000
	statementPreviewBytes  = 100
)

// SafetyBackup creates a regular backup before a restore overwrites data.
type SafetyBackup interface {
	Create(ctx context.Context) (*domain.BackupFile, error)
}

type RestoreOptions struct {
	MaxErrorDetails  int
	PreRestoreBackup bool
}

// Restore replays a dump against the database. Statements run one by one
// without a wrapping transaction, so a strict abort leaves whatever the
// earlier statements changed in place.
type Restore struct {
	db         domain.Database
	resolver   *SourceResolver
	compressor domain.Compressor
	safety     SafetyBackup
	logger     Logger
	opts       RestoreOptions
}

func NewRestore(
	db domain.Database,
	resolver *SourceResolver,
	compressor domain.Compressor,
	safety SafetyBackup,
	logger Logger,
	opts RestoreOptions,
) *Restore {
	if opts.MaxErrorDetails <= 0 {
		opts.MaxErrorDetails = defaultMaxErrorDetails
	}
	return &Restore{
		db:         db,
		resolver:   resolver,
		compressor: compressor,
		safety:     safety,
		logger:     logger,
		opts:       opts,
	}
}

func (uc *Restore) Execute(ctx context.Context, req domain.RestoreRequest) (*domain.RestoreResult, error) {
	src, err := uc.resolver.Resolve(req)
	if err != nil {
		return nil, domain.Wrap("database restore failed", err)
	}

	job := &domain.RestoreJob{
		ID:           uuid.NewString(),
		Source:       *src,
		IgnoreErrors: req.IgnoreErrors,
		StartedAt:    time.Now(),
	}
	uc.logger.Infof("[%s] Starting restore from %s (gzip: %t, ignore errors: %t)",
		job.ID, src.Path, src.Gzip, job.IgnoreErrors)

	var safetyName string
	if (req.PreRestoreBackup || uc.opts.PreRestoreBackup) && uc.safety != nil {
		file, err := uc.safety.Create(ctx)
		if err != nil {
			uc.logger.Warnf("[%s] Pre-restore backup failed, continuing: %v", job.ID, err)
		} else {
			safetyName = file.Filename
			uc.logger.Infof("[%s] Pre-restore backup: %s", job.ID, safetyName)
		}
	}

	if err := uc.run(ctx, job); err != nil {
		err = domain.Wrap("database restore failed", err)
		uc.logger.Errorf("[%s] %v", job.ID, err)
		return nil, err
	}

	elapsed := time.Since(job.StartedAt).Seconds()
	result := &domain.RestoreResult{
		Success:            true,
		TablesRestored:     job.TablesRestored,
		RecordsRestored:    job.RecordsRestored,
		StatementsExecuted: job.StatementsExecuted,
		ExecutionSeconds:   math.Round(elapsed*100) / 100,
		ErrorDetails:       job.Errors,
		SafetyBackup:       safetyName,
	}
	if result.ErrorDetails == nil {
		result.ErrorDetails = []string{}
	}
	if job.ErrorCount > 0 {
		result.Warnings = fmt.Sprintf("%d errors encountered", job.ErrorCount)
	}

	uc.logger.Infof("[%s] Restore completed: %d statements, %d tables, %d records, %d errors in %.2fs",
		job.ID, job.StatementsExecuted, job.TablesRestored, job.RecordsRestored, job.ErrorCount, result.ExecutionSeconds)

	return result, nil
}

func (uc *Restore) run(ctx context.Context, job *domain.RestoreJob) (err error) {
	stream, err := uc.open(job.Source)
	if err != nil {
		return err
	}
	defer stream.Close()

	session, err := acquireSession(ctx, uc.db)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := session.release(ctx); rerr != nil {
			uc.logger.Errorf("[%s] Failed to restore session settings: %v", job.ID, rerr)
			err = appendErr(err, rerr)
		}
	}()

	reader := sqldump.NewReassembler(sqldump.NewLineReader(stream))
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		stmt := reader.Statement()
		affected, execErr := session.Exec(ctx, stmt)
		if execErr != nil {
			msg := statementError(stmt, execErr)
			job.ErrorCount++
			if len(job.Errors) < uc.opts.MaxErrorDetails {
				job.Errors = append(job.Errors, msg)
			}
			if !job.IgnoreErrors {
				return domain.E(domain.KindExecution, "", errors.New(msg))
			}
			uc.logger.Warnf("[%s] %s", job.ID, msg)
			continue
		}

		job.StatementsExecuted++
		upper := strings.ToUpper(stmt)
		if strings.Contains(upper, "CREATE TABLE") {
			job.TablesRestored++
		} else if strings.Contains(upper, "INSERT INTO") {
			job.RecordsRestored += affected
		}
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("read dump: %w", err)
	}
	if n := reader.Discarded(); n > 0 {
		uc.logger.Warnf("[%s] Discarded %d bytes of unterminated trailing statement", job.ID, n)
	}

	return nil
}

type dumpStream struct {
	io.Reader
	closers []io.Closer
}

func (s *dumpStream) Close() error {
	var result error
	for i := len(s.closers) - 1; i >= 0; i-- {
		result = appendErr(result, s.closers[i].Close())
	}
	return result
}

func (uc *Restore) open(src domain.ResolvedSource) (io.ReadCloser, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, domain.E(domain.KindNotFound, "", fmt.Errorf("%w: %v", domain.ErrSourceNotFound, err))
	}
	if !src.Gzip {
		return f, nil
	}

	zr, err := uc.compressor.NewReader(f)
	if err != nil {
		f.Close()
		return nil, domain.E(domain.KindValidation, "", err)
	}
	return &dumpStream{Reader: zr, closers: []io.Closer{f, zr}}, nil
}

func statementError(stmt string, err error) string {
	return fmt.Sprintf("Error in statement: %s... - %v", preview(stmt, statementPreviewBytes), err)
}

// preview cuts s to at most n bytes without splitting a rune.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// restoreSession holds a connection with foreign key checks and strict
// mode suspended. release puts both back and always returns the
// connection, discarding it when the settings could not be restored.
type restoreSession struct {
	domain.Session
	mode string
}

func acquireSession(ctx context.Context, db domain.Database) (*restoreSession, error) {
	session, err := db.Session(ctx)
	if err != nil {
		return nil, err
	}

	mode, err := session.SQLMode(ctx)
	if err != nil {
		return nil, appendErr(err, session.Close())
	}

	s := &restoreSession{Session: session, mode: mode}
	if err := session.SetForeignKeyChecks(ctx, false); err != nil {
		return nil, appendErr(err, s.release(ctx))
	}
	if err := session.SetSQLMode(ctx, ""); err != nil {
		return nil, appendErr(err, s.release(ctx))
	}
	return s, nil
}

func (s *restoreSession) release(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	result := s.SetForeignKeyChecks(ctx, true)
	result = appendErr(result, s.SetSQLMode(ctx, s.mode))
	return appendErr(result, s.Close())
}
