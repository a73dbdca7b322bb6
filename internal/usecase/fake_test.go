package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/semmidev/sqlkeep/internal/domain"
)

type execCall struct {
	session int
	stmt    string
	args    []any
}

// fakeDB is an in-memory domain.Database. execFn decides the outcome of
// every Exec; by default statements succeed with zero affected rows.
type fakeDB struct {
	mu sync.Mutex

	name     string
	order    []string
	columns  map[string][]string
	creates  map[string]string
	data     map[string][][]any
	execFn   func(stmt string, args []any) (int64, error)
	executed []execCall

	pingErr        error
	failFKEnable   bool
	fkEnabled      bool
	sqlMode        string
	sessionsOpened    int
	sessionsClosed    int
	sessionsDiscarded int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		name:      "shop",
		columns:   map[string][]string{},
		creates:   map[string]string{},
		data:      map[string][][]any{},
		fkEnabled: true,
		sqlMode:   "STRICT_TRANS_TABLES",
	}
}

func (f *fakeDB) addTable(name string, columns ...string) {
	f.order = append(f.order, name)
	f.columns[name] = columns
	f.creates[name] = fmt.Sprintf("CREATE TABLE `%s` (`%s` text)", name, strings.Join(columns, "` text, `"))
}

func (f *fakeDB) statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.executed))
	for i, c := range f.executed {
		out[i] = c.stmt
	}
	return out
}

// sessions lists the session of every executed statement, 0 for the pool.
func (f *fakeDB) sessions() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.executed))
	for i, c := range f.executed {
		out[i] = c.session
	}
	return out
}

func (f *fakeDB) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	return f.exec(0, stmt, args)
}

func (f *fakeDB) exec(session int, stmt string, args []any) (int64, error) {
	f.mu.Lock()
	f.executed = append(f.executed, execCall{session: session, stmt: stmt, args: args})
	fn := f.execFn
	f.mu.Unlock()
	if fn == nil {
		return 0, nil
	}
	return fn(stmt, args)
}

func (f *fakeDB) Query(ctx context.Context, stmt string, args ...any) (domain.Rows, error) {
	table := strings.Trim(strings.TrimPrefix(stmt, "SELECT * FROM "), "`")
	cols, ok := f.columns[table]
	if !ok {
		return nil, fmt.Errorf("Table '%s' doesn't exist", table)
	}
	return &fakeRows{columns: cols, rows: f.data[table], pos: -1}, nil
}

func (f *fakeDB) Quote(v any) string {
	var s string
	switch x := v.(type) {
	case []byte:
		s = string(x)
	default:
		s = fmt.Sprint(x)
	}
	return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
}

func (f *fakeDB) ListTables(ctx context.Context) ([]string, error) {
	return f.order, nil
}

func (f *fakeDB) DescribeColumns(ctx context.Context, table string) ([]string, error) {
	return f.columns[table], nil
}

func (f *fakeDB) CreateStatement(ctx context.Context, table string) (string, error) {
	ddl, ok := f.creates[table]
	if !ok {
		return "", domain.E(domain.KindNotFound, table, domain.ErrTableNotFound)
	}
	return ddl, nil
}

func (f *fakeDB) TableStats(ctx context.Context) ([]domain.TableInfo, error) {
	var out []domain.TableInfo
	for _, t := range f.order {
		out = append(out, domain.TableInfo{Name: t, Rows: int64(len(f.data[t])), Columns: f.columns[t]})
	}
	return out, nil
}

func (f *fakeDB) Status(ctx context.Context) (*domain.ServerStatus, error) {
	return &domain.ServerStatus{Version: "8.0.36", Database: f.name, Tables: len(f.order)}, nil
}

func (f *fakeDB) Session(ctx context.Context) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionsOpened++
	return &fakeSession{db: f, id: f.sessionsOpened}, nil
}

func (f *fakeDB) Ping(ctx context.Context) error {
	return f.pingErr
}

func (f *fakeDB) Name() string {
	return f.name
}

type fakeSession struct {
	db *fakeDB
	id int
}

func (s *fakeSession) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	return s.db.exec(s.id, stmt, args)
}

func (s *fakeSession) Query(ctx context.Context, stmt string, args ...any) (domain.Rows, error) {
	return s.db.Query(ctx, stmt, args...)
}

func (s *fakeSession) Quote(v any) string {
	return s.db.Quote(v)
}

func (s *fakeSession) SetForeignKeyChecks(ctx context.Context, enabled bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if enabled && s.db.failFKEnable {
		return errors.New("lost connection")
	}
	s.db.fkEnabled = enabled
	return nil
}

func (s *fakeSession) SQLMode(ctx context.Context) (string, error) {
	return s.db.sqlMode, nil
}

func (s *fakeSession) SetSQLMode(ctx context.Context, mode string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.sqlMode = mode
	return nil
}

func (s *fakeSession) Close() error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.sessionsClosed++
	return nil
}

func (s *fakeSession) Discard() error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.sessionsDiscarded++
	return nil
}

type fakeRows struct {
	columns []string
	rows    [][]any
	pos     int
}

func (r *fakeRows) Columns() ([]string, error) { return r.columns, nil }
func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}
func (r *fakeRows) Values() ([]any, error) { return r.rows[r.pos], nil }
func (r *fakeRows) Err() error             { return nil }
func (r *fakeRows) Close() error           { return nil }

type testLogger struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
}

func (l *testLogger) Infof(template string, args ...interface{}) {}

func (l *testLogger) Warnf(template string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, fmt.Sprintf(template, args...))
}

func (l *testLogger) Errorf(template string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(template, args...))
}

// fakeStorage is an off-site target kept in memory.
type fakeStorage struct {
	mu        sync.Mutex
	files     map[string][]byte
	uploadErr error
	deleted   []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: map[string][]byte{}}
}

func (s *fakeStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	content, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[remoteName] = content
	return nil
}

func (s *fakeStorage) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name := range s.files {
		names = append(names, name)
	}
	return names, nil
}

func (s *fakeStorage) Delete(ctx context.Context, remoteName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, remoteName)
	s.deleted = append(s.deleted, remoteName)
	return nil
}

func (s *fakeStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	return nil, errors.New("not supported")
}

// projectTree lays out a project root with the two allowed directories.
func projectTree() (root, backups, uploads string) {
	root, err := os.MkdirTemp("", "sqlkeep_project")
	if err != nil {
		panic(err)
	}
	backups = filepath.Join(root, "backups")
	uploads = filepath.Join(root, "api", "uploads")
	os.MkdirAll(backups, 0755)
	os.MkdirAll(uploads, 0755)
	return root, backups, uploads
}
