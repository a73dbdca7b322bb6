package domain

import "context"

// Executor runs statements against a data store. Exec reports the number of
// affected rows; a failed statement always yields a non-nil error, never a
// zero count.
type Executor interface {
	Exec(ctx context.Context, stmt string, args ...any) (int64, error)
	Query(ctx context.Context, stmt string, args ...any) (Rows, error)
	Quote(v any) string
}

// Rows is a forward-only cursor over a query result.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Values() ([]any, error)
	Err() error
	Close() error
}

// Schema is the introspection surface of the data store.
type Schema interface {
	ListTables(ctx context.Context) ([]string, error)
	DescribeColumns(ctx context.Context, table string) ([]string, error)
	CreateStatement(ctx context.Context, table string) (string, error)
	TableStats(ctx context.Context) ([]TableInfo, error)
	Status(ctx context.Context) (*ServerStatus, error)
}

// Session is an Executor pinned to a single connection, so that session
// level settings stay in effect for every statement run through it.
type Session interface {
	Executor
	SetForeignKeyChecks(ctx context.Context, enabled bool) error
	SQLMode(ctx context.Context) (string, error)
	SetSQLMode(ctx context.Context, mode string) error
	Close() error
	// Discard closes the connection without returning it to the pool.
	Discard() error
}

type Database interface {
	Executor
	Schema
	Session(ctx context.Context) (Session, error)
	Ping(ctx context.Context) error
	Name() string
}

type TableInfo struct {
	Name    string   `json:"name"`
	Rows    int64    `json:"rows"`
	SizeMB  float64  `json:"size_mb"`
	Columns []string `json:"columns"`
}

type ServerStatus struct {
	Version  string  `json:"version"`
	Database string  `json:"database"`
	Tables   int     `json:"tables"`
	SizeMB   float64 `json:"size_mb"`
}
