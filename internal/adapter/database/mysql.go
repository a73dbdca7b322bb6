package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"

	"github.com/semmidev/sqlkeep/internal/config"
	"github.com/semmidev/sqlkeep/internal/domain"
)

const (
	errNoSuchTable = 1146
	errBadTable    = 1051
)

type MySQLDatabase struct {
	db   *sql.DB
	name string
}

// NewMySQL wraps an open handle. name is the schema the handle is bound to.
func NewMySQL(db *sql.DB, name string) *MySQLDatabase {
	return &MySQLDatabase{db: db, name: name}
}

// DSN builds the driver connection string for cfg.
func DSN(cfg *config.DatabaseConfig) string {
	c := mysql.NewConfig()
	c.User = cfg.Username
	c.Passwd = cfg.Password
	c.DBName = cfg.Database
	if cfg.Socket != "" {
		c.Net = "unix"
		c.Addr = cfg.Socket
	} else {
		c.Net = "tcp"
		c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}
	if cfg.TLS != "" {
		c.TLSConfig = cfg.TLS
	}
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// Connect opens a pool and pings it, retrying with exponential backoff.
func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*MySQLDatabase, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	retries := cfg.ConnectRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)

	err = backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, b)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql ping failed: %w", err)
	}

	return NewMySQL(db, cfg.Database), nil
}

func (m *MySQLDatabase) Name() string {
	return m.name
}

func (m *MySQLDatabase) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql ping failed: %w", err)
	}
	return nil
}

func (m *MySQLDatabase) Close() error {
	return m.db.Close()
}

func (m *MySQLDatabase) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	return execAffected(ctx, m.db, stmt, args...)
}

func (m *MySQLDatabase) Query(ctx context.Context, stmt string, args ...any) (domain.Rows, error) {
	rows, err := m.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (m *MySQLDatabase) Quote(v any) string {
	return QuoteValue(v)
}

func (m *MySQLDatabase) ListTables(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// DescribeColumns returns the column names of table in ordinal order. An
// unknown table yields an empty list.
func (m *MySQLDatabase) DescribeColumns(ctx context.Context, table string) ([]string, error) {
	if !domain.IsValidIdentifier(table) {
		return nil, nil
	}
	rows, err := m.db.QueryContext(ctx,
		"SELECT COLUMN_NAME FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION",
		table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

func (m *MySQLDatabase) CreateStatement(ctx context.Context, table string) (string, error) {
	if err := domain.ValidateIdentifier(table); err != nil {
		return "", err
	}
	var name, createSQL string
	err := m.db.QueryRowContext(ctx, "SHOW CREATE TABLE "+domain.QuoteIdentifier(table)).Scan(&name, &createSQL)
	if err != nil {
		if isMissingTable(err) {
			return "", domain.E(domain.KindNotFound, table, domain.ErrTableNotFound)
		}
		return "", err
	}
	return createSQL, nil
}

func (m *MySQLDatabase) TableStats(ctx context.Context) ([]domain.TableInfo, error) {
	rows, err := m.db.QueryContext(ctx,
		"SELECT TABLE_NAME, COALESCE(TABLE_ROWS, 0), ROUND((DATA_LENGTH + INDEX_LENGTH) / 1024 / 1024, 2) "+
			"FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() ORDER BY TABLE_NAME")
	if err != nil {
		return nil, fmt.Errorf("failed to read table stats: %w", err)
	}

	var tables []domain.TableInfo
	for rows.Next() {
		var t domain.TableInfo
		var size sql.NullFloat64
		if err := rows.Scan(&t.Name, &t.Rows, &size); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan table stats: %w", err)
		}
		t.SizeMB = size.Float64
		tables = append(tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tables {
		columns, err := m.DescribeColumns(ctx, tables[i].Name)
		if err != nil {
			return nil, err
		}
		tables[i].Columns = columns
	}
	return tables, nil
}

func (m *MySQLDatabase) Status(ctx context.Context) (*domain.ServerStatus, error) {
	status := &domain.ServerStatus{Database: m.name}
	if err := m.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&status.Version); err != nil {
		return nil, fmt.Errorf("failed to read server version: %w", err)
	}

	var size sql.NullFloat64
	err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(*), ROUND(SUM(DATA_LENGTH + INDEX_LENGTH) / 1024 / 1024, 2) "+
			"FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE()").Scan(&status.Tables, &size)
	if err != nil {
		return nil, fmt.Errorf("failed to read database size: %w", err)
	}
	status.SizeMB = size.Float64
	return status, nil
}

// Session pins one pooled connection for session-scoped settings.
func (m *MySQLDatabase) Session(ctx context.Context) (domain.Session, error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &mysqlSession{conn: conn}, nil
}

type mysqlSession struct {
	conn *sql.Conn

	fkDisabled     bool
	savedMode      *string
	modeOverridden bool
}

func (s *mysqlSession) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	return execAffected(ctx, s.conn, stmt, args...)
}

func (s *mysqlSession) Query(ctx context.Context, stmt string, args ...any) (domain.Rows, error) {
	rows, err := s.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (s *mysqlSession) Quote(v any) string {
	return QuoteValue(v)
}

func (s *mysqlSession) SetForeignKeyChecks(ctx context.Context, enabled bool) error {
	stmt := "SET FOREIGN_KEY_CHECKS = 0"
	if enabled {
		stmt = "SET FOREIGN_KEY_CHECKS = 1"
	}
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to set foreign key checks: %w", err)
	}
	s.fkDisabled = !enabled
	return nil
}

func (s *mysqlSession) SQLMode(ctx context.Context) (string, error) {
	var mode string
	if err := s.conn.QueryRowContext(ctx, "SELECT @@SESSION.sql_mode").Scan(&mode); err != nil {
		return "", fmt.Errorf("failed to read sql_mode: %w", err)
	}
	if s.savedMode == nil {
		s.savedMode = &mode
	}
	return mode, nil
}

func (s *mysqlSession) SetSQLMode(ctx context.Context, mode string) error {
	if _, err := s.conn.ExecContext(ctx, "SET SESSION sql_mode = ?", mode); err != nil {
		return fmt.Errorf("failed to set sql_mode: %w", err)
	}
	s.modeOverridden = s.savedMode == nil || *s.savedMode != mode
	return nil
}

// Close returns the connection to the pool. A connection whose session
// settings were not restored is discarded instead.
func (s *mysqlSession) Close() error {
	if s.fkDisabled || s.modeOverridden {
		return s.Discard()
	}
	return s.conn.Close()
}

func (s *mysqlSession) Discard() error {
	err := s.conn.Raw(func(any) error { return driver.ErrBadConn })
	if err != nil && !errors.Is(err, driver.ErrBadConn) {
		return err
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execAffected(ctx context.Context, e execer, stmt string, args ...any) (int64, error) {
	res, err := e.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Values() ([]any, error) {
	columns, err := r.Rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.Rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return values, nil
}

func isMissingTable(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == errNoSuchTable || me.Number == errBadTable
	}
	return false
}

// QuoteValue renders v as a MySQL literal.
func QuoteValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return "'" + escapeString(string(x)) + "'"
	case string:
		return "'" + escapeString(x) + "'"
	case bool:
		if x {
			return "'1'"
		}
		return "'0'"
	case time.Time:
		return "'" + x.Format("2006-01-02 15:04:05") + "'"
	default:
		return "'" + escapeString(fmt.Sprint(x)) + "'"
	}
}

func escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case 0:
			b.WriteString(`\0`)
		case '\x1a':
			b.WriteString(`\Z`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
