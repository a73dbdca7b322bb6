package sqldump

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/semmidev/sqlkeep/internal/domain"
)

// Source is what a dump is read from.
type Source interface {
	domain.Executor
	ListTables(ctx context.Context) ([]string, error)
	CreateStatement(ctx context.Context, table string) (string, error)
}

type DumpStats struct {
	Tables int
	Rows   int64
	Bytes  int64
}

// Serializer writes DDL and data for a set of tables as a SQL dump. Every
// statement in its output ends a line with ";", so the dump can be read
// back with a Reassembler.
type Serializer struct {
	src      Source
	database string
	now      func() time.Time
}

func NewSerializer(src Source, database string) *Serializer {
	return &Serializer{src: src, database: database, now: time.Now}
}

// DumpAll dumps every table reported by the source, in discovery order.
func (s *Serializer) DumpAll(ctx context.Context, w io.Writer) (*DumpStats, error) {
	tables, err := s.src.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	for _, table := range tables {
		if err := domain.ValidateIdentifier(table); err != nil {
			return nil, err
		}
	}
	return s.dump(ctx, w, "Database Backup", tables)
}

// DumpTables dumps the given tables in the given order. Table names must
// already be valid identifiers.
func (s *Serializer) DumpTables(ctx context.Context, w io.Writer, tables []string) (*DumpStats, error) {
	for _, table := range tables {
		if err := domain.ValidateIdentifier(table); err != nil {
			return nil, err
		}
	}
	return s.dump(ctx, w, "Database Export", tables)
}

func (s *Serializer) dump(ctx context.Context, w io.Writer, title string, tables []string) (*DumpStats, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriterSize(cw, readBufferSize)
	stats := &DumpStats{}

	fmt.Fprintf(bw, "-- %s\n-- Generated: %s\n-- Database: %s\n\n",
		title, s.now().Format("2006-01-02 15:04:05"), s.database)

	for _, table := range tables {
		rows, err := s.writeTable(ctx, bw, table)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", table, err)
		}
		stats.Tables++
		stats.Rows += rows
	}

	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("write dump: %w", err)
	}
	stats.Bytes = cw.n
	return stats, nil
}

func (s *Serializer) writeTable(ctx context.Context, w *bufio.Writer, table string) (int64, error) {
	name := domain.QuoteIdentifier(table)

	createSQL, err := s.src.CreateStatement(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("show create table: %w", err)
	}
	fmt.Fprintf(w, "-- Table structure for %s\nDROP TABLE IF EXISTS %s;\n%s;\n\n", name, name, createSQL)

	rows, err := s.src.Query(ctx, "SELECT * FROM "+name)
	if err != nil {
		return 0, fmt.Errorf("query data: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("read columns: %w", err)
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = "`" + strings.ReplaceAll(c, "`", "``") + "`"
	}

	var count int64
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return count, fmt.Errorf("scan row: %w", err)
		}
		if count == 0 {
			fmt.Fprintf(w, "-- Data for table %s\nINSERT INTO %s (%s) VALUES\n", name, name, strings.Join(quoted, ", "))
		} else {
			w.WriteString(",\n")
		}
		w.WriteString(s.formatRow(values))
		count++
	}
	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("read rows: %w", err)
	}
	if count > 0 {
		w.WriteString(";\n\n")
	}
	return count, nil
}

func (s *Serializer) formatRow(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			parts[i] = "NULL"
			continue
		}
		parts[i] = s.src.Quote(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
