package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/semmidev/sqlkeep/internal/domain"
	"github.com/semmidev/sqlkeep/internal/sqldump"
)

const importFailed = "import failed"

// forbiddenSQL lists constructs an SQL import may never contain: file
// system access, privilege management, global variables and plugins.
var forbiddenSQL = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bLOAD\s+DATA\b`),
	regexp.MustCompile(`(?i)\bINTO\s+(OUTFILE|DUMPFILE)\b`),
	regexp.MustCompile(`(?i)\bLOAD_FILE\s*\(`),
	regexp.MustCompile(`(?i)\bGRANT\b`),
	regexp.MustCompile(`(?i)\bREVOKE\b`),
	regexp.MustCompile(`(?i)\b(CREATE|DROP|ALTER|RENAME)\s+USER\b`),
	regexp.MustCompile(`(?i)\bSET\s+PASSWORD\b`),
	regexp.MustCompile(`(?i)\bSET\s+(GLOBAL|PERSIST|PERSIST_ONLY)\b`),
	regexp.MustCompile(`(?i)@@GLOBAL\.`),
	regexp.MustCompile(`(?i)\b(INSTALL|UNINSTALL)\s+(PLUGIN|COMPONENT)\b`),
}

// Importer loads SQL, CSV and JSON payloads. Row and statement failures
// are counted and reported, never fatal. The target table's columns are
// read fresh on every call.
type Importer struct {
	db         domain.Database
	logger     Logger
	maxPayload int
}

func NewImporter(db domain.Database, logger Logger, maxPayload int) *Importer {
	if maxPayload <= 0 {
		maxPayload = domain.MaxImportPayload
	}
	return &Importer{db: db, logger: logger, maxPayload: maxPayload}
}

func (uc *Importer) checkSize(payload string) error {
	if len(payload) > uc.maxPayload {
		return domain.E(domain.KindValidation, importFailed,
			fmt.Errorf("%w: %d bytes (max %d)", domain.ErrPayloadTooLarge, len(payload), uc.maxPayload))
	}
	return nil
}

// CheckForbidden reports the first forbidden construct found in payload.
func CheckForbidden(payload string) error {
	for _, re := range forbiddenSQL {
		if m := re.FindString(payload); m != "" {
			return domain.E(domain.KindSecurity, "",
				fmt.Errorf("%w: %s", domain.ErrForbiddenOperation, strings.ToUpper(m)))
		}
	}
	return nil
}

func (uc *Importer) ImportSQL(ctx context.Context, payload string) (*domain.SQLImportResult, error) {
	if err := uc.checkSize(payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload) == "" {
		return nil, domain.Errorf(domain.KindValidation, "%s: no SQL provided", importFailed)
	}
	if err := CheckForbidden(payload); err != nil {
		return nil, domain.Wrap(importFailed, err)
	}

	jobID := uuid.NewString()
	stmts := sqldump.SplitStatements(payload)
	uc.logger.Infof("[%s] Importing %d SQL statement(s)", jobID, len(stmts))

	// The payload may change session settings, so it runs on one connection
	// that is never handed back to the pool.
	session, err := uc.db.Session(ctx)
	if err != nil {
		return nil, domain.Wrap(importFailed, err)
	}
	defer func() {
		if err := session.Discard(); err != nil {
			uc.logger.Warnf("[%s] Failed to discard import connection: %v", jobID, err)
		}
	}()

	result := &domain.SQLImportResult{Success: true}
	for i, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return nil, domain.Wrap(importFailed, err)
		}
		if _, err := session.Exec(ctx, stmt); err != nil {
			msg := fmt.Sprintf("Statement %d: %v", i+1, err)
			result.Warnings = append(result.Warnings, msg)
			uc.logger.Warnf("[%s] %s", jobID, msg)
			continue
		}
		result.StatementsExecuted++
	}

	uc.logger.Infof("[%s] SQL import completed: %d executed, %d failed",
		jobID, result.StatementsExecuted, len(result.Warnings))
	return result, nil
}

// tableColumns validates table and returns its columns keyed by lower case
// name, mapped to the spelling the database reports.
func (uc *Importer) tableColumns(ctx context.Context, table string) ([]string, map[string]string, error) {
	if !domain.IsValidIdentifier(table) {
		return nil, nil, domain.E(domain.KindNotFound, importFailed, fmt.Errorf("%w: %q", domain.ErrTableNotFound, table))
	}
	columns, err := uc.db.DescribeColumns(ctx, table)
	if err != nil {
		return nil, nil, domain.Wrap(importFailed, err)
	}
	if len(columns) == 0 {
		return nil, nil, domain.E(domain.KindNotFound, importFailed, fmt.Errorf("%w: %s", domain.ErrTableNotFound, table))
	}

	byName := make(map[string]string, len(columns))
	var valid []string
	for _, c := range columns {
		if domain.IsValidIdentifier(c) {
			byName[strings.ToLower(c)] = c
			valid = append(valid, c)
		}
	}
	return valid, byName, nil
}

func lookupColumn(byName map[string]string, field string) (string, bool) {
	field = strings.TrimSpace(field)
	if !domain.IsValidIdentifier(field) {
		return "", false
	}
	c, ok := byName[strings.ToLower(field)]
	return c, ok
}

func insertStatement(table string, columns []string) string {
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = domain.QuoteIdentifier(c)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		domain.QuoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

func (uc *Importer) ImportCSV(ctx context.Context, req domain.CSVImportRequest) (*domain.CSVImportResult, error) {
	if err := uc.checkSize(req.Data); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Data) == "" {
		return nil, domain.Errorf(domain.KindValidation, "%s: no CSV data provided", importFailed)
	}

	tableCols, byName, err := uc.tableColumns(ctx, req.Table)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(req.Data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	// positions maps a CSV field index to its column; -1 drops the field
	var positions []int
	var columns []string

	if req.HasHeaders {
		header, err := r.Read()
		if err != nil {
			return nil, domain.E(domain.KindValidation, importFailed, fmt.Errorf("invalid CSV header: %w", err))
		}
		seen := make(map[string]bool)
		for i, h := range header {
			if i == 0 {
				h = strings.TrimPrefix(h, "\ufeff")
			}
			col, ok := lookupColumn(byName, h)
			if !ok || seen[col] {
				positions = append(positions, -1)
				continue
			}
			seen[col] = true
			positions = append(positions, len(columns))
			columns = append(columns, col)
		}
	} else {
		for i, col := range tableCols {
			positions = append(positions, i)
			columns = append(columns, col)
		}
	}

	if len(columns) == 0 {
		return nil, domain.Errorf(domain.KindValidation, "%s: no CSV columns match table %s", importFailed, req.Table)
	}

	jobID := uuid.NewString()
	uc.logger.Infof("[%s] Importing CSV into %s, %d column(s) mapped", jobID, req.Table, len(columns))

	if req.ReplaceData {
		if _, err := uc.db.Exec(ctx, "DELETE FROM "+domain.QuoteIdentifier(req.Table)); err != nil {
			return nil, domain.Wrap(importFailed, fmt.Errorf("clear table %s: %w", req.Table, err))
		}
		uc.logger.Warnf("[%s] Cleared existing rows in %s", jobID, req.Table)
	}

	stmt := insertStatement(req.Table, columns)
	result := &domain.CSVImportResult{Success: true, ColumnsMapped: len(columns)}
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				result.SkippedRows++
				uc.logger.Warnf("[%s] Row %d skipped: %v", jobID, line, err)
				continue
			}
			return nil, domain.Wrap(importFailed, err)
		}
		if isBlankRecord(record) {
			continue
		}

		args := make([]any, len(columns))
		for i, field := range record {
			if i >= len(positions) || positions[i] < 0 {
				continue
			}
			args[positions[i]] = field
		}

		if _, err := uc.db.Exec(ctx, stmt, args...); err != nil {
			result.SkippedRows++
			uc.logger.Warnf("[%s] Row %d skipped: %v", jobID, line, err)
			continue
		}
		result.RowsImported++
	}

	uc.logger.Infof("[%s] CSV import completed: %d imported, %d skipped",
		jobID, result.RowsImported, result.SkippedRows)
	return result, nil
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func (uc *Importer) ImportJSON(ctx context.Context, req domain.JSONImportRequest) (*domain.JSONImportResult, error) {
	if err := uc.checkSize(req.Data); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(strings.NewReader(req.Data))
	dec.UseNumber()
	var records []map[string]json.RawMessage
	if err := dec.Decode(&records); err != nil {
		return nil, domain.E(domain.KindValidation, importFailed,
			fmt.Errorf("JSON data must be an array of objects: %w", err))
	}
	if len(records) == 0 {
		return nil, domain.Errorf(domain.KindValidation, "%s: no records provided", importFailed)
	}

	_, byName, err := uc.tableColumns(ctx, req.Table)
	if err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	uc.logger.Infof("[%s] Importing %d JSON record(s) into %s", jobID, len(records), req.Table)

	result := &domain.JSONImportResult{Success: true}
	used := make(map[string]bool)
	for i, record := range records {
		if record == nil {
			result.ValidationErrors++
			continue
		}

		values := recordValues(byName, record)
		if len(values) == 0 {
			result.ValidationErrors++
			uc.logger.Warnf("[%s] Record %d has no fields matching %s", jobID, i+1, req.Table)
			continue
		}

		columns := make([]string, 0, len(values))
		for col := range values {
			columns = append(columns, col)
		}
		sort.Strings(columns)
		args := make([]any, len(columns))
		for j, col := range columns {
			args[j] = values[col]
		}

		if _, err := uc.db.Exec(ctx, insertStatement(req.Table, columns), args...); err != nil {
			result.ValidationErrors++
			uc.logger.Warnf("[%s] Record %d rejected: %v", jobID, i+1, err)
			continue
		}
		for _, col := range columns {
			used[col] = true
		}
		result.RecordsImported++
	}
	result.FieldsMapped = len(used)

	uc.logger.Infof("[%s] JSON import completed: %d imported, %d validation errors",
		jobID, result.RecordsImported, result.ValidationErrors)
	return result, nil
}

// jsonValue converts a decoded field into a driver argument. Objects and
// arrays are stored as their JSON text.
func jsonValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		return x.String(), nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		return x, nil
	default:
		return string(raw), nil
	}
}

// recordValues maps record keys onto table columns. When several keys name
// the same column, a key spelled exactly like the column wins, otherwise
// the first key in sorted order.
func recordValues(byName map[string]string, record map[string]json.RawMessage) map[string]any {
	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := make(map[string]any)
	exact := make(map[string]bool)
	for _, key := range keys {
		col, ok := lookupColumn(byName, key)
		if !ok || exact[col] {
			continue
		}
		isExact := strings.TrimSpace(key) == col
		if _, seen := values[col]; seen && !isExact {
			continue
		}
		v, err := jsonValue(record[key])
		if err != nil {
			continue
		}
		values[col] = v
		exact[col] = isExact
	}
	return values
}
