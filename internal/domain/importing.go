package domain

// MaxImportPayload is the size ceiling applied to every import payload.
const MaxImportPayload = 5_000_000

type SQLImportResult struct {
	Success            bool     `json:"success"`
	StatementsExecuted int      `json:"statements_executed"`
	Warnings           []string `json:"warnings,omitempty"`
}

type CSVImportRequest struct {
	Table       string
	Data        string
	HasHeaders  bool
	ReplaceData bool
}

type CSVImportResult struct {
	Success       bool `json:"success"`
	RowsImported  int  `json:"rows_imported"`
	ColumnsMapped int  `json:"columns_mapped"`
	SkippedRows   int  `json:"skipped_rows,omitempty"`
}

type JSONImportRequest struct {
	Table string
	Data  string
}

type JSONImportResult struct {
	Success          bool `json:"success"`
	RecordsImported  int  `json:"records_imported"`
	FieldsMapped     int  `json:"fields_mapped"`
	ValidationErrors int  `json:"validation_errors,omitempty"`
}
