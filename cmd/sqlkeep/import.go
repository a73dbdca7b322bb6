package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/semmidev/sqlkeep/internal/app"
	"github.com/semmidev/sqlkeep/internal/domain"
)

var (
	importTable     string
	importNoHeaders bool
	importReplace   bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import SQL, CSV or JSON payloads",
	Long: `Import a payload from a file, or from stdin when the file is "-" or omitted.
Payloads larger than import.max_payload_bytes are rejected.`,
}

var importSQLCmd = &cobra.Command{
	Use:   "sql [file]",
	Short: "Run an SQL script, collecting failing statements as warnings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(args)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			result, err := a.Importer().ImportSQL(ctx, payload)
			if err != nil {
				return err
			}
			okColor.Printf("✓ %d statement(s) executed\n", result.StatementsExecuted)
			for _, w := range result.Warnings {
				warnColor.Printf("  %s\n", w)
			}
			return nil
		})
	},
}

var importCSVCmd = &cobra.Command{
	Use:   "csv [file]",
	Short: "Insert CSV rows into a table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(args)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			result, err := a.Importer().ImportCSV(ctx, domain.CSVImportRequest{
				Table:       importTable,
				Data:        payload,
				HasHeaders:  !importNoHeaders,
				ReplaceData: importReplace,
			})
			if err != nil {
				return err
			}
			okColor.Printf("✓ %d row(s) imported into %s (%d column(s) mapped)\n",
				result.RowsImported, importTable, result.ColumnsMapped)
			if result.SkippedRows > 0 {
				warnColor.Printf("  %d row(s) skipped\n", result.SkippedRows)
			}
			return nil
		})
	},
}

var importJSONCmd = &cobra.Command{
	Use:   "json [file]",
	Short: "Insert a JSON array of objects into a table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(args)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			result, err := a.Importer().ImportJSON(ctx, domain.JSONImportRequest{
				Table: importTable,
				Data:  payload,
			})
			if err != nil {
				return err
			}
			okColor.Printf("✓ %d record(s) imported into %s (%d field(s) mapped)\n",
				result.RecordsImported, importTable, result.FieldsMapped)
			if result.ValidationErrors > 0 {
				warnColor.Printf("  %d record(s) rejected\n", result.ValidationErrors)
			}
			return nil
		})
	},
}

// maxPayloadRead bounds stdin and file reads. The importer applies the
// configured ceiling.
const maxPayloadRead = 64 << 20

func readPayload(args []string) (string, error) {
	var r io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", fmt.Errorf("open payload: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, maxPayloadRead))
	if err != nil {
		return "", fmt.Errorf("read payload: %w", err)
	}
	return string(data), nil
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importSQLCmd, importCSVCmd, importJSONCmd)

	for _, c := range []*cobra.Command{importCSVCmd, importJSONCmd} {
		c.Flags().StringVarP(&importTable, "table", "t", "", "target table")
		c.MarkFlagRequired("table")
	}
	importCSVCmd.Flags().BoolVar(&importNoHeaders, "no-headers", false, "the first row is data, map columns by position")
	importCSVCmd.Flags().BoolVar(&importReplace, "replace", false, "delete existing rows before importing")
}
