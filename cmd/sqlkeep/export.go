package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/semmidev/sqlkeep/internal/app"
	"github.com/semmidev/sqlkeep/internal/usecase"
)

var (
	exportTables string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export selected tables as an SQL dump",
	Long: `Write DDL and data for a comma separated list of tables (at most 50).

Examples:
  sqlkeep export --tables items,orders
  sqlkeep export --tables items --output - | gzip > items.sql.gz`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			tables, err := a.Export().Prepare(exportTables)
			if err != nil {
				return err
			}

			if exportOutput == "-" {
				_, err := a.Export().Execute(ctx, os.Stdout, tables)
				return err
			}

			path := exportOutput
			if path == "" {
				path = usecase.ExportFilename(time.Now())
			}
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}

			stats, err := a.Export().Execute(ctx, f, tables)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(path)
				return err
			}

			okColor.Printf("✓ Exported %d table(s), %d row(s) to %s (%s)\n",
				stats.Tables, stats.Rows, path, humanize.Bytes(uint64(stats.Bytes)))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportTables, "tables", "t", "", "comma separated table list")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", `output file, "-" for stdout (default export_<timestamp>.sql)`)
	exportCmd.MarkFlagRequired("tables")
}
