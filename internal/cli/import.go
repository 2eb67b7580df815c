package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"irdinv/internal/bulkimport"
	"irdinv/internal/db"
	"irdinv/internal/inventory"
	"irdinv/internal/logs"
	"irdinv/internal/repo"

	"github.com/spf13/cobra"
)

// ImportOptions are the flags of `irdinv import`.
type ImportOptions struct {
	Format       string // text | json
	ValidateOnly bool
}

// NewImportCommand imports IRDs from a workbook, same as POST /irds/bulk.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{}
	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Bulk-import IRDs from an Excel workbook",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(*cobra.Command, []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", opts.Format)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, rootOpts, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.Flags().BoolVar(&opts.ValidateOnly, "validate", false, "only check headers and count rows")
	return cmd
}

func runImport(cmd *cobra.Command, rootOpts *RootOptions, opts *ImportOptions, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sheet, err := bulkimport.ReadWorkbook(f)
	if err != nil {
		return err
	}
	if opts.ValidateOnly {
		if err := bulkimport.ValidateHeaders(sheet.Headers); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: headers ok, %d data rows\n", path, len(sheet.Rows))
		return nil
	}
	if len(sheet.Rows) == 0 {
		return fmt.Errorf("%s: no data rows", path)
	}

	cfg, err := rootOpts.load()
	if err != nil {
		return err
	}
	logs.Init(logs.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, File: cfg.Logging.File})

	g, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	if sqlDB, err := g.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := db.Migrate(g, cfg.Database.DropLegacyIndexes); err != nil {
		return err
	}
	mode, err := db.ParseTxMode(cfg.Database.Transactions)
	if err != nil {
		return err
	}

	store := repo.NewStore(g)
	im := bulkimport.NewImporter(db.NewTxRunner(g, db.WithTxMode(mode)), store, inventory.NewTypeResolver(store))
	res, err := im.ImportRows(cmd.Context(), sheet.Rows)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), opts.Format, res)
}

func printResult(w io.Writer, format string, res *bulkimport.Result) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	s := res.Summary
	fmt.Fprintf(w, "processed %d, irds created %d, equipment created %d, errors %d\n",
		s.TotalProcessed, s.IrdsCreated, s.EquipmentCreated, s.Errors)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  row %d: %s\n", e.Row, e.Error)
	}
	return nil
}
