package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/buyermatch/internal/ingest"
	"github.com/sells-group/buyermatch/internal/model"
)

var importFlags struct {
	xlsxPath string
	jsonPath string
	sheet    string
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a buyer roster into storage",
	Long:  "Reads a transaction workbook (one row per purchase) or a JSON roster of shaped buyers and upserts it into storage, replacing each imported buyer's purchase history.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			buyers []model.Buyer
			err    error
		)
		switch {
		case importFlags.xlsxPath != "" && importFlags.jsonPath != "":
			return eris.New("--xlsx and --json are mutually exclusive")
		case importFlags.xlsxPath != "":
			buyers, err = ingest.ParseRosterXLSX(importFlags.xlsxPath, ingest.XLSXOptions{SheetName: importFlags.sheet}, time.Now())
		case importFlags.jsonPath != "":
			buyers, err = ingest.ParseRosterJSON(importFlags.jsonPath)
		default:
			return eris.New("either --xlsx or --json is required")
		}
		if err != nil {
			return err
		}
		if len(buyers) == 0 {
			return eris.New("no buyers found in input file")
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		result, err := st.ImportRoster(cmd.Context(), buyers)
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d buyers with %d purchases.\n", result.Buyers, result.Purchases)
		return nil
	},
}

func init() {
	f := importCmd.Flags()
	f.StringVar(&importFlags.xlsxPath, "xlsx", "", "transaction workbook to import")
	f.StringVar(&importFlags.jsonPath, "json", "", "JSON roster file to import")
	f.StringVar(&importFlags.sheet, "sheet", "", "workbook sheet name (default first sheet)")
	rootCmd.AddCommand(importCmd)
}
