package main

import (
	"github.com/franz/music-dedup/internal/report"
	"github.com/franz/music-dedup/internal/util"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the track table as CSV",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringP("output", "o", "tracks.csv", "output CSV path")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	applyLogConfig()

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	output, _ := cmd.Flags().GetString("output")
	if err := report.ExportCSV(db, output); err != nil {
		return err
	}

	util.SuccessLog("Exported track table: %s", output)
	return nil
}
