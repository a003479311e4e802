package main

import (
	"fmt"

	"github.com/franz/music-dedup/internal/report"
	"github.com/franz/music-dedup/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the library state",
	Long: `Print unique and duplicate track counts with their sizes, and the largest
duplicate files. With --output the same summary is written as a Markdown
report.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringP("output", "o", "", "write a Markdown report to this path")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	applyLogConfig()

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	summary, err := report.GenerateSummary(db, "")
	if err != nil {
		return fmt.Errorf("failed to generate summary: %w", err)
	}
	summary.DatabasePath = viper.GetString("db")

	fmt.Print(summary.RenderText())

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := summary.WriteMarkdown(output); err != nil {
			return err
		}
		util.SuccessLog("Report written: %s", output)
	}

	return nil
}
