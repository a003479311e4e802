package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/franz/music-dedup/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "Scan a directory and deduplicate against the library",
	Long: `Scan a directory tree for audio files and resolve each one against the
library. New songs are recorded; files matching a known song are compared by
quality, the better copy is kept and the other moved to the duplicate
directory. Ambiguous matches prompt unless --no-input is given.

Unchanged files (same size and modification time as the last run) are
skipped without being re-fingerprinted, so repeat scans are cheap.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringP("source", "s", "", "directory to scan")
	scanCmd.Flags().String("dup-dir", "", "directory for losing duplicate files")
	scanCmd.Flags().String("library", "", "organize kept files under Artist/Album in this directory")
	scanCmd.Flags().Bool("dry-run", false, "report verdicts without moving files or writing state")
	scanCmd.Flags().Bool("no-input", false, "never prompt; leave ambiguous files unresolved")
	scanCmd.Flags().Float64("ask", 0, "similarity at which the operator is consulted")
	scanCmd.Flags().Float64("auto", 0, "similarity at which a single match resolves automatically")

	viper.BindPFlag("source", scanCmd.Flags().Lookup("source"))
	viper.BindPFlag("dup_dir", scanCmd.Flags().Lookup("dup-dir"))
	viper.BindPFlag("library_dir", scanCmd.Flags().Lookup("library"))
	viper.BindPFlag("dry_run", scanCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("no_input", scanCmd.Flags().Lookup("no-input"))
	viper.BindPFlag("similarity.ask", scanCmd.Flags().Lookup("ask"))
	viper.BindPFlag("similarity.auto", scanCmd.Flags().Lookup("auto"))

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	applyLogConfig()

	source := viper.GetString("source")
	if len(args) > 0 {
		source = args[0]
	}
	if source == "" {
		return fmt.Errorf("source directory is required (use --source/-s or pass it as an argument)")
	}
	if _, err := os.Stat(source); os.IsNotExist(err) {
		return fmt.Errorf("source directory does not exist: %s", source)
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	logger := newEventLogger()
	defer logger.Close()

	interactive := !viper.GetBool("no_input") && util.IsTerminal(os.Stdin.Fd())
	ctrl, err := buildController(db, logger, interactive)
	if err != nil {
		return err
	}

	// A second Ctrl-C kills the process; the first lets the current file finish
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	result, err := ctrl.Run(ctx, source)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	util.InfoLog("")
	util.SuccessLog("=== Scan Summary ===")
	util.InfoLog("Total time: %v", time.Since(startTime).Round(time.Millisecond))
	util.InfoLog("  Files seen:   %d", result.FilesSeen)
	util.InfoLog("  Unchanged:    %d", result.Skipped)
	util.InfoLog("  New songs:    %d", result.Unique)
	util.InfoLog("  Replacements: %d", result.AutoWins)
	util.InfoLog("  Duplicates:   %d", result.AutoLoses)
	if result.Distinct > 0 {
		util.InfoLog("  Kept as distinct: %d", result.Distinct)
	}
	if result.Ambiguous > 0 {
		util.WarnLog("  Unresolved: %d (re-run interactively to decide)", result.Ambiguous)
	}
	if len(result.Errors) > 0 {
		util.WarnLog("  Errors: %d", len(result.Errors))
	}

	return nil
}
