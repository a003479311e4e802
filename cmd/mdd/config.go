package main

import (
	"fmt"

	"github.com/franz/music-dedup/internal/decide"
	"github.com/franz/music-dedup/internal/fingerprint"
	"github.com/franz/music-dedup/internal/fpindex"
	"github.com/franz/music-dedup/internal/lookup"
	"github.com/franz/music-dedup/internal/prompt"
	"github.com/franz/music-dedup/internal/report"
	"github.com/franz/music-dedup/internal/scan"
	"github.com/franz/music-dedup/internal/store"
	"github.com/franz/music-dedup/internal/util"
	"github.com/spf13/viper"
)

// applyLogConfig pushes the global flags into the logger
func applyLogConfig() {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
	if viper.GetBool("no_color") {
		util.SetColors(false)
	}
}

// openStore opens the library database named by config
func openStore() (*store.Store, error) {
	dbPath := viper.GetString("db")
	util.InfoLog("Opening database: %s", dbPath)

	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// newEventLogger creates the JSONL logger under the artifacts directory,
// at the same verbosity as the stderr logger
func newEventLogger() *report.EventLogger {
	var logLevel report.EventLevel
	switch util.Level() {
	case util.LevelDebug:
		logLevel = report.LevelDebug
	case util.LevelError:
		logLevel = report.LevelWarning
	default:
		logLevel = report.LevelInfo
	}

	logger, err := report.NewEventLogger(viper.GetString("artifacts"), logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}
	if logger.Path() != "" {
		util.InfoLog("Event log: %s", logger.Path())
	}
	return logger
}

// thresholdsFromConfig reads the similarity tiers, falling back to defaults
func thresholdsFromConfig() (decide.Thresholds, error) {
	th := decide.DefaultThresholds()
	if v := viper.GetFloat64("similarity.ask"); v > 0 {
		th.Ask = v
	}
	if v := viper.GetFloat64("similarity.auto"); v > 0 {
		th.Auto = v
	}
	if err := th.Validate(); err != nil {
		return th, err
	}
	return th, nil
}

// buildController assembles a scan controller from config
func buildController(db *store.Store, logger *report.EventLogger, interactive bool) (*scan.Controller, error) {
	th, err := thresholdsFromConfig()
	if err != nil {
		return nil, err
	}

	fpcalc := fingerprint.NewFpcalc()
	if !fpcalc.Available() {
		return nil, fmt.Errorf("fpcalc not found in PATH; install chromaprint (https://acoustid.org/chromaprint)")
	}

	var prompter decide.Prompter
	if interactive {
		prompter = prompt.NewConsole()
	} else {
		prompter = prompt.AlwaysSkip()
	}

	var tags scan.TagResolver
	if key := viper.GetString("acoustid_key"); key != "" {
		tags = lookup.NewClient(key)
	}

	return scan.New(&scan.Config{
		Store:          db,
		Index:          fpindex.New(viper.GetInt("index.block_size"), viper.GetInt("index.max_blocks")),
		Thresholds:     th,
		Prompter:       prompter,
		Fingerprinter:  fpcalc,
		Tags:           tags,
		DupDir:         viper.GetString("dup_dir"),
		LibraryDir:     viper.GetString("library_dir"),
		DryRun:         viper.GetBool("dry_run"),
		AdditionalExts: viper.GetStringSlice("extensions"),
		Logger:         logger,
	})
}
