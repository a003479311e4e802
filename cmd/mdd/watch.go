package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/franz/music-dedup/internal/util"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Watch a directory and deduplicate new files as they arrive",
	Long: `Watch a directory tree and run a scan whenever files change. Events are
debounced so a batch import triggers one scan, not one per file. Because
unchanged files are skipped by size and mtime, each triggered scan only
touches what actually changed.

Watch mode never prompts; ambiguous files are left unresolved for a later
interactive scan.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringP("source", "s", "", "directory to watch")
	watchCmd.Flags().Duration("debounce", 10*time.Second, "settle time before a triggered scan")

	viper.BindPFlag("watch.debounce", watchCmd.Flags().Lookup("debounce"))

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	applyLogConfig()

	source := viper.GetString("source")
	if len(args) > 0 {
		source = args[0]
	}
	if source == "" {
		if s, _ := cmd.Flags().GetString("source"); s != "" {
			source = s
		}
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

	// Unattended mode, conflicts wait for an interactive scan
	ctrl, err := buildController(db, logger, false)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchTree(watcher, source); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debounce := viper.GetDuration("watch.debounce")
	if debounce <= 0 {
		debounce = 10 * time.Second
	}

	settle := time.NewTimer(debounce)
	settle.Stop()

	util.InfoLog("Watching %s (debounce %v)", source, debounce)

	// Initial pass picks up anything that arrived while not watching
	if _, err := ctrl.Run(ctx, source); err != nil && ctx.Err() == nil {
		util.ErrorLog("Initial scan failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			util.InfoLog("Watch stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			// New directories must be watched before files land in them
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := watchTree(watcher, event.Name); err != nil {
					util.WarnLog("Failed to watch %s: %v", event.Name, err)
				}
			}
			settle.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			util.WarnLog("Watcher error: %v", err)

		case <-settle.C:
			result, err := ctrl.Run(ctx, source)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				util.ErrorLog("Triggered scan failed: %v", err)
				continue
			}
			if result.Ambiguous > 0 {
				util.WarnLog("%d files unresolved; run 'mdd scan %s' interactively", result.Ambiguous, source)
			}
		}
	}
}

// watchTree registers every directory under root with the watcher
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			util.WarnLog("Error accessing path %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
