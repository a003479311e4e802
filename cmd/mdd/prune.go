package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/franz/music-dedup/internal/fpindex"
	"github.com/franz/music-dedup/internal/store"
	"github.com/franz/music-dedup/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Check database health and optionally drop duplicate history",
	Long: `Report what pruning would remove. Duplicate-marked rows are kept by
default so their fingerprints keep matching re-imports of the same encoding;
--ghosts removes them and their index blocks, trading that protection for a
smaller database. --check runs a database integrity check.`,
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().Bool("ghosts", false, "delete duplicate-marked rows and their index blocks")
	pruneCmd.Flags().Bool("check", false, "run a database integrity check")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	applyLogConfig()

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if check, _ := cmd.Flags().GetBool("check"); check {
		if err := db.CheckIntegrity(); err != nil {
			return err
		}
		util.SuccessLog("Integrity check passed")
	}

	_, dupCount, _, dupBytes, err := db.CountTracks()
	if err != nil {
		return err
	}
	if dupCount == 0 {
		util.InfoLog("No duplicate history to prune")
		return nil
	}

	ghosts, _ := cmd.Flags().GetBool("ghosts")
	if !ghosts {
		util.InfoLog("%d duplicate rows (%s of archived files) would be removed by --ghosts",
			dupCount, humanize.Bytes(uint64(dupBytes)))
		return nil
	}

	tracks, err := db.GetAllTracks()
	if err != nil {
		return err
	}

	idx := fpindex.New(viper.GetInt("index.block_size"), viper.GetInt("index.max_blocks"))
	removed := 0
	err = db.Transaction(func(tx *store.Tx) error {
		for _, t := range tracks {
			if !t.Duplicate {
				continue
			}
			if err := idx.Evict(tx, t.ID); err != nil {
				return err
			}
			if err := tx.DeleteTrack(t.ID); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	util.SuccessLog("Pruned %d duplicate rows (%s)", removed, humanize.Bytes(uint64(dupBytes)))
	return nil
}
