package main

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/worldofchami/ucpchat/pkg/store"
)

func newPruneCommand() *cobra.Command {
	var olderThan, keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old conversations and their messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 && keep < 0 {
				return errors.New("prune needs --older-than and/or --keep")
			}
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			ctx := cmd.Context()
			if olderThan > 0 {
				cutoff := time.Now().AddDate(0, 0, -olderThan)
				n, err := st.PruneOlderThan(ctx, cutoff)
				if err != nil {
					return err
				}
				logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("prune_older_than_completed")
			}
			if keep >= 0 {
				n, err := st.PruneExcess(ctx, keep)
				if err != nil {
					return err
				}
				logger.Info().Int64("deleted", n).Int("keep", keep).Msg("prune_excess_completed")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&olderThan, "older-than", 0, "delete conversations older than this many days")
	cmd.Flags().IntVar(&keep, "keep", -1, "keep only the newest N conversations")
	return cmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print conversation and message counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}
