package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/newswire-app/newswire/internal/hackernews"
	"github.com/newswire-app/newswire/internal/logging"
	"github.com/newswire-app/newswire/internal/worker"

	"github.com/spf13/cobra"
)

var ingestLimit int

// ingestCmd runs one collection pass and exits, for cron-style setups.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch the Hacker News front page once and store new items",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		logging.Setup(cfg.App.Env, cfg.App.LogLevel)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		limit := cfg.Ingest.Limit
		if ingestLimit > 0 {
			limit = ingestLimit
		}

		collector := &worker.Collector{
			Client: hackernews.NewClient(cfg.Ingest.BaseAPI),
			Store:  st,
			Limit:  limit,
		}
		inserted, err := collector.Collect(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored %d new items\n", inserted)
		return nil
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestLimit, "limit", 0, "number of front page stories to fetch")
	rootCmd.AddCommand(ingestCmd)
}
