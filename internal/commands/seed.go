package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/logwell-systems/logwell/internal/seeder"
)

var (
	seedURL       string
	seedAPIKey    string
	seedCount     int
	seedBatchSize int
	seedErrorRate float64
	seedSpread    time.Duration
	seedInterval  time.Duration
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate and ingest synthetic log traffic",
	Long: `seed posts generated log batches to a running ingest endpoint.
Error records reuse a small set of failure sites so the traffic produces
a realistic incident list instead of one incident per record.

Examples:
  logwell seed --key lw_yourkey --count 5000
  logwell seed --key lw_yourkey --url http://localhost:8080/v1/ingest --spread 48h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner := seeder.NewRunner(&seeder.Config{
			URL:        seedURL,
			APIKey:     seedAPIKey,
			Count:      seedCount,
			BatchSize:  seedBatchSize,
			ErrorRate:  seedErrorRate,
			TimeSpread: seedSpread,
			Interval:   seedInterval,
		})
		return runner.Run()
	},
}

func init() {
	defaults := seeder.DefaultConfig()

	seedCmd.Flags().StringVar(&seedURL, "url", defaults.URL, "ingest endpoint URL")
	seedCmd.Flags().StringVar(&seedAPIKey, "key", "", "lw_ API key (required)")
	seedCmd.Flags().IntVar(&seedCount, "count", defaults.Count, "number of records to generate")
	seedCmd.Flags().IntVar(&seedBatchSize, "batch-size", defaults.BatchSize, "records per batch")
	seedCmd.Flags().Float64Var(&seedErrorRate, "error-rate", defaults.ErrorRate, "fraction of records at error or fatal level")
	seedCmd.Flags().DurationVar(&seedSpread, "spread", defaults.TimeSpread, "spread timestamps over this past window")
	seedCmd.Flags().DurationVar(&seedInterval, "interval", 0, "pause between records")
	seedCmd.MarkFlagRequired("key")

	rootCmd.AddCommand(seedCmd)
}
