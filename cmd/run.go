package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nosite-cli/internal/pipeline"
	anthropicpkg "github.com/sells-group/nosite-cli/pkg/anthropic"
	"github.com/sells-group/nosite-cli/pkg/places"
)

var (
	runLocation   string
	runType       string
	runMaxResults int
	runBatchSize  int
	runOutputDir  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a discovery pass for one location",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runOutputDir != "" {
			cfg.Pipeline.OutputDir = runOutputDir
		}

		placesClient := places.NewClient(cfg.Places.Key,
			places.WithRateLimit(cfg.Places.RateLimitRPS),
			places.WithPageDelay(time.Duration(cfg.Places.PageDelaySecs)*time.Second),
		)
		anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

		p := pipeline.New(cfg, placesClient, anthropicClient, pipeline.NewWriterSink(os.Stdout))

		summary, err := p.Run(cmd.Context(), pipeline.Request{
			Location:     runLocation,
			BusinessType: runType,
			MaxResults:   runMaxResults,
			BatchSize:    runBatchSize,
		})
		if err != nil {
			return err
		}

		zap.L().Info("run finished",
			zap.String("run_id", summary.RunID),
			zap.Int("analyzed", summary.Analyzed),
			zap.Int("without_website", summary.WithoutWebsite),
			zap.String("text_report", summary.TextPath),
			zap.String("csv_report", summary.CSVPath),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runLocation, "location", "Nugegoda, Sri Lanka", "location to search around")
	runCmd.Flags().StringVar(&runType, "type", "", "Places business type filter (e.g. restaurant)")
	runCmd.Flags().IntVar(&runMaxResults, "max-results", 0, "max businesses to analyze (default from config)")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 0, "businesses per AI batch (default from config)")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "directory for report files (default from config)")
	rootCmd.AddCommand(runCmd)
}
