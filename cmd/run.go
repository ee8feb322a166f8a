package cmd

import (
	"context"
	"log/slog"

	"github.com/rasnes/stock-warehouse-etl/pipeline"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Ensures tables, then loads new prices and new profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(func(ctx context.Context, p *pipeline.Pipeline, log *slog.Logger) error {
				report, err := p.Run(ctx)
				if err != nil {
					log.Error("Error running pipeline", "error", err,
						"new_price_rows", report.NewPriceRows,
						"new_profile_rows", report.NewProfileRows)
					return err
				}
				log.Info("Batch job completed without errors",
					"new_price_rows", report.NewPriceRows,
					"new_profile_rows", report.NewProfileRows,
					"failed_profiles", report.FailedProfiles)
				return nil
			})
		},
	}
}
