package cmd

import (
	"context"
	"log/slog"

	"github.com/rasnes/stock-warehouse-etl/load"
	"github.com/rasnes/stock-warehouse-etl/pipeline"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage warehouse tables",
}

func newEnsureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Creates the tables of the schema file that do not exist yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(func(ctx context.Context, p *pipeline.Pipeline, log *slog.Logger) error {
				return p.WithSession(ctx, func(session load.Session) error {
					return p.EnsureTables(ctx, session)
				})
			})
		},
	}
}

func newPricesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prices",
		Short: "Loads price rows newer than each ticker's high-water mark",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(func(ctx context.Context, p *pipeline.Pipeline, log *slog.Logger) error {
				return p.WithSession(ctx, func(session load.Session) error {
					n, err := p.LoadPrices(ctx, session)
					if err != nil {
						log.Error("Error loading prices", "error", err)
						return err
					}
					log.Info("Prices loaded", "new_price_rows", n)
					return nil
				})
			})
		},
	}
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "Loads profiles for tickers not yet in the profile table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(func(ctx context.Context, p *pipeline.Pipeline, log *slog.Logger) error {
				return p.WithSession(ctx, func(session load.Session) error {
					result, err := p.LoadProfiles(ctx, session)
					if err != nil {
						log.Error("Error loading profiles", "error", err, "failed_profiles", result.Failed)
						return err
					}
					log.Info("Profiles loaded", "new_profile_rows", result.Loaded, "failed_profiles", result.Failed)
					return nil
				})
			})
		},
	}
}
