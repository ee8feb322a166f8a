package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/rasnes/stock-warehouse-etl/config"
	"github.com/rasnes/stock-warehouse-etl/extract"
	"github.com/rasnes/stock-warehouse-etl/load"
	"github.com/rasnes/stock-warehouse-etl/models"
	"github.com/rasnes/stock-warehouse-etl/schema"
	"github.com/rasnes/stock-warehouse-etl/transform"
	"github.com/rasnes/stock-warehouse-etl/utils"
)

// MarketData is the upstream provider.
type MarketData interface {
	GetHistory(ctx context.Context, tickers []string) (transform.GroupedFrame, error)
	GetProfile(ctx context.Context, ticker string) (models.ProfileRow, error)
}

type Pipeline struct {
	Warehouse load.Warehouse
	Client    MarketData
	Logger    *slog.Logger
	Schema    schema.Schema

	Tickers             []string
	PriceTable          string
	ProfileTable        string
	ProfileWorkers      int
	FailOnProfileErrors bool
}

// RunReport summarises one run.
type RunReport struct {
	NewPriceRows   int64
	NewProfileRows int64
	FailedProfiles []string
}

func NewPipeline(ctx context.Context, config *config.Config, creds config.Credentials, logger *slog.Logger, timeProvider utils.TimeProvider) (*Pipeline, error) {
	for _, table := range []string{config.Pipeline.PriceTable, config.Pipeline.ProfileTable} {
		if err := schema.ValidateIdentifier(table); err != nil {
			return nil, fmt.Errorf("invalid pipeline table: %w", err)
		}
	}

	s, err := schema.LoadFile(resolvePath(config.Pipeline.SchemaFile))
	if err != nil {
		return nil, fmt.Errorf("error loading schema: %w", err)
	}

	client, err := extract.NewYahooClient(config, logger, timeProvider)
	if err != nil {
		return nil, fmt.Errorf("error creating Yahoo HTTP client: %w", err)
	}

	wh, err := load.Open(ctx, config, creds, logger)
	if err != nil {
		return nil, fmt.Errorf("error opening warehouse: %w", err)
	}

	return &Pipeline{
		Warehouse:           wh,
		Client:              client,
		Logger:              logger,
		Schema:              s,
		Tickers:             config.Pipeline.Tickers,
		PriceTable:          config.Pipeline.PriceTable,
		ProfileTable:        config.Pipeline.ProfileTable,
		ProfileWorkers:      config.Pipeline.ProfileWorkers,
		FailOnProfileErrors: config.Pipeline.FailOnProfileErrors,
	}, nil
}

// resolvePath falls back to the project root when path is not found relative
// to the working directory.
func resolvePath(path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return utils.RootPath(path)
}

func (p *Pipeline) Close() error {
	return p.Warehouse.Close()
}

// WithSession acquires a warehouse session, runs fn with it and releases it,
// whether fn succeeds or not.
func (p *Pipeline) WithSession(ctx context.Context, fn func(load.Session) error) (err error) {
	session, err := p.Warehouse.Session(ctx)
	if err != nil {
		return fmt.Errorf("error acquiring warehouse session: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("error releasing warehouse session: %w", closeErr))
		}
	}()
	return fn(session)
}

// Run ensures the tables, then loads new prices and new profiles, in that
// order, within one session. A failure in the first two stages aborts the run.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	var report RunReport
	err := p.WithSession(ctx, func(session load.Session) error {
		if err := p.EnsureTables(ctx, session); err != nil {
			return err
		}

		n, err := p.LoadPrices(ctx, session)
		if err != nil {
			return err
		}
		report.NewPriceRows = n

		profiles, err := p.LoadProfiles(ctx, session)
		report.NewProfileRows = profiles.Loaded
		report.FailedProfiles = profiles.Failed
		return err
	})

	if err != nil {
		return report, err
	}

	p.Logger.Info("Run finished",
		"new_price_rows", report.NewPriceRows,
		"new_profile_rows", report.NewProfileRows,
		"failed_profiles", len(report.FailedProfiles))
	return report, nil
}

// EnsureTables creates any table of the schema that does not exist yet.
func (p *Pipeline) EnsureTables(ctx context.Context, session load.Session) error {
	if err := schema.Ensure(ctx, session, p.Schema); err != nil {
		return fmt.Errorf("error ensuring tables: %w", err)
	}
	p.Logger.Info("Tables ensured", "tables", len(p.Schema.Tables))
	return nil
}

func (p *Pipeline) tickers() ([]string, error) {
	tickers := utils.UniqueTickers(p.Tickers)
	if len(tickers) == 0 {
		return nil, errors.New("no tickers configured")
	}
	return tickers, nil
}
