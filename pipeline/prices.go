package pipeline

import (
	"context"
	"fmt"

	"github.com/rasnes/stock-warehouse-etl/incremental"
	"github.com/rasnes/stock-warehouse-etl/load"
	"github.com/rasnes/stock-warehouse-etl/transform"
)

// LoadPrices fetches the full history of every ticker and appends the rows
// newer than each ticker's high-water mark. It returns the number of rows
// appended; zero new rows is not an error.
func (p *Pipeline) LoadPrices(ctx context.Context, session load.Session) (int64, error) {
	tickers, err := p.tickers()
	if err != nil {
		return 0, err
	}

	frame, err := p.Client.GetHistory(ctx, tickers)
	if err != nil {
		return 0, fmt.Errorf("error fetching price history: %w", err)
	}

	fetched, skipped := transform.Stack(frame)
	for ticker, err := range skipped {
		p.Logger.Warn("Skipping malformed price history", "ticker", ticker, "error", err)
	}

	marks, err := session.HighWaterMarks(ctx, p.PriceTable, tickers)
	if err != nil {
		return 0, fmt.Errorf("error reading high-water marks: %w", err)
	}

	rows := incremental.NewPrices(fetched, marks)
	if len(rows) == 0 {
		p.Logger.Info("No new price rows to load", "table", p.PriceTable, "fetched", len(fetched))
		return 0, nil
	}

	n, err := session.Append(ctx, p.PriceTable, load.PriceTable(rows), false)
	if err != nil {
		return 0, fmt.Errorf("error loading prices: %w", err)
	}

	p.Logger.Info("Loaded new price rows",
		"table", p.PriceTable,
		"fetched", len(fetched),
		"new", n,
		"tickers", len(tickers),
		"new_tickers", len(tickers)-len(marks))
	return n, nil
}
