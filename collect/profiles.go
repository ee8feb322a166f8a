package collect

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"github.com/rasnes/stock-warehouse-etl/models"
	"github.com/sourcegraph/conc/iter"
)

// ProfileFetcher performs one blocking profile lookup.
type ProfileFetcher func(ctx context.Context, ticker string) (models.ProfileRow, error)

// Report is the outcome of a collection: every requested ticker ends up in
// exactly one of Profiles or Failed.
type Report struct {
	Profiles []models.ProfileRow
	Failed   map[string]error
}

// FailedTickers returns the tickers whose lookup failed, sorted.
func (r Report) FailedTickers() []string {
	tickers := make([]string, 0, len(r.Failed))
	for t := range r.Failed {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// Err joins the per-ticker failures, or returns nil if there were none.
func (r Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, t := range r.FailedTickers() {
		errs = append(errs, fmt.Errorf("ticker %s: %w", t, r.Failed[t]))
	}
	return errors.Join(errs...)
}

// PoolSize is min(GOMAXPROCS, n). A positive parallelism can only lower the
// cap, never raise it above GOMAXPROCS.
func PoolSize(parallelism, n int) int {
	if n <= 0 {
		return 0
	}
	limit := runtime.GOMAXPROCS(0)
	if parallelism > 0 {
		limit = min(limit, parallelism)
	}
	return min(limit, n)
}

// Profiles looks up every ticker on a pool of PoolSize(parallelism, len(tickers))
// goroutines. A failed lookup is recorded against its ticker and never
// discards the others. Profiles are not returned in any particular order.
func Profiles(ctx context.Context, tickers []string, fetch ProfileFetcher, parallelism int) Report {
	report := Report{Failed: make(map[string]error)}

	size := PoolSize(parallelism, len(tickers))
	if size == 0 {
		return report
	}

	type result struct {
		row models.ProfileRow
		err error
	}

	mapper := iter.Mapper[string, result]{
		MaxGoroutines: size,
	}
	results := mapper.Map(tickers, func(ticker *string) result {
		if err := ctx.Err(); err != nil {
			return result{err: err}
		}
		row, err := fetch(ctx, *ticker)
		return result{row: row, err: err}
	})

	for i, res := range results {
		if res.err != nil {
			report.Failed[tickers[i]] = res.err
			continue
		}
		report.Profiles = append(report.Profiles, res.row)
	}

	return report
}
