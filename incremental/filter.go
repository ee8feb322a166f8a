// Package incremental keeps only the rows the warehouse has not stored yet.
package incremental

import (
	"strings"
	"time"

	"github.com/rasnes/stock-warehouse-etl/models"
)

type priceKey struct {
	ticker string
	date   time.Time
}

// NewPrices left-joins fetched rows onto the high-water marks by ticker and
// keeps a row when its ticker has no mark or its date is strictly after the
// mark. Tickers compare case-insensitively. A (ticker, date) pair repeated in
// fetched is kept once. Neither input is modified.
func NewPrices(fetched []models.PriceRow, marks []models.HighWaterMark) []models.PriceRow {
	maxDates := make(map[string]time.Time, len(marks))
	for _, m := range marks {
		ticker := strings.ToUpper(m.Ticker)
		date := models.Date(m.MaxDate)
		if prev, ok := maxDates[ticker]; !ok || date.After(prev) {
			maxDates[ticker] = date
		}
	}

	seen := make(map[priceKey]struct{}, len(fetched))
	out := make([]models.PriceRow, 0)
	for _, row := range fetched {
		ticker := strings.ToUpper(row.Ticker)
		date := models.Date(row.Date)
		if maxDate, ok := maxDates[ticker]; ok && !date.After(maxDate) {
			continue
		}
		key := priceKey{ticker: ticker, date: date}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out
}

// NewProfiles keeps the profiles whose ticker, upper-cased, is not in existing
// (also upper-cased). A ticker repeated in fetched is kept once.
func NewProfiles(fetched []models.ProfileRow, existing []string) []models.ProfileRow {
	skip := make(map[string]struct{}, len(existing)+len(fetched))
	for _, t := range existing {
		skip[strings.ToUpper(strings.TrimSpace(t))] = struct{}{}
	}

	out := make([]models.ProfileRow, 0)
	for _, row := range fetched {
		ticker := strings.ToUpper(strings.TrimSpace(row.Ticker))
		if _, ok := skip[ticker]; ok {
			continue
		}
		skip[ticker] = struct{}{}
		out = append(out, row)
	}
	return out
}
