package incremental

import (
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rasnes/stock-warehouse-etl/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func price(ticker, date string) models.PriceRow {
	return models.PriceRow{
		Ticker:   ticker,
		Date:     day(date),
		Open:     decimal.NewFromInt(1),
		High:     decimal.NewFromInt(2),
		Low:      decimal.NewFromInt(1),
		Close:    decimal.NewFromInt(2),
		AdjClose: decimal.NewFromInt(2),
		Volume:   100,
	}
}

func TestNewPrices(t *testing.T) {
	tests := []struct {
		name     string
		fetched  []models.PriceRow
		marks    []models.HighWaterMark
		expected []models.PriceRow
	}{
		{
			name:     "new ticker keeps every row",
			fetched:  []models.PriceRow{price("AAA", "2024-01-01"), price("AAA", "2024-01-02")},
			marks:    nil,
			expected: []models.PriceRow{price("AAA", "2024-01-01"), price("AAA", "2024-01-02")},
		},
		{
			name:     "rows up to the mark are dropped",
			fetched:  []models.PriceRow{price("AAA", "2024-01-01"), price("AAA", "2024-01-02")},
			marks:    []models.HighWaterMark{{Ticker: "AAA", MaxDate: day("2024-01-01")}},
			expected: []models.PriceRow{price("AAA", "2024-01-02")},
		},
		{
			name:     "empty fetch",
			fetched:  nil,
			marks:    []models.HighWaterMark{{Ticker: "AAA", MaxDate: day("2024-01-01")}},
			expected: []models.PriceRow{},
		},
		{
			name:     "fully loaded ticker yields nothing",
			fetched:  []models.PriceRow{price("AAA", "2023-12-29"), price("AAA", "2024-01-01")},
			marks:    []models.HighWaterMark{{Ticker: "AAA", MaxDate: day("2024-01-01")}},
			expected: []models.PriceRow{},
		},
		{
			name:     "marks only apply to their own ticker",
			fetched:  []models.PriceRow{price("AAA", "2024-01-01"), price("BBB", "2024-01-01")},
			marks:    []models.HighWaterMark{{Ticker: "AAA", MaxDate: day("2024-01-01")}},
			expected: []models.PriceRow{price("BBB", "2024-01-01")},
		},
		{
			name:     "mark ticker compares case-insensitively",
			fetched:  []models.PriceRow{price("AAA", "2024-01-01"), price("AAA", "2024-01-02")},
			marks:    []models.HighWaterMark{{Ticker: "aaa", MaxDate: day("2024-01-01")}},
			expected: []models.PriceRow{price("AAA", "2024-01-02")},
		},
		{
			name:     "mark with time of day is compared by date",
			fetched:  []models.PriceRow{price("AAA", "2024-01-01"), price("AAA", "2024-01-02")},
			marks:    []models.HighWaterMark{{Ticker: "AAA", MaxDate: day("2024-01-01").Add(15 * time.Hour)}},
			expected: []models.PriceRow{price("AAA", "2024-01-02")},
		},
		{
			name:     "duplicate pairs in the batch are kept once",
			fetched:  []models.PriceRow{price("AAA", "2024-01-02"), price("AAA", "2024-01-02")},
			marks:    nil,
			expected: []models.PriceRow{price("AAA", "2024-01-02")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewPrices(tt.fetched, tt.marks))
		})
	}
}

func TestNewPrices_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tickers := []string{"AAA", "BBB", "CCC", "DDD"}
	start := day("2024-01-01")

	for iter := 0; iter < 200; iter++ {
		var fetched []models.PriceRow
		for _, tk := range tickers {
			for d := 0; d < rng.Intn(10); d++ {
				fetched = append(fetched, models.PriceRow{Ticker: tk, Date: start.AddDate(0, 0, d)})
			}
		}
		var marks []models.HighWaterMark
		for _, tk := range tickers {
			if rng.Intn(2) == 0 {
				marks = append(marks, models.HighWaterMark{Ticker: tk, MaxDate: start.AddDate(0, 0, rng.Intn(10)-1)})
			}
		}
		fetchedCopy := slices.Clone(fetched)
		marksCopy := slices.Clone(marks)

		filtered := NewPrices(fetched, marks)

		markFor := func(tk string) (time.Time, bool) {
			for _, m := range marks {
				if m.Ticker == tk {
					return m.MaxDate, true
				}
			}
			return time.Time{}, false
		}

		for _, row := range fetched {
			maxDate, ok := markFor(row.Ticker)
			keep := !ok || row.Date.After(maxDate)
			assert.Equal(t, keep, slices.Contains(filtered, row), fmt.Sprintf("iteration %d row %v", iter, row))
		}
		for _, row := range filtered {
			assert.Contains(t, fetched, row)
		}

		assert.Equal(t, filtered, NewPrices(fetched, marks), "filter is idempotent")
		assert.Equal(t, fetchedCopy, fetched, "fetched rows are not mutated")
		assert.Equal(t, marksCopy, marks, "marks are not mutated")
	}
}

func TestNewProfiles(t *testing.T) {
	tests := []struct {
		name     string
		fetched  []models.ProfileRow
		existing []string
		expected []string
	}{
		{
			name:     "existing ticker matched case-insensitively",
			fetched:  []models.ProfileRow{{Ticker: "AAA"}},
			existing: []string{"aaa"},
			expected: []string{},
		},
		{
			name:     "new tickers kept",
			fetched:  []models.ProfileRow{{Ticker: "AAA"}, {Ticker: "bbb"}},
			existing: []string{"CCC"},
			expected: []string{"AAA", "bbb"},
		},
		{
			name:     "no existing tickers",
			fetched:  []models.ProfileRow{{Ticker: "AAA"}},
			existing: nil,
			expected: []string{"AAA"},
		},
		{
			name:     "duplicates in batch kept once",
			fetched:  []models.ProfileRow{{Ticker: "AAA"}, {Ticker: "aaa"}},
			existing: nil,
			expected: []string{"AAA"},
		},
		{
			name:     "empty fetch",
			fetched:  nil,
			existing: []string{"AAA"},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewProfiles(tt.fetched, tt.existing)
			tickers := make([]string, 0, len(got))
			for _, p := range got {
				tickers = append(tickers, p.Ticker)
			}
			assert.Equal(t, tt.expected, tickers)
		})
	}
}

func TestNewProfiles_DisjointFromExisting(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pool := []string{"aaa", "AAA", "Bbb", "ccc", "DDD", "eee"}

	for iter := 0; iter < 100; iter++ {
		var fetched []models.ProfileRow
		var existing []string
		for _, tk := range pool {
			if rng.Intn(2) == 0 {
				fetched = append(fetched, models.ProfileRow{Ticker: tk})
			}
			if rng.Intn(3) == 0 {
				existing = append(existing, tk)
			}
		}

		for _, row := range NewProfiles(fetched, existing) {
			for _, e := range existing {
				assert.False(t, strings.EqualFold(row.Ticker, e), "iteration %d: %s already exists", iter, row.Ticker)
			}
		}
	}
}
