package models

import (
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// Unavailable is stored in profile string fields the provider leaves out.
const Unavailable = "Unavailable"

// PriceScale is the number of fractional digits kept for prices, matching DECIMAL(18,4).
const PriceScale = 4

var PriceColumns = []string{"DATE", "TICKER", "OPEN", "HIGH", "LOW", "CLOSE", "ADJ_CLOSE", "VOLUME"}

var ProfileColumns = []string{"TICKER", "COMPANY_NAME", "INDUSTRY", "SECTOR", "COUNTRY", "QUOTE_TYPE", "MARKET_CAP"}

// PriceRow is one daily OHLCV observation, unique per (Ticker, Date).
type PriceRow struct {
	Date     time.Time
	Ticker   string
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	AdjClose decimal.Decimal
	Volume   int64
}

// Values returns the row in PriceColumns order.
func (r PriceRow) Values() []any {
	return []any{r.Date, r.Ticker, r.Open, r.High, r.Low, r.Close, r.AdjClose, r.Volume}
}

// ProfileRow holds the descriptive attributes of a ticker, unique per Ticker.
type ProfileRow struct {
	Ticker      string
	CompanyName string
	Industry    string
	Sector      string
	Country     string
	QuoteType   string
	MarketCap   null.Int64
}

// Values returns the row in ProfileColumns order.
func (r ProfileRow) Values() []any {
	return []any{r.Ticker, r.CompanyName, r.Industry, r.Sector, r.Country, r.QuoteType, r.MarketCap}
}

// HighWaterMark is the latest date already stored for a ticker.
type HighWaterMark struct {
	Ticker  string
	MaxDate time.Time
}

// Date truncates t to its calendar date in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Price rounds a provider float to PriceScale digits.
func Price(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(PriceScale)
}
