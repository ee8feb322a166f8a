package transform

import (
	"fmt"
	"math"
	"time"

	"github.com/rasnes/stock-warehouse-etl/models"
)

// Block is the history of one ticker in the provider's grouped layout:
// a shared timestamp index and one value column per provider label.
// A nil value means the provider had no observation.
type Block struct {
	Ticker     string
	Timestamps []int64 // unix seconds
	GMTOffset  int64   // exchange offset from UTC, seconds
	Columns    map[string][]*float64
}

// GroupedFrame holds one Block per ticker.
type GroupedFrame []Block

var requiredColumns = []string{"OPEN", "HIGH", "LOW", "CLOSE", "VOLUME"}

// Stack reshapes a grouped frame into one PriceRow per (ticker, date).
// Rows with a missing price or volume are dropped; a ticker without
// timestamps contributes nothing. A block whose columns do not line up with
// its timestamps is skipped and reported in skipped, keyed by ticker, so one
// partial response never costs the other tickers their rows.
// Row order follows the frame.
func Stack(frame GroupedFrame) (rows []models.PriceRow, skipped map[string]error) {
	skipped = make(map[string]error)
	for _, block := range frame {
		blockRows, err := stackBlock(block)
		if err != nil {
			skipped[block.Ticker] = err
			continue
		}
		rows = append(rows, blockRows...)
	}
	return rows, skipped
}

func stackBlock(block Block) ([]models.PriceRow, error) {
	if len(block.Timestamps) == 0 {
		return nil, nil
	}

	cols := make(map[string][]*float64, len(block.Columns))
	for label, values := range block.Columns {
		if len(values) != len(block.Timestamps) {
			return nil, fmt.Errorf("column %q has %d values, expected %d", label, len(values), len(block.Timestamps))
		}
		cols[NormalizeColumnName(label)] = values
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("column %s missing", name)
		}
	}
	adj, ok := cols["ADJ_CLOSE"]
	if !ok {
		adj = cols["CLOSE"]
	}

	var rows []models.PriceRow
	offset := time.Duration(block.GMTOffset) * time.Second
	for i, ts := range block.Timestamps {
		open, high, low, cls, adjClose, vol := cols["OPEN"][i], cols["HIGH"][i], cols["LOW"][i], cols["CLOSE"][i], adj[i], cols["VOLUME"][i]
		if anyMissing(open, high, low, cls, adjClose, vol) {
			continue
		}
		rows = append(rows, models.PriceRow{
			Date:     models.Date(time.Unix(ts, 0).UTC().Add(offset)),
			Ticker:   block.Ticker,
			Open:     models.Price(*open),
			High:     models.Price(*high),
			Low:      models.Price(*low),
			Close:    models.Price(*cls),
			AdjClose: models.Price(*adjClose),
			Volume:   int64(math.Round(*vol)),
		})
	}
	return rows, nil
}

func anyMissing(values ...*float64) bool {
	for _, v := range values {
		if v == nil || math.IsNaN(*v) {
			return true
		}
	}
	return false
}
