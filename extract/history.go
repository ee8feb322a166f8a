package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rasnes/stock-warehouse-etl/transform"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// GetHistory fetches the full daily history of every ticker, one request per
// ticker in order, and returns it in the provider's grouped layout.
// Tickers without data yield an empty block; any other failure aborts.
func (c *YahooClient) GetHistory(ctx context.Context, tickers []string) (transform.GroupedFrame, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers requested")
	}

	frame := make(transform.GroupedFrame, 0, len(tickers))
	for _, ticker := range tickers {
		block, err := c.history(ctx, ticker)
		if errors.Is(err, ErrNoData) {
			c.Logger.Warn("No price history returned", "ticker", ticker)
			frame = append(frame, transform.Block{Ticker: ticker})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error fetching history for ticker %s: %w", ticker, err)
		}
		frame = append(frame, block)
	}

	return frame, nil
}

func (c *YahooClient) history(ctx context.Context, ticker string) (transform.Block, error) {
	url, err := c.historyURL(ticker)
	if err != nil {
		return transform.Block{}, err
	}

	body, err := c.FetchData(ctx, url, fmt.Sprintf("history for ticker %s", ticker))
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return transform.Block{}, ErrNoData
	}
	if err != nil {
		return transform.Block{}, err
	}

	return parseChart(body, ticker)
}

func parseChart(body []byte, ticker string) (transform.Block, error) {
	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return transform.Block{}, fmt.Errorf("error unmarshaling chart response: %w", err)
	}
	if resp.Chart.Error != nil && resp.Chart.Error.Code != "" {
		if resp.Chart.Error.Code == "Not Found" {
			return transform.Block{}, ErrNoData
		}
		return transform.Block{}, fmt.Errorf("chart error %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return transform.Block{}, ErrNoData
	}

	result := resp.Chart.Result[0]
	block := transform.Block{
		Ticker:     ticker,
		Timestamps: result.Timestamp,
		GMTOffset:  result.Meta.GMTOffset,
		Columns:    map[string][]*float64{},
	}
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		block.Timestamps = nil
		return block, nil
	}

	quote := result.Indicators.Quote[0]
	block.Columns["Open"] = quote.Open
	block.Columns["High"] = quote.High
	block.Columns["Low"] = quote.Low
	block.Columns["Close"] = quote.Close
	block.Columns["Volume"] = quote.Volume
	if len(result.Indicators.AdjClose) > 0 {
		block.Columns["Adj Close"] = result.Indicators.AdjClose[0].AdjClose
	}

	return block, nil
}
