package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/rasnes/stock-warehouse-etl/models"
)

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []quoteSummaryResult `json:"result"`
		Error  *apiError            `json:"error"`
	} `json:"quoteSummary"`
}

type quoteSummaryResult struct {
	AssetProfile struct {
		Industry string `json:"industry"`
		Sector   string `json:"sector"`
		Country  string `json:"country"`
	} `json:"assetProfile"`
	Price struct {
		LongName  string `json:"longName"`
		ShortName string `json:"shortName"`
		QuoteType string `json:"quoteType"`
		MarketCap struct {
			Raw *float64 `json:"raw"`
		} `json:"marketCap"`
	} `json:"price"`
	QuoteType struct {
		QuoteType string `json:"quoteType"`
		LongName  string `json:"longName"`
	} `json:"quoteType"`
}

// GetProfile fetches the descriptive attributes of one ticker.
// Safe for concurrent use.
func (c *YahooClient) GetProfile(ctx context.Context, ticker string) (models.ProfileRow, error) {
	crumb, err := c.Crumb(ctx)
	if err != nil {
		return models.ProfileRow{}, err
	}

	parsedURL, err := url.Parse(strings.TrimRight(c.YahooConfig.SummaryURL, "/") + "/v10/finance/quoteSummary/" + url.PathEscape(ticker))
	if err != nil {
		return models.ProfileRow{}, fmt.Errorf("failed to parse URL: %w", err)
	}
	query := parsedURL.Query()
	query.Set("modules", "assetProfile,price,quoteType")
	query.Set("crumb", crumb)
	parsedURL.RawQuery = query.Encode()

	body, err := c.FetchData(ctx, parsedURL.String(), fmt.Sprintf("profile for ticker %s", ticker))
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized:
			// The crumb expired; the next request negotiates a new one.
			c.resetCrumb(crumb)
		case http.StatusNotFound:
			return models.ProfileRow{}, fmt.Errorf("profile for ticker %s: %w", ticker, ErrNoData)
		}
	}
	if err != nil {
		return models.ProfileRow{}, err
	}

	return parseProfile(body, ticker)
}

func parseProfile(body []byte, ticker string) (models.ProfileRow, error) {
	var resp quoteSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.ProfileRow{}, fmt.Errorf("error unmarshaling profile response for ticker %s: %w", ticker, err)
	}
	if resp.QuoteSummary.Error != nil && resp.QuoteSummary.Error.Code != "" {
		return models.ProfileRow{}, fmt.Errorf("profile error for ticker %s: %s: %s", ticker, resp.QuoteSummary.Error.Code, resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return models.ProfileRow{}, fmt.Errorf("profile for ticker %s: %w", ticker, ErrNoData)
	}

	r := resp.QuoteSummary.Result[0]
	row := models.ProfileRow{
		Ticker:      strings.ToUpper(ticker),
		CompanyName: firstNonEmpty(r.Price.LongName, r.Price.ShortName, r.QuoteType.LongName),
		Industry:    firstNonEmpty(r.AssetProfile.Industry),
		Sector:      firstNonEmpty(r.AssetProfile.Sector),
		Country:     firstNonEmpty(r.AssetProfile.Country),
		QuoteType:   firstNonEmpty(r.QuoteType.QuoteType, r.Price.QuoteType),
	}
	if r.Price.MarketCap.Raw != nil {
		row.MarketCap = null.IntFrom(int64(*r.Price.MarketCap.Raw))
	}

	return row, nil
}

// firstNonEmpty returns the first non-blank value, or models.Unavailable.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return models.Unavailable
}
