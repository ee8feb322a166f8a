package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rasnes/stock-warehouse-etl/config"
	"github.com/rasnes/stock-warehouse-etl/utils"
	"golang.org/x/net/publicsuffix"
)

// ErrNoData is returned when the provider has nothing for a ticker.
var ErrNoData = errors.New("no data available")

// maxHistoryStart is the period1 Yahoo accepts for "all available history" (1900-01-01).
const maxHistoryStart = -2208994789

// StatusError is a non-200 response from the provider.
type StatusError struct {
	Description string
	StatusCode  int
	Status      string
	Body        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to fetch the `%s` file, status: %s, body: %s", e.Description, e.Status, e.Body)
}

type YahooClient struct {
	HTTPClient     *retryablehttp.Client
	Logger         *slog.Logger
	YahooConfig    *config.YahooConfig
	RequestTimeout time.Duration
	timeProvider   utils.TimeProvider

	crumbMu sync.Mutex
	crumb   string
}

func NewYahooClient(config *config.Config, logger *slog.Logger, timeProvider utils.TimeProvider) (*YahooClient, error) {
	if config.Extract.Yahoo.ChartURL == "" || config.Extract.Yahoo.SummaryURL == "" {
		return nil, fmt.Errorf("yahoo chart_url and summary_url must be set")
	}
	if timeProvider == nil {
		timeProvider = utils.RealTimeProvider{}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := &YahooClient{
		HTTPClient:     retryablehttp.NewClient(),
		Logger:         logger,
		YahooConfig:    &config.Extract.Yahoo,
		RequestTimeout: config.Extract.RequestTimeout,
		timeProvider:   timeProvider,
	}

	client.HTTPClient.RetryWaitMin = config.Extract.Backoff.RetryWaitMin
	client.HTTPClient.RetryWaitMax = config.Extract.Backoff.RetryWaitMax
	client.HTTPClient.RetryMax = config.Extract.Backoff.RetryMax
	client.HTTPClient.Logger = logger
	client.HTTPClient.HTTPClient.Jar = jar

	return client, nil
}

// FetchData handles the common logic of making the HTTP request and checking the response status
func (c *YahooClient) FetchData(ctx context.Context, url, description string) ([]byte, error) {
	body, resp, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("error requesting %s: %w", description, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{
			Description: description,
			StatusCode:  resp.StatusCode,
			Status:      resp.Status,
			Body:        string(body),
		}
	}

	return body, nil
}

// historyURL builds the chart request covering the full available daily history
func (c *YahooClient) historyURL(ticker string) (string, error) {
	parsedURL, err := url.Parse(strings.TrimRight(c.YahooConfig.ChartURL, "/") + "/v8/finance/chart/" + url.PathEscape(ticker))
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	query := parsedURL.Query()
	query.Set("period1", strconv.FormatInt(maxHistoryStart, 10))
	query.Set("period2", strconv.FormatInt(c.timeProvider.Now().Unix(), 10))
	query.Set("interval", "1d")
	query.Set("events", "div,split")
	query.Set("includeAdjustedClose", "true")
	parsedURL.RawQuery = query.Encode()

	return parsedURL.String(), nil
}

// get fetches the URL with a per-request timeout and returns the body and response
func (c *YahooClient) get(ctx context.Context, url string) (body []byte, resp *http.Response, err error) {
	if c.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.RequestTimeout)
		defer cancel()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	if c.YahooConfig.UserAgent != "" {
		req.Header.Set("User-Agent", c.YahooConfig.UserAgent)
	}

	resp, err = c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	return body, resp, nil
}
