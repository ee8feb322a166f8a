package extract

import (
	"context"
	"fmt"
	"strings"
)

// Crumb returns the session crumb the quoteSummary endpoint requires,
// negotiating it on first use. Concurrent callers share one negotiation.
func (c *YahooClient) Crumb(ctx context.Context) (string, error) {
	c.crumbMu.Lock()
	defer c.crumbMu.Unlock()

	if c.crumb != "" {
		return c.crumb, nil
	}
	// Callers may have been cancelled while queued behind another negotiation.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// The cookie endpoint answers 404 but sets the session cookie.
	if c.YahooConfig.CookieURL != "" {
		if _, _, err := c.get(ctx, c.YahooConfig.CookieURL); err != nil {
			return "", fmt.Errorf("error requesting session cookie: %w", err)
		}
	}

	body, err := c.FetchData(ctx, strings.TrimRight(c.YahooConfig.SummaryURL, "/")+"/v1/test/getcrumb", "crumb")
	if err != nil {
		return "", err
	}

	crumb := strings.TrimSpace(string(body))
	if crumb == "" || strings.HasPrefix(crumb, "<") {
		return "", fmt.Errorf("received invalid crumb %q", crumb)
	}
	c.crumb = crumb

	return crumb, nil
}

func (c *YahooClient) resetCrumb(stale string) {
	c.crumbMu.Lock()
	defer c.crumbMu.Unlock()
	if c.crumb == stale {
		c.crumb = ""
	}
}
