package pipeline

import (
	"context"
	"fmt"

	"github.com/rasnes/stock-warehouse-etl/collect"
	"github.com/rasnes/stock-warehouse-etl/incremental"
	"github.com/rasnes/stock-warehouse-etl/load"
	"github.com/rasnes/stock-warehouse-etl/utils"
)

// ProfileResult is the outcome of the profile stage.
type ProfileResult struct {
	Loaded int64
	Failed []string
}

// LoadProfiles looks up the profile of every ticker not yet stored and
// appends them. Lookups that fail are skipped and reported; the successes are
// still loaded. With FailOnProfileErrors set, failures are also returned as
// an error once the successes are loaded.
func (p *Pipeline) LoadProfiles(ctx context.Context, session load.Session) (ProfileResult, error) {
	tickers, err := p.tickers()
	if err != nil {
		return ProfileResult{}, err
	}

	existing, err := session.ExistingTickers(ctx, p.ProfileTable)
	if err != nil {
		return ProfileResult{}, fmt.Errorf("error reading existing profile tickers: %w", err)
	}

	missing := missingTickers(tickers, existing)
	if len(missing) == 0 {
		p.Logger.Info("No new profiles to load", "table", p.ProfileTable)
		return ProfileResult{}, nil
	}

	report := collect.Profiles(ctx, missing, p.Client.GetProfile, p.ProfileWorkers)
	if err := ctx.Err(); err != nil {
		return ProfileResult{}, fmt.Errorf("profile lookups interrupted: %w", err)
	}

	var result ProfileResult
	if len(report.Failed) > 0 {
		result.Failed = report.FailedTickers()
	}
	for _, ticker := range result.Failed {
		p.Logger.Warn("Profile lookup failed", "ticker", ticker, "error", report.Failed[ticker])
	}

	rows := incremental.NewProfiles(report.Profiles, existing)
	if len(rows) == 0 {
		p.Logger.Info("No new profiles to load", "table", p.ProfileTable, "failed", len(result.Failed))
	} else {
		n, err := session.Append(ctx, p.ProfileTable, load.ProfileTable(rows), false)
		if err != nil {
			return result, fmt.Errorf("error loading profiles: %w", err)
		}
		result.Loaded = n
		p.Logger.Info("Loaded new profiles", "table", p.ProfileTable, "new", n, "failed", len(result.Failed))
	}

	if p.FailOnProfileErrors && len(result.Failed) > 0 {
		return result, fmt.Errorf("profile lookups failed for %d tickers: %w", len(result.Failed), report.Err())
	}
	return result, nil
}

// missingTickers returns the tickers not yet in existing, so profiles that
// are already stored are never requested again.
func missingTickers(tickers, existing []string) []string {
	stored := make(map[string]struct{}, len(existing))
	for _, t := range utils.UniqueTickers(existing) {
		stored[t] = struct{}{}
	}
	var out []string
	for _, t := range tickers {
		if _, ok := stored[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}
