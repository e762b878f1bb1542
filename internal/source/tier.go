package source

import (
	"context"
	"fmt"

	"github.com/rickgao/quotefeed/internal/api"
)

// ChartClient is the subset of api.Client the tiers need.
type ChartClient interface {
	GetChart(ctx context.Context, symbol string, opts api.ChartOptions) (*api.ChartResult, error)
}

// Tier is one strategy for obtaining a price.
type Tier interface {
	Name() string
	Quote(ctx context.Context, symbol string) Result
}

// TierFunc adapts a function to the Tier interface.
type TierFunc struct {
	TierName string
	Fn       func(ctx context.Context, symbol string) Result
}

func (f TierFunc) Name() string { return f.TierName }

func (f TierFunc) Quote(ctx context.Context, symbol string) Result {
	return f.Fn(ctx, symbol)
}

// LastPriceTier reads the provider's last traded price from the chart meta block.
type LastPriceTier struct {
	client ChartClient
}

// NewLastPriceTier creates the fast-path tier.
func NewLastPriceTier(client ChartClient) *LastPriceTier {
	return &LastPriceTier{client: client}
}

func (t *LastPriceTier) Name() string { return "last_price" }

// Quote asks for the smallest window; only the meta block is used.
func (t *LastPriceTier) Quote(ctx context.Context, symbol string) Result {
	res, err := t.client.GetChart(ctx, symbol, api.ChartOptions{Range: "1d", Interval: "1d"})
	if err != nil {
		return NoData(err.Error())
	}

	p := res.Meta.RegularMarketPrice
	if p == nil {
		return NoData("last price absent")
	}
	if !usable(*p) {
		return NoData(fmt.Sprintf("last price not positive: %v", *p))
	}
	return Price(*p)
}

// RecentBarTier takes the close of the most recent bar in a one-day window.
type RecentBarTier struct {
	client   ChartClient
	interval string
}

// NewRecentBarTier creates the fallback tier. interval is the bar size, e.g. "1m".
func NewRecentBarTier(client ChartClient, interval string) *RecentBarTier {
	if interval == "" {
		interval = "1m"
	}
	return &RecentBarTier{client: client, interval: interval}
}

func (t *RecentBarTier) Name() string { return "recent_bar" }

func (t *RecentBarTier) Quote(ctx context.Context, symbol string) Result {
	res, err := t.client.GetChart(ctx, symbol, api.ChartOptions{Range: "1d", Interval: t.interval})
	if err != nil {
		return NoData(err.Error())
	}

	bars := res.Bars()
	if len(bars) == 0 {
		return NoData("empty series")
	}

	last := bars[len(bars)-1].Close
	if !usable(last) {
		return NoData(fmt.Sprintf("close not positive: %v", last))
	}
	return Price(last)
}
