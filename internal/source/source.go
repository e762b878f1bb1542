package source

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Fetcher returns a price for one symbol. Implementations never return
// errors: every failure is a NoData result.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) Result
}

// Chain tries its tiers in order; the first usable price wins.
type Chain struct {
	tiers       []Tier
	tierTimeout time.Duration
}

// FirstSuccess composes tiers into a Chain.
func FirstSuccess(tiers ...Tier) *Chain {
	return &Chain{tiers: tiers}
}

// WithTierTimeout bounds each tier separately, so a hung fast path cannot
// starve the fallback. Zero means tiers only see the caller's deadline.
func (c *Chain) WithTierTimeout(d time.Duration) *Chain {
	c.tierTimeout = d
	return c
}

// New builds the standard two-tier adapter: last traded price, then the
// close of the most recent bar.
func New(client ChartClient, barInterval string) *Chain {
	return FirstSuccess(
		NewLastPriceTier(client),
		NewRecentBarTier(client, barInterval),
	)
}

// Fetch implements Fetcher.
func (c *Chain) Fetch(ctx context.Context, symbol string) Result {
	if len(c.tiers) == 0 {
		return NoData("no tiers configured")
	}

	reasons := make([]string, 0, len(c.tiers))
	for _, tier := range c.tiers {
		if err := ctx.Err(); err != nil {
			reasons = append(reasons, err.Error())
			break
		}

		res := c.quote(ctx, tier, symbol)
		if res.OK() {
			return res.from(tier.Name())
		}
		reasons = append(reasons, tier.Name()+": "+res.Reason())
	}

	return NoData(strings.Join(reasons, "; "))
}

func (c *Chain) quote(ctx context.Context, tier Tier, symbol string) Result {
	if c.tierTimeout <= 0 {
		return quoteSafely(ctx, tier, symbol)
	}
	tierCtx, cancel := context.WithTimeout(ctx, c.tierTimeout)
	defer cancel()
	return quoteSafely(tierCtx, tier, symbol)
}

// quoteSafely turns a panic inside a tier into NoData.
func quoteSafely(ctx context.Context, tier Tier, symbol string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = NoData(fmt.Sprintf("panic: %v", r))
		}
	}()
	return tier.Quote(ctx, symbol)
}
