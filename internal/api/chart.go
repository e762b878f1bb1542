package api

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// ChartOptions selects the window returned by GetChart.
type ChartOptions struct {
	Range    string // e.g. "1d", "5d"
	Interval string // bar size, e.g. "1m", "1d"
}

// ChartResponse is the envelope returned by the chart endpoint.
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

// ChartError is the provider's in-band error object.
type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ChartResult holds the meta block and OHLC series for one symbol.
type ChartResult struct {
	Meta       ChartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators Indicators `json:"indicators"`
}

// ChartMeta carries the summary fields for the symbol.
type ChartMeta struct {
	Symbol             string   `json:"symbol"`
	Currency           string   `json:"currency"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	RegularMarketTime  int64    `json:"regularMarketTime"`
	PreviousClose      *float64 `json:"chartPreviousClose"`
}

// Indicators wraps the quote series. Yahoo returns a single element.
type Indicators struct {
	Quote []QuoteSeries `json:"quote"`
}

// QuoteSeries holds OHLC values aligned with ChartResult.Timestamp.
// Missing bars are JSON null.
type QuoteSeries struct {
	Open  []*float64 `json:"open"`
	High  []*float64 `json:"high"`
	Low   []*float64 `json:"low"`
	Close []*float64 `json:"close"`
}

// Bar is one closed interval of the series.
type Bar struct {
	Time  time.Time
	Close float64
}

// Bars returns the bars that have a close value, oldest first.
func (r *ChartResult) Bars() []Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	closes := r.Indicators.Quote[0].Close

	bars := make([]Bar, 0, len(closes))
	for i, c := range closes {
		if c == nil {
			continue
		}
		var ts time.Time
		if i < len(r.Timestamp) {
			ts = time.Unix(r.Timestamp[i], 0).UTC()
		}
		bars = append(bars, Bar{Time: ts, Close: *c})
	}
	return bars
}

// GetChart fetches the chart for a symbol.
func (c *Client) GetChart(ctx context.Context, symbol string, opts ChartOptions) (*ChartResult, error) {
	query := url.Values{}
	if opts.Range != "" {
		query.Set("range", opts.Range)
	}
	if opts.Interval != "" {
		query.Set("interval", opts.Interval)
	}

	var resp ChartResponse
	if err := c.get(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), query, &resp); err != nil {
		return nil, fmt.Errorf("get chart %s: %w", symbol, err)
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("get chart %s: %s: %s", symbol, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("get chart %s: empty result", symbol)
	}

	return &resp.Chart.Result[0], nil
}
