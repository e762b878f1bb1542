package source

import "math"

// Result is the outcome of a price fetch: either a usable price or NoData.
// The zero value is NoData with an empty reason.
type Result struct {
	price  float64
	ok     bool
	tier   string
	reason string
}

// Price returns a successful result. Non-positive or non-finite values
// are downgraded to NoData so callers never see an unusable price.
func Price(v float64) Result {
	if !usable(v) {
		return NoData("price not positive")
	}
	return Result{price: v, ok: true}
}

// NoData returns an empty result carrying the reason for logging.
func NoData(reason string) Result {
	return Result{reason: reason}
}

// OK reports whether the result carries a price.
func (r Result) OK() bool { return r.ok }

// Value returns the price; zero when !OK().
func (r Result) Value() float64 { return r.price }

// Reason explains a NoData result.
func (r Result) Reason() string { return r.reason }

// Tier names the tier that produced the result, if any.
func (r Result) Tier() string { return r.tier }

func (r Result) from(tier string) Result {
	r.tier = tier
	return r
}

func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
