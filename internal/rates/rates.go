// Package rates defines the two external collaborators the swap builder
// consults on every quote: a fee estimator and a rate/limits provider.
// Neither picks rates itself — this package only declares the interfaces
// and a small in-memory reference implementation the rest of the module's
// own tests run against.
package rates

import "context"

// Fees is the (baseFee, percentageFee) pair quoted for a swap amount,
// both expressed in the smallest unit of the chain currency being charged.
type Fees struct {
	BaseFee       uint64
	PercentageFee uint64
}

// FeeEstimator returns the fee components charged for a swap.
type FeeEstimator interface {
	// EstimateFees returns the base and percentage fee for a swap of the
	// given pair, amount (in the quote currency's smallest unit) and
	// kind ("submarine", "reverse", "chain").
	EstimateFees(ctx context.Context, pair, kind string, amount uint64) (Fees, error)

	// MinerFeeEstimate returns the expected on-chain miner fee for
	// broadcasting a lockup or claim transaction on the given currency.
	MinerFeeEstimate(ctx context.Context, symbol string) (uint64, error)
}

// Limits bounds the amount a pair will accept for a given swap kind.
type Limits struct {
	Minimum uint64
	Maximum uint64
}

// RateProvider supplies pair metadata: exchange rate, amount limits, and
// zero-conf acceptance policy.
type RateProvider interface {
	// Rate returns the exchange rate for pair, expressed as
	// (quote units) per (base unit).
	Rate(ctx context.Context, pair string) (float64, error)

	// Limits returns the amount limits enforced for a swap kind on pair.
	Limits(ctx context.Context, pair, kind string) (Limits, error)

	// AcceptZeroConf reports whether an unconfirmed mempool transaction
	// paying the given amount on symbol may be treated as settled.
	AcceptZeroConf(ctx context.Context, symbol string, amount uint64) (bool, error)
}
