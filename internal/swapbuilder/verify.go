package swapbuilder

import (
	"context"
	"fmt"
	"math"

	"github.com/klingon-exchange/swapcore/internal/rates"
	"github.com/klingon-exchange/swapcore/internal/swaperrors"
	"github.com/klingon-exchange/swapcore/internal/timeoutdelta"
)

// kindString maps a timeoutdelta.Kind to the string rates.RateProvider /
// rates.FeeEstimator expect.
func kindString(kind timeoutdelta.Kind) string {
	switch kind {
	case timeoutdelta.KindReverse:
		return "reverse"
	case timeoutdelta.KindChain:
		return "chain"
	default:
		return "submarine"
	}
}

// verifyAmount enforces the pair's amount-limit check: if the swap
// kind/side pairing means the quoted amount is denominated in the pair's
// base unit while limits are quoted in the quote unit (or vice versa), it
// is first converted via rate; then it must fall within [min, max].
func (b *Builder) verifyAmount(ctx context.Context, pair string, side OrderSide, kind timeoutdelta.Kind, amount uint64) error {
	rate, err := b.rates.Rate(ctx, pair)
	if err != nil {
		return fmt.Errorf("%w: %s", swaperrors.ErrPairNotFound, pair)
	}
	limits, err := b.rates.Limits(ctx, pair, kindString(kind))
	if err != nil {
		return fmt.Errorf("%w: %s", swaperrors.ErrPairNotFound, pair)
	}

	normalized := float64(amount)
	convert := (kind != timeoutdelta.KindReverse && side == Buy) || (kind == timeoutdelta.KindReverse && side == Sell)
	if convert {
		normalized = math.Floor(float64(amount) * rate)
	}

	if math.Floor(normalized) > float64(limits.Maximum) {
		return fmt.Errorf("%w: %d > %d", swaperrors.ErrExceedMaximalAmount, uint64(normalized), limits.Maximum)
	}
	if math.Ceil(normalized) < float64(limits.Minimum) {
		return fmt.Errorf("%w: %d < %d", swaperrors.ErrBeneathMinimalAmount, uint64(normalized), limits.Minimum)
	}
	return nil
}

func (b *Builder) quoteFees(ctx context.Context, pair, kind string, amount uint64) (rates.Fees, error) {
	fees, err := b.fees.EstimateFees(ctx, pair, kind, amount)
	if err != nil {
		return rates.Fees{}, fmt.Errorf("swapbuilder: estimate fees: %w", err)
	}
	return fees, nil
}
