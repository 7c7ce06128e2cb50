// Package swapbuilder implements the swap creation path: it validates
// a quote request (amount limits, uniqueness of preimage hash/invoice),
// generates the lockup script and address, and hands the new record to
// the repository with its initial status.
package swapbuilder

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/klingon-exchange/swapcore/internal/chain"
	"github.com/klingon-exchange/swapcore/internal/lightning"
	"github.com/klingon-exchange/swapcore/internal/rates"
	"github.com/klingon-exchange/swapcore/internal/repository"
	"github.com/klingon-exchange/swapcore/internal/swaperrors"
	"github.com/klingon-exchange/swapcore/internal/timeoutdelta"
	"github.com/klingon-exchange/swapcore/pkg/helpers"
)

// OrderSide is which side of a pair a swap quote is taken from.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

func (s OrderSide) timeoutSide() (timeoutdelta.Side, error) {
	switch s {
	case Buy:
		return timeoutdelta.Buy, nil
	case Sell:
		return timeoutdelta.Sell, nil
	default:
		return 0, fmt.Errorf("%w: %s", swaperrors.ErrOrderSideNotFound, s)
	}
}

// Version selects which script family a swap's lockup uses.
type Version string

const (
	Legacy  Version = "Legacy"
	Taproot Version = "Taproot"
)

// Builder is the SwapBuilder. It owns no locks of its own: every method
// either validates-and-rejects (no side effect) or persists exactly once,
// so a canceled or retried request can never leave a half-written swap.
type Builder struct {
	repo        *repository.Repository
	timeouts    *timeoutdelta.Provider
	rates       rates.RateProvider
	fees        rates.FeeEstimator
	scripts     ScriptFactory
	wallet      WalletHandle
	broadcaster Broadcaster
	invoices    InvoiceIssuer
	ln          lightning.Client
	network     chain.Network

	allowReverseSwaps bool
}

// Config wires a Builder's collaborators.
type Config struct {
	Repository        *repository.Repository
	Timeouts          *timeoutdelta.Provider
	Rates             rates.RateProvider
	Fees              rates.FeeEstimator
	Scripts           ScriptFactory
	Wallet            WalletHandle
	Broadcaster       Broadcaster
	Invoices          InvoiceIssuer
	LnClient          lightning.Client
	Network           chain.Network
	AllowReverseSwaps bool
}

// New builds a Builder from its collaborators.
func New(cfg Config) *Builder {
	return &Builder{
		repo:              cfg.Repository,
		timeouts:          cfg.Timeouts,
		rates:             cfg.Rates,
		fees:              cfg.Fees,
		scripts:           cfg.Scripts,
		wallet:            cfg.Wallet,
		broadcaster:       cfg.Broadcaster,
		invoices:          cfg.Invoices,
		ln:                cfg.LnClient,
		network:           cfg.Network,
		allowReverseSwaps: cfg.AllowReverseSwaps,
	}
}

// generateID returns a random 16-hex-char swap identifier.
func generateID() (string, error) {
	buf, err := helpers.GenerateSecureRandom(8)
	if err != nil {
		return "", fmt.Errorf("swapbuilder: generate id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// splitPair splits "BASE/QUOTE" into its two currency symbols.
func splitPair(pair string) (base, quote string, err error) {
	parts := strings.SplitN(pair, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %s", swaperrors.ErrPairNotFound, pair)
	}
	return parts[0], parts[1], nil
}

// chainSymbolForSide returns the on-chain currency of pair's side that is
// not the Lightning leg (i.e. the base if side=BUY, else the quote).
func chainSymbolForSide(pair string, side OrderSide) (string, error) {
	base, quote, err := splitPair(pair)
	if err != nil {
		return "", err
	}
	if side == Buy {
		return base, nil
	}
	return quote, nil
}

// SplitPair exposes splitPair for callers outside this package (the
// swap-service façade needs it to recover a submarine swap's on-chain
// currency from its stored pair/side, since the record itself has no
// separate symbol column).
func SplitPair(pair string) (base, quote string, err error) {
	return splitPair(pair)
}

// ChainSymbolForSide exposes chainSymbolForSide for the same reason as
// SplitPair.
func ChainSymbolForSide(pair string, side OrderSide) (string, error) {
	return chainSymbolForSide(pair, side)
}

// bip21URI builds the payment URI used for submarine and chain-swap
// sending details.
func bip21URI(address string, amountSats uint64, label string) string {
	return fmt.Sprintf("bitcoin:%s?amount=%s&label=%s", address, helpers.SatoshisToBTC(amountSats), label)
}

