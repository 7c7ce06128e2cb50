// Package timeoutdelta converts wall-clock timeout windows, declared in
// minutes in the pairs config, into per-chain block counts, and answers
// per-swap timeout queries including Lightning routability checks. It
// couples on-chain block timeouts with Lightning CLTV so that in every
// adversarial ordering the honest party can still recover funds.
package timeoutdelta

import (
	"context"
	"fmt"
	"math"

	"github.com/klingon-exchange/swapcore/internal/blocktime"
	"github.com/klingon-exchange/swapcore/internal/config"
	"github.com/klingon-exchange/swapcore/internal/lightning"
	"github.com/klingon-exchange/swapcore/internal/swaperrors"
)

// routingOffsetMinutes is added on top of the Lightning route's own CLTV
// budget before converting back to chain blocks, to absorb clock skew and
// block-propagation jitter between the two ledgers.
const routingOffsetMinutes = 60

// cltvSafetyMarginBlocks is subtracted from the computed CLTV limit handed
// to an outbound Lightning payment, so the payment's own route never
// expires in the same block the swap's on-chain leg does.
const cltvSafetyMarginBlocks = 2

// Side identifies which half of a pair a swap quote is taken from.
type Side int

const (
	Buy Side = iota
	Sell
)

// Kind identifies which swap flow a timeout query is for.
type Kind int

const (
	KindSubmarine Kind = iota
	KindReverse
	KindChain
)

// BlocksDelta holds, for one side of a pair, the three timeout windows in
// blocks on that side's chain: the service's own reverse-swap lockup
// window, and the minimal/maximal windows offered on submarine and chain
// swaps.
type BlocksDelta struct {
	Reverse     int
	SwapMinimal int
	SwapMaximal int
}

type pairDeltas struct {
	base  BlocksDelta
	quote BlocksDelta
}

// Provider is the TimeoutDeltaProvider. It is safe for concurrent use;
// callers typically hold it for the lifetime of the process.
type Provider struct {
	blockTimes *blocktime.Table
	lnClient   lightning.Client
	lnSymbol   string // the Lightning network's settlement chain, e.g. "BTC"

	pairsPath string
	pairs     map[string]pairConfigEntry
	deltas    map[string]pairDeltas
}

type pairConfigEntry struct {
	base, quote string
	window      config.TimeoutDelta
}

// Config configures a new Provider.
type Config struct {
	BlockTimes *blocktime.Table
	LnClient   lightning.Client
	LnSymbol   string
	PairsPath  string
}

// New constructs a Provider and loads its initial state from the TOML
// pairs file at cfg.PairsPath.
func New(cfg Config) (*Provider, error) {
	p := &Provider{
		blockTimes: cfg.BlockTimes,
		lnClient:   cfg.LnClient,
		lnSymbol:   cfg.LnSymbol,
		pairsPath:  cfg.PairsPath,
		pairs:      make(map[string]pairConfigEntry),
		deltas:     make(map[string]pairDeltas),
	}
	if p.blockTimes == nil {
		p.blockTimes = blocktime.New()
	}
	if err := p.reload(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) reload() error {
	pf, err := config.LoadPairsFile(p.pairsPath)
	if err != nil {
		return fmt.Errorf("timeoutdelta: load pairs file: %w", err)
	}

	for _, pc := range pf.Pairs {
		symbol := pc.Symbol()
		p.pairs[symbol] = pairConfigEntry{base: pc.Base, quote: pc.Quote, window: pc.TimeoutDelta}

		base, err := p.minutesToDelta(pc.Base, pc.TimeoutDelta)
		if err != nil {
			return fmt.Errorf("timeoutdelta: pair %s base: %w", symbol, err)
		}
		quote, err := p.minutesToDelta(pc.Quote, pc.TimeoutDelta)
		if err != nil {
			return fmt.Errorf("timeoutdelta: pair %s quote: %w", symbol, err)
		}
		p.deltas[symbol] = pairDeltas{base: base, quote: quote}
	}
	return nil
}

func (p *Provider) minutesToDelta(symbol string, minutes config.TimeoutDelta) (BlocksDelta, error) {
	reverse, err := p.minutesToBlocks(symbol, minutes.Reverse)
	if err != nil {
		return BlocksDelta{}, err
	}
	swapMin, err := p.minutesToBlocks(symbol, minutes.SwapMinimal)
	if err != nil {
		return BlocksDelta{}, err
	}
	swapMax, err := p.minutesToBlocks(symbol, minutes.SwapMaximal)
	if err != nil {
		return BlocksDelta{}, err
	}
	return BlocksDelta{Reverse: reverse, SwapMinimal: swapMin, SwapMaximal: swapMax}, nil
}

func (p *Provider) minutesToBlocks(symbol string, minutes int) (int, error) {
	blockMinutes := p.blockTimes.Minutes(symbol)
	blocks := float64(minutes) / blockMinutes
	rounded := math.Round(blocks)
	if rounded <= 0 || math.Abs(blocks-rounded) > 1e-9 {
		return 0, fmt.Errorf("%w: %s: %d minutes is not a whole number of blocks", swaperrors.ErrInvalidTimeoutBlockDelta, symbol, minutes)
	}
	return int(rounded), nil
}

// GetTimeout answers a timeout query for one swap quote.
//
// For KindReverse it returns the service-leg reverse window of whichever
// side of the pair is being serviced (base when side=Buy, else quote);
// usable is always false since that window applies to the service's own
// leg, not something offered to the counterparty.
//
// For KindSubmarine without an invoice it returns swapMinimal, usable=true.
// For KindSubmarine with an invoice it defers to GetTimeoutInvoice.
func (p *Provider) GetTimeout(ctx context.Context, pair string, side Side, kind Kind, invoice *lightning.Invoice) (blocks int, usable bool, err error) {
	entry, ok := p.pairs[pair]
	if !ok {
		return 0, false, fmt.Errorf("%w: %s", swaperrors.ErrPairNotFound, pair)
	}
	d, ok := p.deltas[pair]
	if !ok {
		return 0, false, fmt.Errorf("%w: %s", swaperrors.ErrPairNotFound, pair)
	}

	if kind == KindReverse {
		if side == Buy {
			return d.base.Reverse, false, nil
		}
		return d.quote.Reverse, false, nil
	}

	chainSymbol := entry.base
	chainDelta := d.base
	if side == Sell {
		chainSymbol = entry.quote
		chainDelta = d.quote
	}

	if invoice == nil {
		return chainDelta.SwapMinimal, true, nil
	}

	lnDelta := chainDelta
	if chainSymbol != p.lnSymbol {
		var err error
		lnDelta, err = p.minutesToDelta(p.lnSymbol, entry.window)
		if err != nil {
			return 0, false, err
		}
	}

	return p.GetTimeoutInvoice(ctx, chainSymbol, chainDelta, lnDelta, invoice)
}

// Deltas holds both sides' full timeout-window records, for swap kinds
// (chain swaps) that need an independent timeout per leg.
type Deltas struct {
	Base  BlocksDelta
	Quote BlocksDelta
}

// GetTimeouts returns both sides' full delta records for a pair.
func (p *Provider) GetTimeouts(pair string) (Deltas, error) {
	d, ok := p.deltas[pair]
	if !ok {
		return Deltas{}, fmt.Errorf("%w: %s", swaperrors.ErrPairNotFound, pair)
	}
	return Deltas{Base: d.base, Quote: d.quote}, nil
}

// SetTimeout atomically updates a pair's in-memory timeout windows (given
// in minutes, as the config file stores them) and persists the change back
// to the on-disk pairs file.
func (p *Provider) SetTimeout(pair string, newMinutes config.TimeoutDelta) error {
	entry, ok := p.pairs[pair]
	if !ok {
		return fmt.Errorf("%w: %s", swaperrors.ErrPairNotFound, pair)
	}

	base, err := p.minutesToDelta(entry.base, newMinutes)
	if err != nil {
		return err
	}
	quote, err := p.minutesToDelta(entry.quote, newMinutes)
	if err != nil {
		return err
	}

	pf, err := config.LoadPairsFile(p.pairsPath)
	if err != nil {
		return fmt.Errorf("timeoutdelta: reload pairs file before write: %w", err)
	}
	pc, ok := pf.Find(pair)
	if !ok {
		return fmt.Errorf("%w: %s", swaperrors.ErrPairNotFound, pair)
	}
	pc.TimeoutDelta = newMinutes
	pf.Set(pc)
	if err := pf.Save(p.pairsPath); err != nil {
		return fmt.Errorf("timeoutdelta: persist pairs file: %w", err)
	}

	p.deltas[pair] = pairDeltas{base: base, quote: quote}
	return nil
}

// ConvertBlocks converts a block count on chain `from` into the equivalent
// block count on chain `to`, rounding up so the result is never an
// underestimate: ceil(blocks * blockTime[from] / blockTime[to]).
func (p *Provider) ConvertBlocks(from, to string, blocks int) int {
	fromMinutes := p.blockTimes.Minutes(from)
	toMinutes := p.blockTimes.Minutes(to)
	return int(math.Ceil(float64(blocks) * fromMinutes / toMinutes))
}

// GetCltvLimit converts the number of on-chain blocks remaining until
// timeoutBlockHeight into a Lightning-side CLTV limit, minus a safety
// margin, floored.
func (p *Provider) GetCltvLimit(chainSymbol string, currentChainHeight, timeoutBlockHeight uint32) int {
	remaining := int(timeoutBlockHeight) - int(currentChainHeight)
	if remaining < 0 {
		remaining = 0
	}
	limit := p.ConvertBlocks(chainSymbol, p.lnSymbol, remaining) - cltvSafetyMarginBlocks
	if limit < 0 {
		return 0
	}
	return limit
}

// mppProbeAmountMsat computes the probe amount a routability check should
// query routes for: ceil(amount/maxParts) for an MPP invoice (minimum 1),
// or the full amount otherwise.
func mppProbeAmountMsat(invoice *lightning.Invoice) uint64 {
	if !invoice.MPP || invoice.MaxParts == 0 {
		return invoice.AmountMsat
	}
	probe := uint64(math.Ceil(float64(invoice.AmountMsat) / float64(invoice.MaxParts)))
	if probe < 1 {
		probe = 1
	}
	return probe
}

// checkRoutability queries routes to the invoice's payee with the given
// CLTV budget and returns the maximum total_time_lock across all returned
// routes, or ErrNoRoutes if none were found.
func (p *Provider) checkRoutability(ctx context.Context, invoice *lightning.Invoice, cltvLimit int) (uint32, error) {
	routes, err := p.lnClient.QueryRoutes(ctx, lightning.RouteQuery{
		Invoice:    invoice,
		AmountMsat: mppProbeAmountMsat(invoice),
		CltvLimit:  uint32(cltvLimit),
	})
	if err != nil {
		return 0, fmt.Errorf("timeoutdelta: query routes: %w", err)
	}
	if len(routes) == 0 {
		return 0, lightning.ErrNoRoutes
	}

	var max uint32
	for _, r := range routes {
		if r.TotalTimeLock > max {
			max = r.TotalTimeLock
		}
	}
	return max, nil
}

// GetTimeoutInvoice resolves the timeout window (in chain blocks) for a
// submarine swap whose invoice carries its own CLTV requirements,
// following the routability check described in the package doc. The CLTV
// budget handed to the routability check is lnDelta.SwapMaximal — the
// Lightning settlement currency's own window — not chainDelta's, since
// the two differ whenever the on-chain leg's currency isn't the
// currency the Lightning payment itself settles in.
func (p *Provider) GetTimeoutInvoice(ctx context.Context, chainSymbol string, chainDelta, lnDelta BlocksDelta, invoice *lightning.Invoice) (int, bool, error) {
	routeTimeLock, err := p.checkRoutability(ctx, invoice, lnDelta.SwapMaximal)
	if err != nil {
		if err == lightning.ErrNoRoutes {
			// Accept the swap with the maximal timeout but flag it as
			// unreliable: there is no known route today, but one may
			// appear before the swap needs to pay.
			return chainDelta.SwapMaximal, false, nil
		}
		return 0, false, err
	}

	currentLnBlock, err := p.lnClient.CurrentBlockHeight(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("timeoutdelta: current ln block height: %w", err)
	}

	routeDeltaBlocks := int(routeTimeLock) - int(currentLnBlock)
	if routeDeltaBlocks < 0 {
		routeDeltaBlocks = 0
	}

	finalExpiryMinutes := math.Ceil(float64(routeDeltaBlocks)*p.blockTimes.Minutes(p.lnSymbol)) + routingOffsetMinutes
	minTimeout := int(math.Ceil(finalExpiryMinutes / p.blockTimes.Minutes(chainSymbol)))

	if minTimeout > chainDelta.SwapMaximal {
		return 0, false, fmt.Errorf("%w: minimum %d exceeds maximal %d", swaperrors.ErrMinExpiryTooBig, minTimeout, chainDelta.SwapMaximal)
	}

	result := chainDelta.SwapMinimal
	if minTimeout > result {
		result = minTimeout
	}
	return result, true, nil
}
