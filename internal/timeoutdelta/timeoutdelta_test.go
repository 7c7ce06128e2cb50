package timeoutdelta

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klingon-exchange/swapcore/internal/blocktime"
	"github.com/klingon-exchange/swapcore/internal/config"
	"github.com/klingon-exchange/swapcore/internal/lightning"
	"github.com/klingon-exchange/swapcore/internal/swaperrors"
)

type fakeLnClient struct {
	routes      []lightning.Route
	routesErr   error
	blockHeight uint32
}

func (f *fakeLnClient) DecodeInvoice(ctx context.Context, invoice string) (*lightning.Invoice, error) {
	return nil, nil
}

func (f *fakeLnClient) QueryRoutes(ctx context.Context, query lightning.RouteQuery) ([]lightning.Route, error) {
	if f.routesErr != nil {
		return nil, f.routesErr
	}
	return f.routes, nil
}

func (f *fakeLnClient) TrackPayment(ctx context.Context, paymentHash [32]byte) (lightning.PaymentState, error) {
	return lightning.PaymentUnknown, nil
}

func (f *fakeLnClient) CurrentBlockHeight(ctx context.Context) (uint32, error) {
	return f.blockHeight, nil
}

func writePairsFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pairs.toml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write pairs file: %v", err)
	}
	return path
}

const btcPairBody = `
[[pairs]]
base = "BTC"
quote = "BTC"
rate = 1.0
fee = 0.5

[pairs.timeoutDelta]
reverse = 1440
swapMinimal = 1440
swapMaximal = 1440
`

func newTestProvider(t *testing.T, ln lightning.Client) *Provider {
	t.Helper()
	path := writePairsFile(t, btcPairBody)
	p, err := New(Config{
		BlockTimes: blocktime.New(),
		LnClient:   ln,
		LnSymbol:   "BTC",
		PairsPath:  path,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestConvertBlocksCeiling(t *testing.T) {
	p := newTestProvider(t, &fakeLnClient{})

	// BTC (10m/block) -> LTC (2.5m/block): 1 BTC block should need 4 LTC blocks exactly.
	if got := p.ConvertBlocks("BTC", "LTC", 1); got != 4 {
		t.Errorf("ConvertBlocks(BTC,LTC,1) = %d, want 4", got)
	}

	// LTC -> BTC: 1 LTC block (2.5m) needs ceil(2.5/10)=1 BTC block.
	if got := p.ConvertBlocks("LTC", "BTC", 1); got != 1 {
		t.Errorf("ConvertBlocks(LTC,BTC,1) = %d, want 1", got)
	}

	// 3 LTC blocks = 7.5 minutes -> ceil(7.5/10) = 1 BTC block.
	if got := p.ConvertBlocks("LTC", "BTC", 3); got != 1 {
		t.Errorf("ConvertBlocks(LTC,BTC,3) = %d, want 1", got)
	}
}

func TestGetTimeoutReverseIsNotUsable(t *testing.T) {
	p := newTestProvider(t, &fakeLnClient{})
	blocks, usable, err := p.GetTimeout(context.Background(), "BTC/BTC", Buy, KindReverse, nil)
	if err != nil {
		t.Fatalf("GetTimeout: %v", err)
	}
	if usable {
		t.Error("reverse timeout should never be usable")
	}
	if blocks != 144 {
		t.Errorf("blocks = %d, want 144", blocks)
	}
}

func TestGetTimeoutSubmarineNoInvoice(t *testing.T) {
	p := newTestProvider(t, &fakeLnClient{})
	blocks, usable, err := p.GetTimeout(context.Background(), "BTC/BTC", Buy, KindSubmarine, nil)
	if err != nil {
		t.Fatalf("GetTimeout: %v", err)
	}
	if !usable || blocks != 144 {
		t.Errorf("blocks=%d usable=%v, want 144 true", blocks, usable)
	}
}

func TestGetTimeoutUnknownPair(t *testing.T) {
	p := newTestProvider(t, &fakeLnClient{})
	_, _, err := p.GetTimeout(context.Background(), "ETH/BTC", Buy, KindSubmarine, nil)
	if !errors.Is(err, swaperrors.ErrPairNotFound) {
		t.Errorf("err = %v, want ErrPairNotFound", err)
	}
}

// An invoice needing 400 LN blocks of CLTV against a 144-block
// swapMaximal fails with MIN_EXPIRY_TOO_BIG.
func TestGetTimeoutInvoiceMinExpiryTooBig(t *testing.T) {
	ln := &fakeLnClient{
		routes:      []lightning.Route{{TotalTimeLock: 400}},
		blockHeight: 0,
	}
	p := newTestProvider(t, ln)

	invoice := &lightning.Invoice{AmountMsat: 100_000_000}
	delta := BlocksDelta{SwapMinimal: 144, SwapMaximal: 144}

	_, _, err := p.GetTimeoutInvoice(context.Background(), "BTC", delta, delta, invoice)
	if !errors.Is(err, swaperrors.ErrMinExpiryTooBig) {
		t.Fatalf("err = %v, want ErrMinExpiryTooBig", err)
	}
}

// L-BTC/BTC: the on-chain leg is L-BTC (1m/block) but the Lightning leg
// still settles in BTC. checkRoutability's CLTV budget must be the BTC
// leg's own swapMaximal (144 ten-minute blocks => 1440 minutes => 1440
// L-BTC blocks' worth of route search), not the L-BTC chain delta's
// much larger block count for the same wall-clock window. Reusing the
// chain delta here would query routes with a CLTV limit 10x too large.
func TestGetTimeoutCrossCurrencyPairUsesLightningDelta(t *testing.T) {
	const lbtcPairBody = `
[[pairs]]
base = "L-BTC"
quote = "BTC"
rate = 1.0
fee = 0.5

[pairs.timeoutDelta]
reverse = 1440
swapMinimal = 1440
swapMaximal = 1440
`
	path := writePairsFile(t, lbtcPairBody)

	var gotCltvLimit uint32
	ln := &recordingLnClient{
		fakeLnClient: fakeLnClient{routes: []lightning.Route{{TotalTimeLock: 100}}},
		onQueryRoutes: func(query lightning.RouteQuery) {
			gotCltvLimit = query.CltvLimit
		},
	}

	p, err := New(Config{
		BlockTimes: blocktime.New(),
		LnClient:   ln,
		LnSymbol:   "BTC",
		PairsPath:  path,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	invoice := &lightning.Invoice{AmountMsat: 100_000_000}
	// side=Buy services the base leg, L-BTC: entry.base's chain symbol.
	if _, _, err := p.GetTimeout(context.Background(), "L-BTC/BTC", Buy, KindSubmarine, invoice); err != nil {
		t.Fatalf("GetTimeout: %v", err)
	}

	// BTC's own swapMaximal for this 1440-minute window is 144 ten-minute
	// blocks, not L-BTC's 1440 one-minute blocks.
	if gotCltvLimit != 144 {
		t.Errorf("CltvLimit = %d, want 144 (BTC's own swapMaximal, not L-BTC's)", gotCltvLimit)
	}
}

type recordingLnClient struct {
	fakeLnClient
	onQueryRoutes func(query lightning.RouteQuery)
}

func (r *recordingLnClient) QueryRoutes(ctx context.Context, query lightning.RouteQuery) ([]lightning.Route, error) {
	if r.onQueryRoutes != nil {
		r.onQueryRoutes(query)
	}
	return r.fakeLnClient.QueryRoutes(ctx, query)
}

func TestGetTimeoutInvoiceNoRoutesAcceptsMaximal(t *testing.T) {
	ln := &fakeLnClient{routesErr: lightning.ErrNoRoutes}
	p := newTestProvider(t, ln)

	invoice := &lightning.Invoice{AmountMsat: 100_000_000}
	delta := BlocksDelta{SwapMinimal: 100, SwapMaximal: 144}

	blocks, usable, err := p.GetTimeoutInvoice(context.Background(), "BTC", delta, delta, invoice)
	if err != nil {
		t.Fatalf("GetTimeoutInvoice: %v", err)
	}
	if usable {
		t.Error("expected usable=false when no route exists")
	}
	if blocks != 144 {
		t.Errorf("blocks = %d, want swapMaximal 144", blocks)
	}
}

func TestGetTimeoutInvoiceMPPProbeAmount(t *testing.T) {
	invoice := &lightning.Invoice{AmountMsat: 1000, MPP: true, MaxParts: 4}
	if got := mppProbeAmountMsat(invoice); got != 250 {
		t.Errorf("mppProbeAmountMsat = %d, want 250", got)
	}

	invoice2 := &lightning.Invoice{AmountMsat: 1, MPP: true, MaxParts: 100}
	if got := mppProbeAmountMsat(invoice2); got != 1 {
		t.Errorf("mppProbeAmountMsat floor = %d, want 1", got)
	}
}

func TestSetTimeoutRoundTrips(t *testing.T) {
	p := newTestProvider(t, &fakeLnClient{})

	err := p.SetTimeout("BTC/BTC", config.TimeoutDelta{Reverse: 1440, SwapMinimal: 1440, SwapMaximal: 2880})
	if err != nil {
		t.Fatalf("SetTimeout: %v", err)
	}

	d, err := p.GetTimeouts("BTC/BTC")
	if err != nil {
		t.Fatalf("GetTimeouts: %v", err)
	}
	if d.Base.SwapMaximal != 288 {
		t.Errorf("SwapMaximal blocks = %d, want 288", d.Base.SwapMaximal)
	}

	reloaded, err := New(Config{
		BlockTimes: blocktime.New(),
		LnClient:   &fakeLnClient{},
		LnSymbol:   "BTC",
		PairsPath:  p.pairsPath,
	})
	if err != nil {
		t.Fatalf("reload provider: %v", err)
	}
	d2, err := reloaded.GetTimeouts("BTC/BTC")
	if err != nil {
		t.Fatalf("GetTimeouts after reload: %v", err)
	}
	if d2.Base.SwapMaximal != 288 {
		t.Errorf("persisted SwapMaximal blocks = %d, want 288", d2.Base.SwapMaximal)
	}
}

func TestSetTimeoutUnknownPair(t *testing.T) {
	p := newTestProvider(t, &fakeLnClient{})
	err := p.SetTimeout("ETH/BTC", config.TimeoutDelta{Reverse: 10, SwapMinimal: 10, SwapMaximal: 10})
	if !errors.Is(err, swaperrors.ErrPairNotFound) {
		t.Errorf("err = %v, want ErrPairNotFound", err)
	}
}

func TestGetCltvLimitAppliesSafetyMargin(t *testing.T) {
	p := newTestProvider(t, &fakeLnClient{})
	// 20 BTC blocks remaining == 20 LN blocks remaining since lnSymbol is BTC too.
	limit := p.GetCltvLimit("BTC", 100, 120)
	if limit != 18 {
		t.Errorf("GetCltvLimit = %d, want 18", limit)
	}
}

func TestMinutesToBlocksRejectsNonWholeBlocks(t *testing.T) {
	body := `
[[pairs]]
base = "BTC"
quote = "BTC"
rate = 1.0
fee = 0.5

[pairs.timeoutDelta]
reverse = 7
swapMinimal = 7
swapMaximal = 7
`
	path := writePairsFile(t, body)
	_, err := New(Config{
		BlockTimes: blocktime.New(),
		LnClient:   &fakeLnClient{},
		LnSymbol:   "BTC",
		PairsPath:  path,
	})
	if !errors.Is(err, swaperrors.ErrInvalidTimeoutBlockDelta) {
		t.Errorf("err = %v, want ErrInvalidTimeoutBlockDelta", err)
	}
}
