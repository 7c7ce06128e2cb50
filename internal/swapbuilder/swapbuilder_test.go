package swapbuilder

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/klingon-exchange/swapcore/internal/chain"
	"github.com/klingon-exchange/swapcore/internal/htlcscript"
	"github.com/klingon-exchange/swapcore/internal/lightning"
	"github.com/klingon-exchange/swapcore/internal/rates"
	"github.com/klingon-exchange/swapcore/internal/repository"
	"github.com/klingon-exchange/swapcore/internal/swaperrors"
	"github.com/klingon-exchange/swapcore/internal/timeoutdelta"
)

func newTestRepo(t *testing.T) *repository.Repository {
	t.Helper()
	repo, err := repository.Open(repository.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

type fakeRates struct {
	rate           float64
	limits         rates.Limits
	acceptZeroConf bool
	pairErr        error
}

func (f *fakeRates) Rate(ctx context.Context, pair string) (float64, error) {
	if f.pairErr != nil {
		return 0, f.pairErr
	}
	return f.rate, nil
}

func (f *fakeRates) Limits(ctx context.Context, pair, kind string) (rates.Limits, error) {
	if f.pairErr != nil {
		return rates.Limits{}, f.pairErr
	}
	return f.limits, nil
}

func (f *fakeRates) AcceptZeroConf(ctx context.Context, symbol string, amount uint64) (bool, error) {
	return f.acceptZeroConf, nil
}

type fakeFees struct {
	fees rates.Fees
}

func (f *fakeFees) EstimateFees(ctx context.Context, pair, kind string, amount uint64) (rates.Fees, error) {
	return f.fees, nil
}

func (f *fakeFees) MinerFeeEstimate(ctx context.Context, symbol string) (uint64, error) {
	return 0, nil
}

type fakeScripts struct{}

func (fakeScripts) BuildLegacy(secretHash []byte, claimPubKey, refundPubKey *btcec.PublicKey, timeoutBlockHeight uint32, symbol string, network chain.Network) (*htlcscript.LegacyHTLC, error) {
	return &htlcscript.LegacyHTLC{
		Address:            "bcrt1qfakeaddress",
		SecretHash:         secretHash,
		TimeoutBlockHeight: timeoutBlockHeight,
	}, nil
}

func (fakeScripts) BuildTaproot(aggregatedKey, refundPubKey *btcec.PublicKey, timeoutBlockHeight uint32, symbol string, network chain.Network) (*htlcscript.ScriptTree, error) {
	return htlcscript.BuildScriptTree(aggregatedKey, refundPubKey, timeoutBlockHeight)
}

type fakeWallet struct {
	nextIndex uint32
	pub       *btcec.PublicKey
	balance   uint64
}

func (f *fakeWallet) NextKeyIndex(ctx context.Context, symbol string) (uint32, error) {
	return f.nextIndex, nil
}

func (f *fakeWallet) PublicKeyAt(ctx context.Context, symbol string, keyIndex uint32) (*btcec.PublicKey, error) {
	return f.pub, nil
}

func (f *fakeWallet) Balance(ctx context.Context, symbol string) (uint64, error) {
	return f.balance, nil
}

type fakeInvoices struct {
	invoice string
	err     error
}

func (f *fakeInvoices) CreateInvoice(ctx context.Context, amountMsat uint64, preimageHash [32]byte, memo string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.invoice, nil
}

type fakeBroadcaster struct {
	txID     string
	minerFee uint64
	err      error
}

func (f *fakeBroadcaster) BroadcastLockup(ctx context.Context, symbol, address string, amount uint64) (string, uint64, error) {
	if f.err != nil {
		return "", 0, f.err
	}
	return f.txID, f.minerFee, nil
}

type fakeLn struct {
	invoice     *lightning.Invoice
	blockHeight uint32
	decodeErr   error
}

func (f *fakeLn) DecodeInvoice(ctx context.Context, invoice string) (*lightning.Invoice, error) {
	if f.decodeErr != nil {
		return nil, f.decodeErr
	}
	return f.invoice, nil
}

func (f *fakeLn) QueryRoutes(ctx context.Context, query lightning.RouteQuery) ([]lightning.Route, error) {
	return []lightning.Route{{TotalTimeLock: f.blockHeight + 40}}, nil
}

func (f *fakeLn) TrackPayment(ctx context.Context, paymentHash [32]byte) (lightning.PaymentState, error) {
	return lightning.PaymentUnknown, nil
}

func (f *fakeLn) CurrentBlockHeight(ctx context.Context) (uint32, error) {
	return f.blockHeight, nil
}

func genTestKey(t *testing.T) *btcec.PublicKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("new private key: %v", err)
	}
	return priv.PubKey()
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0600)
}

func writeTestPairsFile(t *testing.T) string {
	t.Helper()
	path := t.TempDir() + "/pairs.toml"
	contents := `
[[pairs]]
base = "BTC"
quote = "BTC"
rate = 1.0
fee = 0.5
timeoutDelta = { reverse = 1440, swapMinimal = 1440, swapMaximal = 2880 }
`
	if err := writeFile(path, contents); err != nil {
		t.Fatalf("write pairs file: %v", err)
	}
	return path
}

func testBuilder(t *testing.T, repo *repository.Repository, ln *fakeLn, fr *fakeRates, ff *fakeFees) *Builder {
	t.Helper()
	timeouts, err := timeoutdelta.New(timeoutdelta.Config{
		LnClient:  ln,
		LnSymbol:  "BTC",
		PairsPath: writeTestPairsFile(t),
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return New(Config{
		Repository:        repo,
		Timeouts:          timeouts,
		Rates:             fr,
		Fees:              ff,
		Scripts:           fakeScripts{},
		Wallet:            &fakeWallet{nextIndex: 1, pub: genTestKey(t), balance: 1_000_000_000},
		Broadcaster:       &fakeBroadcaster{txID: "deadbeef"},
		Invoices:          &fakeInvoices{invoice: "lnbc1fakereverseinvoice"},
		LnClient:          ln,
		Network:           chain.Testnet,
		AllowReverseSwaps: true,
	})
}

func TestCreateSwapHappyPath(t *testing.T) {
	repo := newTestRepo(t)
	ln := &fakeLn{
		invoice: &lightning.Invoice{
			PaymentHash: [32]byte{1, 2, 3},
			AmountMsat:  100_000_000,
		},
		blockHeight: 700_000,
	}
	fr := &fakeRates{rate: 1, limits: rates.Limits{Minimum: 1_000, Maximum: 10_000_000}}
	ff := &fakeFees{fees: rates.Fees{BaseFee: 100, PercentageFee: 50}}
	b := testBuilder(t, repo, ln, fr, ff)

	res, err := b.CreateSwap(context.Background(), SubmarineSwapRequest{
		Pair:            "BTC/BTC",
		Side:            Buy,
		Invoice:         "lntb1fakeinvoice",
		RefundPublicKey: genTestKey(t).SerializeCompressed(),
		Version:         Legacy,
	})
	if err != nil {
		t.Fatalf("CreateSwap: %v", err)
	}
	if res.Address != "bcrt1qfakeaddress" {
		t.Errorf("address = %q", res.Address)
	}
	if res.ExpectedAmount != 100_000+150 {
		t.Errorf("expected amount = %d", res.ExpectedAmount)
	}

	stored, err := repo.GetSubmarineSwapByInvoice("lntb1fakeinvoice")
	if err != nil {
		t.Fatalf("lookup stored swap: %v", err)
	}
	if stored.ID != res.ID {
		t.Errorf("stored id = %q, want %q", stored.ID, res.ID)
	}
}

func TestCreateSwapRejectsDuplicateInvoice(t *testing.T) {
	repo := newTestRepo(t)
	ln := &fakeLn{
		invoice: &lightning.Invoice{PaymentHash: [32]byte{1}, AmountMsat: 50_000_000},
		blockHeight: 700_000,
	}
	fr := &fakeRates{rate: 1, limits: rates.Limits{Minimum: 1_000, Maximum: 10_000_000}}
	ff := &fakeFees{fees: rates.Fees{}}
	b := testBuilder(t, repo, ln, fr, ff)

	req := SubmarineSwapRequest{
		Pair:            "BTC/BTC",
		Side:            Buy,
		Invoice:         "lntb1dup",
		RefundPublicKey: genTestKey(t).SerializeCompressed(),
		Version:         Legacy,
	}
	if _, err := b.CreateSwap(context.Background(), req); err != nil {
		t.Fatalf("first CreateSwap: %v", err)
	}
	_, err := b.CreateSwap(context.Background(), req)
	if !errors.Is(err, swaperrors.ErrSwapWithInvoiceExists) {
		t.Fatalf("CreateSwap duplicate = %v, want ErrSwapWithInvoiceExists", err)
	}
}

func TestCreateSwapRejectsAmountAboveMaximum(t *testing.T) {
	repo := newTestRepo(t)
	ln := &fakeLn{
		invoice:     &lightning.Invoice{PaymentHash: [32]byte{9}, AmountMsat: 100_000_000_000},
		blockHeight: 700_000,
	}
	fr := &fakeRates{rate: 1, limits: rates.Limits{Minimum: 1_000, Maximum: 10_000_000}}
	ff := &fakeFees{fees: rates.Fees{}}
	b := testBuilder(t, repo, ln, fr, ff)

	_, err := b.CreateSwap(context.Background(), SubmarineSwapRequest{
		Pair:            "BTC/BTC",
		Side:            Buy,
		Invoice:         "lntb1toobig",
		RefundPublicKey: genTestKey(t).SerializeCompressed(),
		Version:         Legacy,
	})
	if err == nil {
		t.Fatal("expected error for amount above maximum")
	}
}
