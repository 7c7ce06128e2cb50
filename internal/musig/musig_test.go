package musig

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/klingon-exchange/swapcore/internal/lightning"
	"github.com/klingon-exchange/swapcore/internal/nursery"
	"github.com/klingon-exchange/swapcore/internal/swapbuilder"
	"github.com/klingon-exchange/swapcore/internal/swaperrors"
)

type fakeStore struct {
	submarine       *SubmarineOrChainSwap
	reverse         *ReverseSwapForClaim
	persistedPreimg []byte
	settledInvoice  string
}

func (f *fakeStore) LoadSubmarineOrChain(ctx context.Context, swapID string) (*SubmarineOrChainSwap, error) {
	if f.submarine == nil {
		return nil, errNotFound
	}
	return f.submarine, nil
}

func (f *fakeStore) LoadReverseForClaim(ctx context.Context, swapID string) (*ReverseSwapForClaim, error) {
	if f.reverse == nil {
		return nil, errNotFound
	}
	return f.reverse, nil
}

func (f *fakeStore) PersistPreimage(ctx context.Context, swapID string, preimage []byte) error {
	f.persistedPreimg = preimage
	return nil
}

func (f *fakeStore) SettleInvoice(ctx context.Context, invoice string, preimage []byte) error {
	f.settledInvoice = invoice
	return nil
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

const errNotFound = fakeErr("not found")

type fakeWallet struct {
	key *btcec.PrivateKey
}

func (f *fakeWallet) PrivateKeyAt(ctx context.Context, keyIndex uint32) (*btcec.PrivateKey, error) {
	return f.key, nil
}

type fakeLNClient struct {
	state lightning.PaymentState
	err   error
}

func (f *fakeLNClient) DecodeInvoice(ctx context.Context, invoice string) (*lightning.Invoice, error) {
	return &lightning.Invoice{PaymentHash: [32]byte{1}}, nil
}

func (f *fakeLNClient) QueryRoutes(ctx context.Context, q lightning.RouteQuery) ([]lightning.Route, error) {
	return nil, nil
}

func (f *fakeLNClient) TrackPayment(ctx context.Context, paymentHash [32]byte) (lightning.PaymentState, error) {
	return f.state, f.err
}

func (f *fakeLNClient) CurrentBlockHeight(ctx context.Context) (uint32, error) {
	return 0, nil
}

func genPriv(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	return priv
}

func dummyNonce(t *testing.T, pub *btcec.PublicKey) [musig2.PubNonceSize]byte {
	t.Helper()
	nonces, err := musig2.GenNonces(musig2.WithPublicKey(pub))
	if err != nil {
		t.Fatalf("GenNonces: %v", err)
	}
	return nonces.PubNonce
}

func TestSignRefundRejectsIneligibleStatus(t *testing.T) {
	refundKey := genPriv(t)
	store := &fakeStore{submarine: &SubmarineOrChainSwap{
		ID:              "swap1",
		Symbol:          "BTC",
		Version:         swapbuilder.Taproot,
		Status:          nursery.TransactionMempool, // not a failed-update status
		RefundPublicKey: refundKey.PubKey(),
	}}
	signer := New(Config{Store: store, Wallet: &fakeWallet{key: refundKey}})

	theirKey := genPriv(t)
	sighash := chainhash.Hash{}
	_, err := signer.SignRefund(context.Background(), "swap1", theirKey.PubKey(), dummyNonce(t, theirKey.PubKey()), sighash[:], 0)
	if err == nil {
		t.Fatal("expected error for non-failed status")
	}
}

func TestSignRefundRejectsNonUTXOCurrency(t *testing.T) {
	refundKey := genPriv(t)
	store := &fakeStore{submarine: &SubmarineOrChainSwap{
		ID:              "swap1",
		Symbol:          "ETH",
		Version:         swapbuilder.Taproot,
		Status:          nursery.TransactionFailed,
		RefundPublicKey: refundKey.PubKey(),
	}}
	signer := New(Config{Store: store, Wallet: &fakeWallet{key: refundKey}})

	theirKey := genPriv(t)
	sighash := chainhash.Hash{}
	_, err := signer.SignRefund(context.Background(), "swap1", theirKey.PubKey(), dummyNonce(t, theirKey.PubKey()), sighash[:], 0)
	if err == nil {
		t.Fatal("expected error for non-UTXO currency")
	}
}

func TestSignRefundBlockedByOutstandingLightningPayment(t *testing.T) {
	refundKey := genPriv(t)
	store := &fakeStore{submarine: &SubmarineOrChainSwap{
		ID:              "swap1",
		Symbol:          "BTC",
		Version:         swapbuilder.Taproot,
		Status:          nursery.TransactionFailed,
		RefundPublicKey: refundKey.PubKey(),
		Invoice:         "lnbc1...",
	}}
	ln := &fakeLNClient{state: lightning.PaymentInFlight}
	signer := New(Config{
		Store:     store,
		Wallet:    &fakeWallet{key: refundKey},
		LnClients: map[string]lightning.Client{"BTC": ln},
	})

	theirKey := genPriv(t)
	sighash := chainhash.Hash{}
	_, err := signer.SignRefund(context.Background(), "swap1", theirKey.PubKey(), dummyNonce(t, theirKey.PubKey()), sighash[:], 0)
	if err == nil {
		t.Fatal("expected refusal while a Lightning payment is still in flight")
	}
}

func TestSignRefundSucceedsOnceLightningPaymentFailed(t *testing.T) {
	refundKey := genPriv(t)
	store := &fakeStore{submarine: &SubmarineOrChainSwap{
		ID:              "swap1",
		Symbol:          "BTC",
		Version:         swapbuilder.Taproot,
		Status:          nursery.TransactionFailed,
		RefundPublicKey: refundKey.PubKey(),
		Invoice:         "lnbc1...",
	}}
	ln := &fakeLNClient{state: lightning.PaymentFailed}
	signer := New(Config{
		Store:     store,
		Wallet:    &fakeWallet{key: refundKey},
		LnClients: map[string]lightning.Client{"BTC": ln},
	})

	theirKey := genPriv(t)
	sighash := chainhash.Hash{}
	result, err := signer.SignRefund(context.Background(), "swap1", theirKey.PubKey(), dummyNonce(t, theirKey.PubKey()), sighash[:], 0)
	if err != nil {
		t.Fatalf("SignRefund: %v", err)
	}
	if result.PartialSig == nil {
		t.Fatal("expected a partial signature")
	}
}

func TestSignRefundRejectsLegacyVersion(t *testing.T) {
	refundKey := genPriv(t)
	store := &fakeStore{submarine: &SubmarineOrChainSwap{
		ID:              "swap1",
		Symbol:          "BTC",
		Version:         swapbuilder.Legacy,
		Status:          nursery.TransactionFailed,
		RefundPublicKey: refundKey.PubKey(),
	}}
	signer := New(Config{Store: store, Wallet: &fakeWallet{key: refundKey}})

	theirKey := genPriv(t)
	sighash := chainhash.Hash{}
	_, err := signer.SignRefund(context.Background(), "swap1", theirKey.PubKey(), dummyNonce(t, theirKey.PubKey()), sighash[:], 0)
	if !errors.Is(err, swaperrors.ErrNotEligibleForCooperativeRefund) {
		t.Fatalf("err = %v, want ErrNotEligibleForCooperativeRefund", err)
	}
}

func TestSignReverseSwapClaimRejectsLegacyVersion(t *testing.T) {
	claimKey := genPriv(t)
	preimage := bytes.Repeat([]byte{7}, 32)
	store := &fakeStore{reverse: &ReverseSwapForClaim{
		ID:             "rswap1",
		Version:        swapbuilder.Legacy,
		Status:         nursery.InvoiceSettled,
		PreimageHash:   sha256.Sum256(preimage),
		ClaimPublicKey: claimKey.PubKey(),
	}}
	signer := New(Config{Store: store, Wallet: &fakeWallet{key: claimKey}})

	theirKey := genPriv(t)
	sighash := chainhash.Hash{}
	_, err := signer.SignReverseSwapClaim(context.Background(), "rswap1", preimage, theirKey.PubKey(), dummyNonce(t, theirKey.PubKey()), sighash[:], 0)
	if !errors.Is(err, swaperrors.ErrNotEligibleForCooperativeClaim) {
		t.Fatalf("err = %v, want ErrNotEligibleForCooperativeClaim", err)
	}
	if store.persistedPreimg != nil {
		t.Error("preimage must not be persisted for a non-Taproot swap")
	}
}

func TestSignReverseSwapClaimRejectsWrongPreimage(t *testing.T) {
	claimKey := genPriv(t)
	preimage := bytes.Repeat([]byte{7}, 32)
	store := &fakeStore{reverse: &ReverseSwapForClaim{
		ID:             "rswap1",
		Version:        swapbuilder.Taproot,
		Status:         nursery.InvoiceSettled,
		PreimageHash:   sha256.Sum256(preimage),
		ClaimPublicKey: claimKey.PubKey(),
	}}
	signer := New(Config{Store: store, Wallet: &fakeWallet{key: claimKey}})

	theirKey := genPriv(t)
	sighash := chainhash.Hash{}
	wrong := bytes.Repeat([]byte{8}, 32)
	_, err := signer.SignReverseSwapClaim(context.Background(), "rswap1", wrong, theirKey.PubKey(), dummyNonce(t, theirKey.PubKey()), sighash[:], 0)
	if err == nil {
		t.Fatal("expected rejection for wrong preimage")
	}
	if store.persistedPreimg != nil {
		t.Error("preimage must not be persisted on a failed check")
	}
}

func TestSignReverseSwapClaimRejectsIneligibleStatus(t *testing.T) {
	claimKey := genPriv(t)
	preimage := bytes.Repeat([]byte{7}, 32)
	store := &fakeStore{reverse: &ReverseSwapForClaim{
		ID:             "rswap1",
		Version:        swapbuilder.Taproot,
		Status:         nursery.SwapCreated, // too early
		PreimageHash:   sha256.Sum256(preimage),
		ClaimPublicKey: claimKey.PubKey(),
	}}
	signer := New(Config{Store: store, Wallet: &fakeWallet{key: claimKey}})

	theirKey := genPriv(t)
	sighash := chainhash.Hash{}
	_, err := signer.SignReverseSwapClaim(context.Background(), "rswap1", preimage, theirKey.PubKey(), dummyNonce(t, theirKey.PubKey()), sighash[:], 0)
	if err == nil {
		t.Fatal("expected rejection for ineligible status")
	}
}

func TestSignReverseSwapClaimSettlesInvoiceThenSigns(t *testing.T) {
	claimKey := genPriv(t)
	preimage := bytes.Repeat([]byte{7}, 32)
	store := &fakeStore{reverse: &ReverseSwapForClaim{
		ID:             "rswap1",
		Version:        swapbuilder.Taproot,
		Status:         nursery.TransactionConfirmed,
		PreimageHash:   sha256.Sum256(preimage),
		ClaimPublicKey: claimKey.PubKey(),
		Invoice:        "lnbc2...",
	}}
	signer := New(Config{Store: store, Wallet: &fakeWallet{key: claimKey}})

	theirKey := genPriv(t)
	sighash := chainhash.Hash{}
	result, err := signer.SignReverseSwapClaim(context.Background(), "rswap1", preimage, theirKey.PubKey(), dummyNonce(t, theirKey.PubKey()), sighash[:], 0)
	if err != nil {
		t.Fatalf("SignReverseSwapClaim: %v", err)
	}
	if result.PartialSig == nil {
		t.Fatal("expected a partial signature")
	}
	if store.settledInvoice != "lnbc2..." {
		t.Errorf("expected invoice to be settled, got %q", store.settledInvoice)
	}
	if !bytes.Equal(store.persistedPreimg, preimage) {
		t.Error("expected preimage to be persisted")
	}
}
