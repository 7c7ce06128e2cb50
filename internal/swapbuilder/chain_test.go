package swapbuilder

import (
	"context"
	"testing"

	"github.com/klingon-exchange/swapcore/internal/nursery"
	"github.com/klingon-exchange/swapcore/internal/rates"
	"github.com/klingon-exchange/swapcore/internal/swaperrors"
)

func TestCreateChainToChainSwapHappyPath(t *testing.T) {
	repo := newTestRepo(t)
	ln := &fakeLn{blockHeight: 700_000}
	fr := &fakeRates{rate: 1, limits: rates.Limits{Minimum: 1_000, Maximum: 10_000_000}}
	ff := &fakeFees{fees: rates.Fees{BaseFee: 100, PercentageFee: 50}}
	b := testBuilder(t, repo, ln, fr, ff)

	preimageHash := make([]byte, 32)
	preimageHash[0] = 0x11

	res, err := b.CreateChainToChainSwap(context.Background(), ChainSwapRequest{
		Pair:            "BTC/BTC",
		Side:            Buy,
		Amount:          500_000,
		PreimageHash:    preimageHash,
		ClaimPublicKey:  genTestKey(t).SerializeCompressed(),
		RefundPublicKey: genTestKey(t).SerializeCompressed(),
		Version:         Legacy,
	})
	if err != nil {
		t.Fatalf("CreateChainToChainSwap: %v", err)
	}
	if res.Receiving.ExpectedAmount != 500_000+150 {
		t.Errorf("receiving expected amount = %d", res.Receiving.ExpectedAmount)
	}

	legs, err := repo.GetChainSwapLegs(res.ID)
	if err != nil {
		t.Fatalf("lookup stored legs: %v", err)
	}
	if len(legs) != 2 {
		t.Fatalf("stored legs = %d, want 2", len(legs))
	}
	for _, leg := range legs {
		if leg.Status != nursery.TransactionWaiting {
			t.Errorf("leg %s status = %v, want TransactionWaiting", leg.Leg, leg.Status)
		}
	}
}

func TestCreateChainToChainSwapRejectsInsufficientBalance(t *testing.T) {
	repo := newTestRepo(t)
	ln := &fakeLn{blockHeight: 700_000}
	fr := &fakeRates{rate: 1, limits: rates.Limits{Minimum: 1_000, Maximum: 10_000_000}}
	ff := &fakeFees{fees: rates.Fees{}}
	b := testBuilder(t, repo, ln, fr, ff)
	b.wallet = &fakeWallet{nextIndex: 1, pub: genTestKey(t), balance: 100}

	_, err := b.CreateChainToChainSwap(context.Background(), ChainSwapRequest{
		Pair:            "BTC/BTC",
		Side:            Buy,
		Amount:          500_000,
		PreimageHash:    make([]byte, 32),
		ClaimPublicKey:  genTestKey(t).SerializeCompressed(),
		RefundPublicKey: genTestKey(t).SerializeCompressed(),
		Version:         Legacy,
	})
	if err != swaperrors.ErrNotEnoughFunds {
		t.Fatalf("err = %v, want ErrNotEnoughFunds", err)
	}
}

func TestCreateChainToChainSwapRejectsUnknownSide(t *testing.T) {
	repo := newTestRepo(t)
	ln := &fakeLn{blockHeight: 700_000}
	fr := &fakeRates{rate: 1, limits: rates.Limits{Minimum: 1_000, Maximum: 10_000_000}}
	ff := &fakeFees{fees: rates.Fees{BaseFee: 100, PercentageFee: 50}}
	b := testBuilder(t, repo, ln, fr, ff)

	_, err := b.CreateChainToChainSwap(context.Background(), ChainSwapRequest{
		Pair:            "BTC/BTC",
		Side:            OrderSide("bogus"),
		Amount:          500_000,
		PreimageHash:    make([]byte, 32),
		ClaimPublicKey:  genTestKey(t).SerializeCompressed(),
		RefundPublicKey: genTestKey(t).SerializeCompressed(),
		Version:         Legacy,
	})
	if err != swaperrors.ErrOrderSideNotFound {
		t.Fatalf("err = %v, want ErrOrderSideNotFound", err)
	}
}

func TestCreateChainToChainSwapRejectsDuplicatePreimageHash(t *testing.T) {
	repo := newTestRepo(t)
	ln := &fakeLn{blockHeight: 700_000}
	fr := &fakeRates{rate: 1, limits: rates.Limits{Minimum: 1_000, Maximum: 10_000_000}}
	ff := &fakeFees{fees: rates.Fees{BaseFee: 100, PercentageFee: 50}}
	b := testBuilder(t, repo, ln, fr, ff)

	preimageHash := make([]byte, 32)
	preimageHash[0] = 0x22
	req := ChainSwapRequest{
		Pair:            "BTC/BTC",
		Side:            Buy,
		Amount:          500_000,
		PreimageHash:    preimageHash,
		ClaimPublicKey:  genTestKey(t).SerializeCompressed(),
		RefundPublicKey: genTestKey(t).SerializeCompressed(),
		Version:         Legacy,
	}
	if _, err := b.CreateChainToChainSwap(context.Background(), req); err != nil {
		t.Fatalf("first CreateChainToChainSwap: %v", err)
	}
	_, err := b.CreateChainToChainSwap(context.Background(), req)
	if err != swaperrors.ErrSwapWithPreimageExists {
		t.Fatalf("err = %v, want ErrSwapWithPreimageExists", err)
	}
}
