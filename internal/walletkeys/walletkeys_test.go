package walletkeys

import (
	"context"
	"testing"

	"github.com/klingon-exchange/swapcore/internal/chain"
)

// Test mnemonic (DO NOT USE FOR REAL FUNDS)
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func newTestStore(t *testing.T) *KeyStore {
	t.Helper()
	ks, err := NewFromMnemonic(testMnemonic, "", chain.Mainnet)
	if err != nil {
		t.Fatalf("NewFromMnemonic: %v", err)
	}
	return ks
}

func TestNewFromMnemonicRejectsInvalid(t *testing.T) {
	if _, err := NewFromMnemonic("not a real mnemonic", "", chain.Mainnet); err == nil {
		t.Error("expected error for invalid mnemonic")
	}
}

func TestNextKeyIndexIncrements(t *testing.T) {
	ks := newTestStore(t)
	ctx := context.Background()

	first, err := ks.NextKeyIndex(ctx, "BTC")
	if err != nil {
		t.Fatalf("NextKeyIndex: %v", err)
	}
	second, err := ks.NextKeyIndex(ctx, "BTC")
	if err != nil {
		t.Fatalf("NextKeyIndex: %v", err)
	}
	if second != first+1 {
		t.Errorf("second = %d, want %d", second, first+1)
	}

	// A different symbol's counter is independent.
	ltcFirst, err := ks.NextKeyIndex(ctx, "LTC")
	if err != nil {
		t.Fatalf("NextKeyIndex: %v", err)
	}
	if ltcFirst != 0 {
		t.Errorf("LTC first index = %d, want 0", ltcFirst)
	}
}

func TestPublicKeyAtIsDeterministic(t *testing.T) {
	ks := newTestStore(t)
	ctx := context.Background()

	pub1, err := ks.PublicKeyAt(ctx, "BTC", 5)
	if err != nil {
		t.Fatalf("PublicKeyAt: %v", err)
	}
	pub2, err := ks.PublicKeyAt(ctx, "BTC", 5)
	if err != nil {
		t.Fatalf("PublicKeyAt: %v", err)
	}
	if !pub1.IsEqual(pub2) {
		t.Error("PublicKeyAt should be deterministic for the same index")
	}

	pub3, err := ks.PublicKeyAt(ctx, "BTC", 6)
	if err != nil {
		t.Fatalf("PublicKeyAt: %v", err)
	}
	if pub1.IsEqual(pub3) {
		t.Error("different indexes should derive different keys")
	}
}

func TestPrivateKeyAtMatchesPublicKeyAt(t *testing.T) {
	ks := newTestStore(t)
	ctx := context.Background()

	pub, err := ks.PublicKeyAt(ctx, "BTC", 3)
	if err != nil {
		t.Fatalf("PublicKeyAt: %v", err)
	}
	priv, err := ks.PrivateKeyAt(ctx, 3)
	if err != nil {
		t.Fatalf("PrivateKeyAt: %v", err)
	}
	if !priv.PubKey().IsEqual(pub) {
		t.Error("PrivateKeyAt(3) should derive to the same key as PublicKeyAt(BTC, 3)")
	}
}

func TestBalanceWithoutSourceIsZero(t *testing.T) {
	ks := newTestStore(t)
	balance, err := ks.Balance(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 0 {
		t.Errorf("balance = %d, want 0 with no balance source configured", balance)
	}
}
