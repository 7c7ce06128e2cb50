package htlcscript

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/klingon-exchange/swapcore/internal/chain"
)

func genKey(t *testing.T) *btcec.PublicKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv.PubKey()
}

func TestBuildAndParseLegacyScriptRoundTrips(t *testing.T) {
	secret, secretHash, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if !VerifySecret(secret, secretHash) {
		t.Fatal("VerifySecret rejected its own secret")
	}

	claimKey := genKey(t)
	refundKey := genKey(t)

	htlc, err := BuildLegacyHTLC(secretHash, claimKey, refundKey, 800_000, "BTC", chain.Mainnet)
	if err != nil {
		t.Fatalf("BuildLegacyHTLC: %v", err)
	}
	if htlc.Address == "" {
		t.Fatal("expected non-empty address")
	}

	gotHash, gotClaim, gotRefund, gotTimeout, err := ParseLegacyScript(htlc.Script)
	if err != nil {
		t.Fatalf("ParseLegacyScript: %v", err)
	}
	if !bytes.Equal(gotHash, secretHash) {
		t.Errorf("parsed secret hash mismatch")
	}
	if !bytes.Equal(gotClaim, claimKey.SerializeCompressed()) {
		t.Errorf("parsed claim pubkey mismatch")
	}
	if !bytes.Equal(gotRefund, refundKey.SerializeCompressed()) {
		t.Errorf("parsed refund pubkey mismatch")
	}
	if gotTimeout != 800_000 {
		t.Errorf("parsed timeout = %d, want 800000", gotTimeout)
	}
}

func TestBuildLegacyScriptRejectsBadSecretHash(t *testing.T) {
	claimKey := genKey(t)
	refundKey := genKey(t)
	_, err := BuildLegacyScript([]byte("short"), claimKey.SerializeCompressed(), refundKey.SerializeCompressed(), 100)
	if err == nil {
		t.Fatal("expected error for short secret hash")
	}
}

func TestBuildLegacyScriptRejectsZeroTimeout(t *testing.T) {
	hash := sha256.Sum256([]byte("preimage"))
	claimKey := genKey(t)
	refundKey := genKey(t)
	_, err := BuildLegacyScript(hash[:], claimKey.SerializeCompressed(), refundKey.SerializeCompressed(), 0)
	if err == nil {
		t.Fatal("expected error for zero timeout")
	}
}

func TestVerifySecretRejectsWrongPreimage(t *testing.T) {
	secret, hash, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	tampered := append([]byte(nil), secret...)
	tampered[0] ^= 0xFF
	if VerifySecret(tampered, hash) {
		t.Fatal("VerifySecret accepted a tampered preimage")
	}
}
