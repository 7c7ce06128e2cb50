package htlcscript

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/klingon-exchange/swapcore/internal/chain"
)

func TestBuildScriptTreeProducesTaprootAddress(t *testing.T) {
	aggregated := genKey(t)
	refund := genKey(t)

	tree, err := BuildScriptTree(aggregated, refund, 900_000)
	if err != nil {
		t.Fatalf("BuildScriptTree: %v", err)
	}
	if len(tree.MerkleRoot) != 32 {
		t.Errorf("merkle root len = %d, want 32", len(tree.MerkleRoot))
	}
	if len(tree.ControlBlock) == 0 {
		t.Error("expected non-empty control block")
	}

	addr, err := tree.TaprootAddress("BTC", chain.Mainnet)
	if err != nil {
		t.Fatalf("TaprootAddress: %v", err)
	}
	if len(addr) == 0 || addr[:4] != "bc1p" {
		t.Errorf("address = %q, want bc1p-prefixed taproot address", addr)
	}
}

func TestBuildScriptTreeRejectsNilAggregatedKey(t *testing.T) {
	refund := genKey(t)
	_, err := BuildScriptTree(nil, refund, 900_000)
	if err == nil {
		t.Fatal("expected error for nil aggregated key")
	}
}

func TestBuildRefundLeafScriptRejectsZeroTimeout(t *testing.T) {
	refund := genKey(t)
	_, err := BuildRefundLeafScript(refund, 0)
	if err == nil {
		t.Fatal("expected error for zero timeout")
	}
}

func TestRefundWitnessShape(t *testing.T) {
	aggregated := genKey(t)
	refund := genKey(t)
	tree, err := BuildScriptTree(aggregated, refund, 900_000)
	if err != nil {
		t.Fatalf("BuildScriptTree: %v", err)
	}

	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("new private key: %v", err)
	}
	sig, err := schnorr.Sign(priv, make([]byte, 32))
	if err != nil {
		t.Fatalf("schnorr sign: %v", err)
	}

	witness := tree.RefundWitness(sig)
	if len(witness) != 3 {
		t.Fatalf("witness has %d items, want 3", len(witness))
	}
	if string(witness[1]) != string(tree.RefundScript) {
		t.Error("witness refund script mismatch")
	}
}
