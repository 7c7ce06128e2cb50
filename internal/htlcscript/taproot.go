package htlcscript

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/klingon-exchange/swapcore/internal/chain"
)

// ScriptTree is a Taproot output with a key-path spend (the MuSig2
// aggregated key, used for the cooperative happy path) and a single
// script-path leaf (a solo-signed refund gated by an absolute timeout
// block height).
type ScriptTree struct {
	InternalKey        *btcec.PublicKey
	TweakedKey         *btcec.PublicKey
	RefundScript       []byte
	RefundLeaf         txscript.TapLeaf
	MerkleRoot         []byte
	ControlBlock       []byte
	TimeoutBlockHeight uint32
}

// BuildRefundLeafScript builds the single-sig refund leaf script:
// <timeoutBlockHeight> OP_CHECKLOCKTIMEVERIFY OP_DROP <pubkey> OP_CHECKSIG.
func BuildRefundLeafScript(pubKey *btcec.PublicKey, timeoutBlockHeight uint32) ([]byte, error) {
	if pubKey == nil {
		return nil, fmt.Errorf("htlcscript: refund pubkey cannot be nil")
	}
	if timeoutBlockHeight == 0 {
		return nil, fmt.Errorf("htlcscript: timeout block height must be > 0")
	}

	builder := txscript.NewScriptBuilder()
	builder.AddInt64(int64(timeoutBlockHeight))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(schnorr.SerializePubKey(pubKey))
	builder.AddOp(txscript.OP_CHECKSIG)

	return builder.Script()
}

// BuildScriptTree builds a Taproot output combining the MuSig2 aggregated
// key (key-path happy case) with a script-path refund leaf.
func BuildScriptTree(aggregatedKey, refundPubKey *btcec.PublicKey, timeoutBlockHeight uint32) (*ScriptTree, error) {
	if aggregatedKey == nil {
		return nil, fmt.Errorf("htlcscript: aggregated key cannot be nil")
	}

	refundScript, err := BuildRefundLeafScript(refundPubKey, timeoutBlockHeight)
	if err != nil {
		return nil, fmt.Errorf("htlcscript: build refund leaf: %w", err)
	}

	refundLeaf := txscript.NewBaseTapLeaf(refundScript)
	tapTree := txscript.AssembleTaprootScriptTree(refundLeaf)
	merkleRoot := tapTree.RootNode.TapHash()

	tweakedKey := txscript.ComputeTaprootOutputKey(aggregatedKey, merkleRoot[:])

	ctrlBlock := tapTree.LeafMerkleProofs[0].ToControlBlock(aggregatedKey)
	ctrlBlockBytes, err := ctrlBlock.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("htlcscript: serialize control block: %w", err)
	}

	return &ScriptTree{
		InternalKey:        aggregatedKey,
		TweakedKey:         tweakedKey,
		RefundScript:       refundScript,
		RefundLeaf:         refundLeaf,
		MerkleRoot:         merkleRoot[:],
		ControlBlock:       ctrlBlockBytes,
		TimeoutBlockHeight: timeoutBlockHeight,
	}, nil
}

// TaprootAddress returns the bech32m P2TR address for this script tree, on
// the given currency and network's HRP.
func (t *ScriptTree) TaprootAddress(symbol string, network chain.Network) (string, error) {
	if t.TweakedKey == nil {
		return "", fmt.Errorf("htlcscript: tweaked key not set")
	}
	params, err := btcdParams(symbol, network)
	if err != nil {
		return "", err
	}

	xOnly := schnorr.SerializePubKey(t.TweakedKey)
	addr, err := btcutil.NewAddressTaproot(xOnly, params)
	if err != nil {
		return "", fmt.Errorf("htlcscript: derive taproot address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// RefundScriptHex returns the hex-encoded refund leaf script.
func (t *ScriptTree) RefundScriptHex() string {
	return hex.EncodeToString(t.RefundScript)
}

// ControlBlockHex returns the hex-encoded control block for the refund leaf.
func (t *ScriptTree) ControlBlockHex() string {
	return hex.EncodeToString(t.ControlBlock)
}

// RefundWitness builds the witness stack for the script-path refund spend:
// <signature> <refund_script> <control_block>.
func (t *ScriptTree) RefundWitness(sig *schnorr.Signature) wire.TxWitness {
	return wire.TxWitness{sig.Serialize(), t.RefundScript, t.ControlBlock}
}
