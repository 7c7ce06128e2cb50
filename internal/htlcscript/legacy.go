// Package htlcscript builds the scripts and addresses a swap's redeem
// script field holds: the Legacy P2WSH HTLC, the Taproot MuSig2 script-path
// refund tree, and the EVM chain-swap leg's swap-id descriptor. It never
// signs or broadcasts anything; that remains the nursery's and the wallet's
// job.
package htlcscript

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"

	"github.com/klingon-exchange/swapcore/internal/chain"
	"github.com/klingon-exchange/swapcore/pkg/helpers"
)

// LegacyHTLC holds the script and address for a Legacy (non-Taproot) HTLC
// swap leg.
type LegacyHTLC struct {
	Script             []byte
	Address            string
	ScriptHash         []byte
	SecretHash         []byte
	ClaimPubKey        []byte
	RefundPubKey       []byte
	TimeoutBlockHeight uint32
}

// BuildLegacyScript builds the P2WSH HTLC witness script:
//
//	OP_IF
//	    OP_SHA256 <secretHash> OP_EQUALVERIFY
//	    <claimPubKey> OP_CHECKSIG
//	OP_ELSE
//	    <timeoutBlockHeight> OP_CHECKLOCKTIMEVERIFY OP_DROP
//	    <refundPubKey> OP_CHECKSIG
//	OP_ENDIF
//
// The refund branch is gated on an absolute block height (CLTV), matching
// the swap record's timeoutBlockHeight field, rather than a relative delta.
func BuildLegacyScript(secretHash, claimPubKey, refundPubKey []byte, timeoutBlockHeight uint32) ([]byte, error) {
	if len(secretHash) != 32 {
		return nil, fmt.Errorf("htlcscript: secret hash must be 32 bytes, got %d", len(secretHash))
	}
	if len(claimPubKey) != 33 {
		return nil, fmt.Errorf("htlcscript: claim pubkey must be 33 bytes (compressed), got %d", len(claimPubKey))
	}
	if len(refundPubKey) != 33 {
		return nil, fmt.Errorf("htlcscript: refund pubkey must be 33 bytes (compressed), got %d", len(refundPubKey))
	}
	if timeoutBlockHeight == 0 {
		return nil, fmt.Errorf("htlcscript: timeout block height must be greater than 0")
	}

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(secretHash)
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddData(claimPubKey)
	builder.AddOp(txscript.OP_CHECKSIG)

	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(int64(timeoutBlockHeight))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(refundPubKey)
	builder.AddOp(txscript.OP_CHECKSIG)

	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

// BuildLegacyHTLC builds the full script + P2WSH address for a Legacy swap
// leg on the given currency and network.
func BuildLegacyHTLC(secretHash []byte, claimPubKey, refundPubKey *btcec.PublicKey, timeoutBlockHeight uint32, symbol string, network chain.Network) (*LegacyHTLC, error) {
	claimBytes := claimPubKey.SerializeCompressed()
	refundBytes := refundPubKey.SerializeCompressed()

	script, err := BuildLegacyScript(secretHash, claimBytes, refundBytes, timeoutBlockHeight)
	if err != nil {
		return nil, fmt.Errorf("htlcscript: build script: %w", err)
	}

	scriptHash := sha256.Sum256(script)

	params, err := btcdParams(symbol, network)
	if err != nil {
		return nil, err
	}
	address, err := btcutil.NewAddressWitnessScriptHash(scriptHash[:], params)
	if err != nil {
		return nil, fmt.Errorf("htlcscript: derive P2WSH address: %w", err)
	}

	return &LegacyHTLC{
		Script:             script,
		Address:            address.EncodeAddress(),
		ScriptHash:         scriptHash[:],
		SecretHash:         secretHash,
		ClaimPubKey:        claimBytes,
		RefundPubKey:       refundBytes,
		TimeoutBlockHeight: timeoutBlockHeight,
	}, nil
}

// ClaimWitness builds the witness stack for claiming a Legacy HTLC with the
// secret: <signature> <secret> <1> <script>.
func ClaimWitness(signature, secret, script []byte) [][]byte {
	return [][]byte{signature, secret, {0x01}, script}
}

// RefundWitness builds the witness stack for refunding a Legacy HTLC after
// timeout: <signature> <> <script>.
func RefundWitness(signature, script []byte) [][]byte {
	return [][]byte{signature, {}, script}
}

// ScriptHex returns the script as a hex string.
func (h *LegacyHTLC) ScriptHex() string {
	return hex.EncodeToString(h.Script)
}

// ParseLegacyScript parses a Legacy HTLC script produced by BuildLegacyScript
// and extracts its components.
func ParseLegacyScript(script []byte) (secretHash, claimPubKey, refundPubKey []byte, timeoutBlockHeight uint32, err error) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)

	next := func(expected byte, what string) error {
		if !tokenizer.Next() || tokenizer.Opcode() != expected {
			return fmt.Errorf("htlcscript: expected %s", what)
		}
		return nil
	}

	if err := next(txscript.OP_IF, "OP_IF"); err != nil {
		return nil, nil, nil, 0, err
	}
	if err := next(txscript.OP_SHA256, "OP_SHA256"); err != nil {
		return nil, nil, nil, 0, err
	}

	if !tokenizer.Next() {
		return nil, nil, nil, 0, fmt.Errorf("htlcscript: expected secret hash")
	}
	secretHash = tokenizer.Data()
	if len(secretHash) != 32 {
		return nil, nil, nil, 0, fmt.Errorf("htlcscript: secret hash must be 32 bytes")
	}

	if err := next(txscript.OP_EQUALVERIFY, "OP_EQUALVERIFY"); err != nil {
		return nil, nil, nil, 0, err
	}

	if !tokenizer.Next() {
		return nil, nil, nil, 0, fmt.Errorf("htlcscript: expected claim pubkey")
	}
	claimPubKey = tokenizer.Data()
	if len(claimPubKey) != 33 {
		return nil, nil, nil, 0, fmt.Errorf("htlcscript: claim pubkey must be 33 bytes")
	}

	if err := next(txscript.OP_CHECKSIG, "OP_CHECKSIG"); err != nil {
		return nil, nil, nil, 0, err
	}
	if err := next(txscript.OP_ELSE, "OP_ELSE"); err != nil {
		return nil, nil, nil, 0, err
	}

	if !tokenizer.Next() {
		return nil, nil, nil, 0, fmt.Errorf("htlcscript: expected timeout block height")
	}
	op := tokenizer.Opcode()
	if txscript.IsSmallInt(op) {
		timeoutBlockHeight = uint32(txscript.AsSmallInt(op))
	} else {
		data := tokenizer.Data()
		if len(data) == 0 {
			return nil, nil, nil, 0, fmt.Errorf("htlcscript: invalid timeout block height")
		}
		for i := 0; i < len(data); i++ {
			timeoutBlockHeight |= uint32(data[i]) << (8 * i)
		}
	}

	if err := next(txscript.OP_CHECKLOCKTIMEVERIFY, "OP_CHECKLOCKTIMEVERIFY"); err != nil {
		return nil, nil, nil, 0, err
	}
	if err := next(txscript.OP_DROP, "OP_DROP"); err != nil {
		return nil, nil, nil, 0, err
	}

	if !tokenizer.Next() {
		return nil, nil, nil, 0, fmt.Errorf("htlcscript: expected refund pubkey")
	}
	refundPubKey = tokenizer.Data()
	if len(refundPubKey) != 33 {
		return nil, nil, nil, 0, fmt.Errorf("htlcscript: refund pubkey must be 33 bytes")
	}

	if err := next(txscript.OP_CHECKSIG, "OP_CHECKSIG"); err != nil {
		return nil, nil, nil, 0, err
	}
	if err := next(txscript.OP_ENDIF, "OP_ENDIF"); err != nil {
		return nil, nil, nil, 0, err
	}

	return secretHash, claimPubKey, refundPubKey, timeoutBlockHeight, nil
}

// GenerateSecret generates a cryptographically secure 32-byte preimage and
// returns it alongside its SHA-256 hash.
func GenerateSecret() (secret, hash []byte, err error) {
	secret, err = helpers.GenerateSecureRandom(32)
	if err != nil {
		return nil, nil, fmt.Errorf("htlcscript: generate secret: %w", err)
	}
	h := sha256.Sum256(secret)
	return secret, h[:], nil
}

// VerifySecret reports whether secret hashes to expectedHash.
func VerifySecret(secret, expectedHash []byte) bool {
	if len(secret) != 32 || len(expectedHash) != 32 {
		return false
	}
	actual := sha256.Sum256(secret)
	return helpers.ConstantTimeCompare(actual[:], expectedHash)
}
