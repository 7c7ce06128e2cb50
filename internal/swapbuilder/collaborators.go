package swapbuilder

import (
	"context"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/klingon-exchange/swapcore/internal/chain"
	"github.com/klingon-exchange/swapcore/internal/htlcscript"
)

// ScriptFactory builds the lockup script and address for one swap leg.
// The default implementation wraps internal/htlcscript directly; it is an
// interface so tests can substitute a stub without constructing real keys.
type ScriptFactory interface {
	// BuildLegacy builds a P2WSH HTLC leg.
	BuildLegacy(secretHash []byte, claimPubKey, refundPubKey *btcec.PublicKey, timeoutBlockHeight uint32, symbol string, network chain.Network) (*htlcscript.LegacyHTLC, error)

	// BuildTaproot builds a Taproot leg (MuSig2 key-path spend, CLTV
	// refund leaf).
	BuildTaproot(aggregatedKey, refundPubKey *btcec.PublicKey, timeoutBlockHeight uint32, symbol string, network chain.Network) (*htlcscript.ScriptTree, error)
}

// HTLCScriptFactory is the default ScriptFactory, wired directly to
// internal/htlcscript's package-level builders.
type HTLCScriptFactory struct{}

func (HTLCScriptFactory) BuildLegacy(secretHash []byte, claimPubKey, refundPubKey *btcec.PublicKey, timeoutBlockHeight uint32, symbol string, network chain.Network) (*htlcscript.LegacyHTLC, error) {
	return htlcscript.BuildLegacyHTLC(secretHash, claimPubKey, refundPubKey, timeoutBlockHeight, symbol, network)
}

func (HTLCScriptFactory) BuildTaproot(aggregatedKey, refundPubKey *btcec.PublicKey, timeoutBlockHeight uint32, symbol string, network chain.Network) (*htlcscript.ScriptTree, error) {
	return htlcscript.BuildScriptTree(aggregatedKey, refundPubKey, timeoutBlockHeight)
}

// WalletHandle is the narrow capability surface the builder needs from
// the wallet: derivation-index allocation and the public key at an
// index. Key derivation itself is an external collaborator; this is
// just the query surface.
type WalletHandle interface {
	// NextKeyIndex allocates (or idempotently re-returns, on retry) the
	// next derivation index for symbol.
	NextKeyIndex(ctx context.Context, symbol string) (uint32, error)

	// PublicKeyAt returns the public key at keyIndex for symbol — the
	// service's own refund/claim key for a swap leg.
	PublicKeyAt(ctx context.Context, symbol string, keyIndex uint32) (*btcec.PublicKey, error)

	// Balance returns the wallet's total spendable balance on symbol, in
	// its smallest unit.
	Balance(ctx context.Context, symbol string) (uint64, error)
}

// Broadcaster funds a reverse-swap or chain-swap sending leg by
// broadcasting a lockup transaction paying address. Construction and
// signing of transactions beyond HTLC scripts is an external
// collaborator's job, but the builder needs a result to persist as
// transactionId.
type Broadcaster interface {
	BroadcastLockup(ctx context.Context, symbol, address string, amount uint64) (txID string, minerFee uint64, err error)
}

// InvoiceIssuer creates the service-side Lightning invoice a reverse swap
// hands to the user, locked to a preimage hash the user chose.
type InvoiceIssuer interface {
	CreateInvoice(ctx context.Context, amountMsat uint64, preimageHash [32]byte, memo string) (invoice string, err error)
}
