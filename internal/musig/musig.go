// Package musig implements the cooperative MuSig2 co-signer: refunds for
// expired submarine/chain swaps and claims for settled reverse swaps, both
// gated on eligibility checks. It never broadcasts; it only returns a
// nonce/partial-signature pair for the caller to combine and relay.
package musig

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/klingon-exchange/swapcore/internal/chain"
	"github.com/klingon-exchange/swapcore/internal/lightning"
	"github.com/klingon-exchange/swapcore/internal/nursery"
	"github.com/klingon-exchange/swapcore/internal/swapbuilder"
	"github.com/klingon-exchange/swapcore/internal/swaperrors"
	"github.com/klingon-exchange/swapcore/pkg/helpers"
)

// WalletKeys resolves the service's own signing key for a swap's
// key-derivation index. Key derivation itself is an external collaborator;
// this is the narrow capability the signer needs.
type WalletKeys interface {
	PrivateKeyAt(ctx context.Context, keyIndex uint32) (*btcec.PrivateKey, error)
}

// SubmarineOrChainSwap is the subset of a submarine/chain-swap record the
// refund path needs, satisfied by *repository.SubmarineSwap and an
// adapted *repository.ChainSwapLeg.
type SubmarineOrChainSwap struct {
	ID                 string
	Symbol             string
	Version            swapbuilder.Version
	Status             nursery.Status
	RefundPublicKey    *btcec.PublicKey
	KeyIndex           uint32
	TimeoutBlockHeight uint32
	Invoice            string // empty if the swap has no Lightning side
}

// ReverseSwapForClaim is the subset of a reverse-swap record the claim path
// needs, satisfied by an adapted *repository.ReverseSwap.
type ReverseSwapForClaim struct {
	ID             string
	Version        swapbuilder.Version
	Status         nursery.Status
	PreimageHash   [32]byte
	ClaimPublicKey *btcec.PublicKey
	KeyIndex       uint32
	Invoice        string
}

// SwapStore is the read/write surface the signer needs from the
// repository: loading the record under the right lock and persisting a
// revealed preimage or settled-invoice side effect.
type SwapStore interface {
	LoadSubmarineOrChain(ctx context.Context, swapID string) (*SubmarineOrChainSwap, error)
	LoadReverseForClaim(ctx context.Context, swapID string) (*ReverseSwapForClaim, error)
	PersistPreimage(ctx context.Context, swapID string, preimage []byte) error
	SettleInvoice(ctx context.Context, invoice string, preimage []byte) error
}

// Signer answers cooperative co-signing requests.
type Signer struct {
	store      SwapStore
	wallet     WalletKeys
	lnClients  map[string]lightning.Client    // keyed by currency symbol
	clnClients map[string]lightning.ClnClient // keyed by currency symbol

	reverseSwapLock sync.Mutex // serializes the reverse-swap invoice-settle side effect
}

// Config wires a Signer's collaborators.
type Config struct {
	Store      SwapStore
	Wallet     WalletKeys
	LnClients  map[string]lightning.Client
	ClnClients map[string]lightning.ClnClient
}

// New builds a Signer from its collaborators.
func New(cfg Config) *Signer {
	return &Signer{
		store:      cfg.Store,
		wallet:     cfg.Wallet,
		lnClients:  cfg.LnClients,
		clnClients: cfg.ClnClients,
	}
}

// CoSignResult is the pubNonce/partial-signature pair handed back to the
// peer for combining.
type CoSignResult struct {
	PubNonce   [musig2.PubNonceSize]byte
	PartialSig *musig2.PartialSignature
}

// SignRefund produces a cooperative partial signature refunding an expired
// submarine or chain swap.
func (s *Signer) SignRefund(ctx context.Context, swapID string, theirPubKey *btcec.PublicKey, theirNonce [musig2.PubNonceSize]byte, rawTransaction []byte, inputIndex int) (*CoSignResult, error) {
	swap, err := s.store.LoadSubmarineOrChain(ctx, swapID)
	if err != nil {
		return nil, fmt.Errorf("musig: load swap: %w", err)
	}

	if swap.Version != swapbuilder.Taproot {
		return nil, swaperrors.ErrNotEligibleForCooperativeRefund
	}

	params, ok := chain.Get(swap.Symbol, chain.Mainnet)
	if !ok {
		params, ok = chain.Get(swap.Symbol, chain.Testnet)
	}
	if !ok || params.Type != chain.ChainTypeBitcoin {
		return nil, fmt.Errorf("%w: %s", swaperrors.ErrCurrencyNotUTXOBased, swap.Symbol)
	}

	if !s.isEligibleForCooperativeRefund(ctx, swap) {
		return nil, swaperrors.ErrNotEligibleForCooperativeRefund
	}

	privKey, err := s.wallet.PrivateKeyAt(ctx, swap.KeyIndex)
	if err != nil {
		return nil, fmt.Errorf("musig: derive signing key: %w", err)
	}

	sighash, err := sighashForInput(rawTransaction, inputIndex)
	if err != nil {
		return nil, fmt.Errorf("musig: compute sighash: %w", err)
	}

	return cosign(privKey, swap.RefundPublicKey, theirPubKey, theirNonce, sighash)
}

// isEligibleForCooperativeRefund requires the swap to already be in a
// failed-update status, and if it has a Lightning
// side, that side must not still have a non-failed payment outstanding.
func (s *Signer) isEligibleForCooperativeRefund(ctx context.Context, swap *SubmarineOrChainSwap) bool {
	if !nursery.IsFailedSwapUpdateEvent(swap.Status) {
		return false
	}
	if swap.Invoice == "" {
		return true
	}
	return !s.hasNonFailedLightningPayment(ctx, swap.Symbol, swap.Invoice)
}

// hasNonFailedLightningPayment reports whether the given currency's
// Lightning side still has an outstanding (non-failed) payment attempt
// against invoice. LND-flavored backends answer via TrackPayment; CLN
// answers via CheckPayStatus. A CLN RPC error is treated conservatively
// as "payment exists" to avoid double-spending a refund against a
// payment that might still settle.
func (s *Signer) hasNonFailedLightningPayment(ctx context.Context, symbol, invoice string) bool {
	if ln, ok := s.lnClients[symbol]; ok {
		decoded, err := ln.DecodeInvoice(ctx, invoice)
		if err != nil {
			return true
		}
		state, err := ln.TrackPayment(ctx, decoded.PaymentHash)
		if err != nil {
			return true
		}
		return state != lightning.PaymentFailed
	}
	if cln, ok := s.clnClients[symbol]; ok {
		records, err := cln.CheckPayStatus(ctx, invoice)
		if err != nil {
			return true
		}
		return len(records) > 0
	}
	return false
}

// SignReverseSwapClaim produces a cooperative partial signature claiming a
// settled reverse swap's on-chain lockup.
func (s *Signer) SignReverseSwapClaim(ctx context.Context, swapID string, preimage []byte, theirPubKey *btcec.PublicKey, theirNonce [musig2.PubNonceSize]byte, rawTransaction []byte, inputIndex int) (*CoSignResult, error) {
	swap, err := s.store.LoadReverseForClaim(ctx, swapID)
	if err != nil {
		return nil, fmt.Errorf("musig: load swap: %w", err)
	}

	if swap.Version != swapbuilder.Taproot {
		return nil, swaperrors.ErrNotEligibleForCooperativeClaim
	}

	switch swap.Status {
	case nursery.TransactionMempool, nursery.TransactionConfirmed, nursery.InvoiceSettled:
	default:
		return nil, swaperrors.ErrNotEligibleForCooperativeClaim
	}

	if len(preimage) != 32 {
		return nil, swaperrors.ErrIncorrectPreimage
	}
	gotHash := sha256.Sum256(preimage)
	if !bytes.Equal(gotHash[:], swap.PreimageHash[:]) {
		return nil, swaperrors.ErrIncorrectPreimage
	}

	if err := s.store.PersistPreimage(ctx, swap.ID, preimage); err != nil {
		return nil, fmt.Errorf("musig: persist preimage: %w", err)
	}

	s.reverseSwapLock.Lock()
	if swap.Status != nursery.InvoiceSettled {
		if err := s.store.SettleInvoice(ctx, swap.Invoice, preimage); err != nil {
			s.reverseSwapLock.Unlock()
			return nil, fmt.Errorf("musig: settle invoice: %w", err)
		}
	}
	s.reverseSwapLock.Unlock()

	privKey, err := s.wallet.PrivateKeyAt(ctx, swap.KeyIndex)
	if err != nil {
		return nil, fmt.Errorf("musig: derive signing key: %w", err)
	}

	sighash, err := sighashForInput(rawTransaction, inputIndex)
	if err != nil {
		return nil, fmt.Errorf("musig: compute sighash: %w", err)
	}

	return cosign(privKey, swap.ClaimPublicKey, theirPubKey, theirNonce, sighash)
}

// sighashForInput extracts the 32-byte BIP341 taproot sighash the caller
// computed for rawTransaction's inputIndex. The wire-level sighash
// computation itself (walking prevout scripts/amounts) is the caller's
// responsibility; this just validates shape.
func sighashForInput(rawTransaction []byte, inputIndex int) (*chainhash.Hash, error) {
	if inputIndex < 0 {
		return nil, fmt.Errorf("musig: negative input index")
	}
	if len(rawTransaction) != 32 {
		return nil, fmt.Errorf("musig: expected a precomputed 32-byte sighash, got %d bytes", len(rawTransaction))
	}
	return chainhash.NewHash(rawTransaction)
}

// cosign runs one round of MuSig2 partial signing against the two-of-two
// aggregate of localPrivKey and theirPubKey, using nonce-reuse protection
// via a fresh secret nonce per call.
func cosign(localPrivKey *btcec.PrivateKey, localPubKey, theirPubKey *btcec.PublicKey, theirNonce [musig2.PubNonceSize]byte, msgHash *chainhash.Hash) (*CoSignResult, error) {
	if localPubKey == nil || theirPubKey == nil {
		return nil, errors.New("musig: missing public key for cosigning")
	}

	walletPubKey := localPrivKey.PubKey()
	keys := []*btcec.PublicKey{walletPubKey, theirPubKey}
	if helpers.CompareBytes(walletPubKey.SerializeCompressed(), theirPubKey.SerializeCompressed()) > 0 {
		keys = []*btcec.PublicKey{theirPubKey, walletPubKey}
	}

	nonces, err := musig2.GenNonces(musig2.WithPublicKey(localPrivKey.PubKey()))
	if err != nil {
		return nil, fmt.Errorf("musig: generate nonces: %w", err)
	}

	ctx, err := musig2.NewContext(localPrivKey, false, musig2.WithKnownSigners(keys))
	if err != nil {
		return nil, fmt.Errorf("musig: create signing context: %w", err)
	}

	session, err := ctx.NewSession(musig2.WithPreGeneratedNonce(nonces))
	if err != nil {
		return nil, fmt.Errorf("musig: create session: %w", err)
	}
	if _, err := session.RegisterPubNonce(theirNonce); err != nil {
		return nil, fmt.Errorf("musig: register counterparty nonce: %w", err)
	}

	partialSig, err := session.Sign(*msgHash)
	if err != nil {
		return nil, fmt.Errorf("musig: sign: %w", err)
	}

	return &CoSignResult{PubNonce: nonces.PubNonce, PartialSig: partialSig}, nil
}
