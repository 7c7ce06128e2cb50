// Package swaperrors holds the stable error taxonomy surfaced by every
// layer of the swap core, so an errors.Is check against one of these
// sentinels works the same whether it came out of the builder, the
// timeout-delta provider, the nursery, or the façade that wraps them for
// callers. Kept as its own leaf package (rather than living only on
// internal/swapservice, which every component would then have to import)
// so internal/swapbuilder, internal/timeoutdelta, internal/musig and
// internal/nursery can return it directly without an import cycle.
package swaperrors

import "errors"

// Validation errors.
var (
	ErrCurrencyNotFound    = errors.New("CURRENCY_NOT_FOUND")
	ErrPairNotFound        = errors.New("PAIR_NOT_FOUND")
	ErrOrderSideNotFound   = errors.New("ORDER_SIDE_NOT_FOUND")
	ErrInvalidPreimageHash = errors.New("INVALID_PREIMAGE_HASH")
	ErrScriptTypeNotFound  = errors.New("SCRIPT_TYPE_NOT_FOUND")
)

// Policy errors.
var (
	ErrReverseSwapsDisabled  = errors.New("REVERSE_SWAPS_DISABLED")
	ErrExceedMaximalAmount   = errors.New("EXCEED_MAXIMAL_AMOUNT")
	ErrBeneathMinimalAmount  = errors.New("BENEATH_MINIMAL_AMOUNT")
	ErrOnchainAmountTooLow   = errors.New("ONCHAIN_AMOUNT_TOO_LOW")
	ErrMinExpiryTooBig       = errors.New("MIN_EXPIRY_TOO_BIG")
)

// Uniqueness errors.
var (
	ErrSwapWithInvoiceExists  = errors.New("SWAP_WITH_INVOICE_EXISTS")
	ErrSwapWithPreimageExists = errors.New("SWAP_WITH_PREIMAGE_EXISTS")
)

// Capability errors.
var (
	ErrNoLndClient             = errors.New("NO_LND_CLIENT")
	ErrCurrencyNotUTXOBased    = errors.New("CURRENCY_NOT_UTXO_BASED")
	ErrInvalidTimeoutBlockDelta = errors.New("INVALID_TIMEOUT_BLOCK_DELTA")
)

// Resource errors.
var (
	ErrNotEnoughFunds = errors.New("NOT_ENOUGH_FUNDS")
)

// Cooperative signing errors.
var (
	ErrNotEligibleForCooperativeRefund = errors.New("NOT_ELIGIBLE_FOR_COOPERATIVE_REFUND")
	ErrNotEligibleForCooperativeClaim  = errors.New("NOT_ELIGIBLE_FOR_COOPERATIVE_CLAIM")
	ErrIncorrectPreimage              = errors.New("INCORRECT_PREIMAGE")
	ErrSwapNotFound                   = errors.New("SWAP_NOT_FOUND")
)
