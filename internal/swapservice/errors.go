package swapservice

import "github.com/klingon-exchange/swapcore/internal/swaperrors"

// The error taxonomy lives in internal/swaperrors so that every component
// this façade wires together can return/check it without importing the
// façade back (see DESIGN.md). These re-exports let an external caller
// errors.Is against swapservice.ErrExceedMaximalAmount etc. without ever
// needing to know swaperrors exists.
var (
	ErrCurrencyNotFound    = swaperrors.ErrCurrencyNotFound
	ErrPairNotFound        = swaperrors.ErrPairNotFound
	ErrOrderSideNotFound   = swaperrors.ErrOrderSideNotFound
	ErrInvalidPreimageHash = swaperrors.ErrInvalidPreimageHash
	ErrScriptTypeNotFound  = swaperrors.ErrScriptTypeNotFound

	ErrReverseSwapsDisabled = swaperrors.ErrReverseSwapsDisabled
	ErrExceedMaximalAmount  = swaperrors.ErrExceedMaximalAmount
	ErrBeneathMinimalAmount = swaperrors.ErrBeneathMinimalAmount
	ErrOnchainAmountTooLow  = swaperrors.ErrOnchainAmountTooLow
	ErrMinExpiryTooBig      = swaperrors.ErrMinExpiryTooBig

	ErrSwapWithInvoiceExists  = swaperrors.ErrSwapWithInvoiceExists
	ErrSwapWithPreimageExists = swaperrors.ErrSwapWithPreimageExists

	ErrNoLndClient              = swaperrors.ErrNoLndClient
	ErrCurrencyNotUTXOBased     = swaperrors.ErrCurrencyNotUTXOBased
	ErrInvalidTimeoutBlockDelta = swaperrors.ErrInvalidTimeoutBlockDelta

	ErrNotEnoughFunds = swaperrors.ErrNotEnoughFunds

	ErrNotEligibleForCooperativeRefund = swaperrors.ErrNotEligibleForCooperativeRefund
	ErrNotEligibleForCooperativeClaim  = swaperrors.ErrNotEligibleForCooperativeClaim
	ErrIncorrectPreimage               = swaperrors.ErrIncorrectPreimage
	ErrSwapNotFound                    = swaperrors.ErrSwapNotFound
)
