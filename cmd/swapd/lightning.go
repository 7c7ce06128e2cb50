package main

import (
	"context"
	"errors"

	"github.com/klingon-exchange/swapcore/internal/chainwatch"
	"github.com/klingon-exchange/swapcore/internal/lightning"
	"github.com/klingon-exchange/swapcore/pkg/logging"
)

// ErrLightningNotConfigured is returned by every unconfiguredLightning
// method that needs a real Lightning node. Dialing lnd or CLN is an
// external collaborator this daemon leaves to its deployment: wire a real
// lightning.Client (and swapbuilder.InvoiceIssuer / swapservice.InvoiceSettler)
// in place of this stand-in to accept submarine or reverse swaps.
var ErrLightningNotConfigured = errors.New("swapd: no Lightning node configured")

// unconfiguredLightning is the reference stand-in for every Lightning-facing
// collaborator swapservice.Config needs. Its CurrentBlockHeight is backed by
// a real on-chain source, since that much doesn't require a Lightning node
// at all; everything that does returns ErrLightningNotConfigured.
type unconfiguredLightning struct {
	chain *chainwatch.Client
	log   *logging.Logger
}

func (u *unconfiguredLightning) DecodeInvoice(ctx context.Context, invoice string) (*lightning.Invoice, error) {
	return nil, ErrLightningNotConfigured
}

func (u *unconfiguredLightning) QueryRoutes(ctx context.Context, query lightning.RouteQuery) ([]lightning.Route, error) {
	return nil, ErrLightningNotConfigured
}

func (u *unconfiguredLightning) TrackPayment(ctx context.Context, paymentHash [32]byte) (lightning.PaymentState, error) {
	return lightning.PaymentUnknown, ErrLightningNotConfigured
}

func (u *unconfiguredLightning) CurrentBlockHeight(ctx context.Context) (uint32, error) {
	if u.chain == nil {
		return 0, ErrLightningNotConfigured
	}
	return u.chain.CurrentBlockHeight(ctx)
}

func (u *unconfiguredLightning) CreateInvoice(ctx context.Context, amountMsat uint64, preimageHash [32]byte, memo string) (string, error) {
	return "", ErrLightningNotConfigured
}

func (u *unconfiguredLightning) SettleInvoice(ctx context.Context, invoice string, preimage []byte) error {
	return ErrLightningNotConfigured
}
