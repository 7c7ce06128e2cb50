// Package lightning defines the swap core's view of a Lightning node: just
// enough to decode invoices, probe routes for a CLTV budget, and observe
// payment/invoice state. It never dials a socket itself — concrete
// implementations live outside this module (an lnd-flavored one via
// lndclient/lnrpc, a CLN-flavored one via its own RPC), matching the
// "wallet/RPC clients are external collaborators" boundary of the core.
package lightning

import (
	"context"
	"errors"
)

// ErrNoRoutes is the sentinel NO_ROUTES condition from the timeout-delta
// calculator's routability check: no route to the payee exists within the
// requested CLTV budget.
var ErrNoRoutes = errors.New("lightning: no routes found")

// Invoice is the subset of a decoded BOLT11 invoice the timeout-delta
// calculator and swap builder need.
type Invoice struct {
	PaymentHash [32]byte
	AmountMsat  uint64
	CltvExpiry  uint32 // final_cltv_delta requested by the payee

	// MPP indicates the invoice advertises multi-path payment support.
	MPP bool
	// MaxParts bounds how many parts a multi-path payment may be split
	// into; only meaningful when MPP is true.
	MaxParts uint32
}

// Route describes one candidate payment route returned by a route query.
type Route struct {
	// TotalTimeLock is the absolute block height the route's final CLTV
	// expiry resolves to, i.e. currentHeight + sum of per-hop deltas.
	TotalTimeLock uint32
}

// RouteQuery parameterizes a routability probe.
type RouteQuery struct {
	Invoice     *Invoice
	AmountMsat  uint64 // probe amount; may differ from the invoice amount for MPP
	CltvLimit   uint32
}

// PaymentState is the lifecycle state of an outgoing Lightning payment.
type PaymentState int

const (
	PaymentUnknown PaymentState = iota
	PaymentInFlight
	PaymentSucceeded
	PaymentFailed
)

// Client is the capability surface of an lnd-flavored Lightning node,
// modeled on lndclient's Router/Client services.
type Client interface {
	// DecodeInvoice parses a BOLT11 payment request.
	DecodeInvoice(ctx context.Context, invoice string) (*Invoice, error)

	// QueryRoutes returns candidate routes to the query's invoice payee.
	// Returns ErrNoRoutes if none are found within the CLTV budget.
	QueryRoutes(ctx context.Context, query RouteQuery) ([]Route, error)

	// TrackPayment reports the current state of a previously dispatched
	// payment, identified by its payment hash.
	TrackPayment(ctx context.Context, paymentHash [32]byte) (PaymentState, error)

	// CurrentBlockHeight returns the Lightning network's current view of
	// the relevant chain's block height (used to turn a route's absolute
	// TotalTimeLock into a block delta).
	CurrentBlockHeight(ctx context.Context) (uint32, error)
}

// PayStatusRecord is one entry of a CLN `checkpaystatus` response.
type PayStatusRecord struct {
	Status PaymentState
}

// ClnClient is the capability surface of a Core Lightning node exposed to
// the cooperative co-signer, modeled on CLN's `checkpaystatus` RPC.
type ClnClient interface {
	// CheckPayStatus returns every payment attempt CLN recorded against
	// the given invoice. An empty, non-error result means no payment was
	// ever attempted.
	CheckPayStatus(ctx context.Context, invoice string) ([]PayStatusRecord, error)
}
