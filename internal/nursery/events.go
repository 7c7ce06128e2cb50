package nursery

import "context"

// InvoiceState is the lifecycle state of a held Lightning invoice, as
// reported by a LightningWatcher.
type InvoiceState int

const (
	InvoiceStateUnknown InvoiceState = iota
	InvoiceStateAccepted
	InvoiceStateSettled
	InvoiceStateCancelled
)

// PaymentState is the lifecycle state of an outgoing Lightning payment, as
// reported by a LightningWatcher.
type PaymentState int

const (
	PaymentStateUnknown PaymentState = iota
	PaymentStateInFlight
	PaymentStateSucceeded
	PaymentStateFailed
)

// ChainEvent is one ledger observation delivered to a dispatcher: a new
// block, a transaction entering the mempool, or a transaction reaching a
// confirmation depth, scoped to one swap's lockup address.
type ChainEvent struct {
	SwapID          string
	BlockHeight     uint32
	MempoolAccepted bool
	Confirmations   uint32
	AmountReceived  int64
}

// LightningEvent is one Lightning-side observation: an invoice or payment
// state transition.
type LightningEvent struct {
	SwapID  string
	Invoice InvoiceState
	Payment PaymentState
}

// ChainWatcher is the read-only ledger polling surface a dispatcher
// consumes. Concrete implementations live outside this module (an Esplora
// or mempool.space-backed poller, a full node's ZMQ feed); the nursery
// itself never dials a socket.
type ChainWatcher interface {
	// CurrentHeight returns the watcher's view of the chain tip.
	CurrentHeight(ctx context.Context) (uint32, error)
	// Subscribe streams ChainEvents for the given lockup address until ctx
	// is cancelled.
	Subscribe(ctx context.Context, lockupAddress string) (<-chan ChainEvent, error)
}

// LightningWatcher is the read-only Lightning polling surface a dispatcher
// consumes, mirroring internal/lightning.Client's state accessors.
type LightningWatcher interface {
	// Subscribe streams LightningEvents for the given invoice/payment hash
	// pair until ctx is cancelled.
	Subscribe(ctx context.Context, paymentHash [32]byte) (<-chan LightningEvent, error)
}
