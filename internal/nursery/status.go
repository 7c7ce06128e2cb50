// Package nursery implements the swap status state machine: it watches
// chain and Lightning events, applies them to swap records under a
// per-kind lock, and walks each swap through its status DAG from
// creation to a terminal state.
package nursery

import "fmt"

// Status is a swap's lifecycle status. Values are part of the external
// protocol as well as internal state.
type Status string

const (
	SwapCreated          Status = "swap.created"
	TransactionWaiting    Status = "transaction.waiting"
	TransactionMempool    Status = "transaction.mempool"
	TransactionConfirmed  Status = "transaction.confirmed"
	TransactionFailed     Status = "transaction.failed"
	TransactionLockupFailed Status = "transaction.lockupFailed"
	InvoicePending        Status = "invoice.pending"
	InvoicePaid           Status = "invoice.paid"
	InvoiceFailedToPay    Status = "invoice.failedToPay"
	InvoiceSettled        Status = "invoice.settled"
	InvoiceExpired        Status = "invoice.expired"
	ChannelCreated        Status = "channel.created"
	TransactionClaimed    Status = "transaction.claimed"
	TransactionRefunded   Status = "transaction.refunded"
	SwapExpired           Status = "swap.expired"
)

// FailedSwapUpdateEvents is the set of statuses that mark a swap as
// already dead on its happy path — the precondition for a cooperative
// refund offer.
var FailedSwapUpdateEvents = map[Status]bool{
	TransactionFailed:  true,
	InvoiceFailedToPay: true,
	SwapExpired:        true,
	TransactionRefunded: true,
	InvoiceExpired:     true,
}

// IsFailedSwapUpdateEvent reports whether status is in FailedSwapUpdateEvents.
func IsFailedSwapUpdateEvent(status Status) bool {
	return FailedSwapUpdateEvents[status]
}

// Kind distinguishes which status DAG and lock apply to a swap.
type Kind string

const (
	KindSubmarine Kind = "submarine"
	KindReverse   Kind = "reverse"
	KindChain     Kind = "chain"
)

var submarineDAG = map[Status][]Status{
	SwapCreated:           {TransactionMempool, TransactionLockupFailed},
	TransactionLockupFailed: {TransactionMempool},
	TransactionMempool:     {TransactionConfirmed, InvoicePaid, SwapExpired},
	TransactionConfirmed:   {InvoicePaid, SwapExpired},
	InvoicePaid:            {TransactionClaimed, SwapExpired},
	SwapExpired:            {TransactionRefunded},
	TransactionClaimed:     {},
	TransactionRefunded:    {},
	TransactionFailed:      {},
}

var reverseDAG = map[Status][]Status{
	SwapCreated:          {TransactionMempool},
	TransactionMempool:    {TransactionConfirmed, InvoicePending, SwapExpired},
	TransactionConfirmed:  {InvoicePending, SwapExpired},
	InvoicePending:        {InvoiceSettled, SwapExpired},
	InvoiceSettled:        {TransactionClaimed},
	TransactionClaimed:    {},
	SwapExpired:           {TransactionRefunded},
	TransactionRefunded:   {},
	InvoiceFailedToPay:    {},
	InvoiceExpired:        {},
}

// A chain-to-chain swap's two legs start life already locked in (the
// service allocated a lockup address on each side), not merely
// "created" — so the chain kind's DAG starts at TransactionWaiting
// rather than SwapCreated.
var chainDAG = map[Status][]Status{
	TransactionWaiting:   {TransactionMempool, SwapExpired},
	TransactionMempool:    {TransactionConfirmed, SwapExpired},
	TransactionConfirmed:  {TransactionClaimed, SwapExpired},
	TransactionClaimed:    {},
	SwapExpired:           {TransactionRefunded},
	TransactionRefunded:   {},
	TransactionFailed:     {},
}

func dagFor(kind Kind) (map[Status][]Status, error) {
	switch kind {
	case KindSubmarine:
		return submarineDAG, nil
	case KindReverse:
		return reverseDAG, nil
	case KindChain:
		return chainDAG, nil
	default:
		return nil, fmt.Errorf("nursery: unknown kind %q", kind)
	}
}

// CanTransition reports whether moving from `from` to `to` under the
// given kind's DAG is a legal edge.
func CanTransition(kind Kind, from, to Status) (bool, error) {
	dag, err := dagFor(kind)
	if err != nil {
		return false, err
	}
	edges, ok := dag[from]
	if !ok {
		return false, nil
	}
	for _, e := range edges {
		if e == to {
			return true, nil
		}
	}
	return false, nil
}

// IsTerminal reports whether status has no outgoing edges under kind's DAG.
func IsTerminal(kind Kind, status Status) bool {
	dag, err := dagFor(kind)
	if err != nil {
		return false
	}
	edges, ok := dag[status]
	return ok && len(edges) == 0
}
