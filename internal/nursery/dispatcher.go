package nursery

import (
	"context"
	"fmt"
	"sync"

	"github.com/klingon-exchange/swapcore/pkg/logging"
)

// SwapMeta is the slice of a swap record the dispatcher needs to translate
// a raw ledger/Lightning event into a target status.
type SwapMeta struct {
	Status             Status
	ExpectedAmount     int64
	AcceptZeroConf     bool
	TimeoutBlockHeight uint32
	HasLightningSide   bool
}

// Store is the narrow read/write surface the dispatcher needs from the
// repository. It is deliberately not internal/repository itself: the
// repository's swap records carry a Status field, so it must import this
// package's Status type, and this package cannot import it back without a
// cycle. Callers adapt their concrete repository into this interface.
type Store interface {
	LoadMeta(ctx context.Context, kind Kind, swapID string) (*SwapMeta, error)
	ApplyStatus(ctx context.Context, kind Kind, swapID string, status Status) error
}

type transitionRequest struct {
	swapID string
	target Status
}

const queueDepth = 256

// Dispatcher runs one buffered-channel, single-goroutine worker per kind,
// serializing every status transition (and every cooperative co-signing
// callback that acquires the same kind lock) into a per-kind total order.
type Dispatcher struct {
	store Store
	log   *logging.Logger

	locks  map[Kind]*sync.Mutex
	queues map[Kind]chan transitionRequest

	applied   map[Kind]map[transitionRequest]bool
	appliedMu sync.Mutex

	cancel context.CancelFunc
}

// NewDispatcher starts the three per-kind workers (submarine, reverse,
// chain) and returns a ready Dispatcher. Call Stop to shut them down.
func NewDispatcher(store Store) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		store:   store,
		log:     logging.GetDefault().Component("nursery"),
		locks:   make(map[Kind]*sync.Mutex),
		queues:  make(map[Kind]chan transitionRequest),
		applied: make(map[Kind]map[transitionRequest]bool),
		cancel:  cancel,
	}

	for _, kind := range []Kind{KindSubmarine, KindReverse, KindChain} {
		d.locks[kind] = &sync.Mutex{}
		d.queues[kind] = make(chan transitionRequest, queueDepth)
		d.applied[kind] = make(map[transitionRequest]bool)
		go d.run(ctx, kind)
	}

	return d
}

// Stop signals every per-kind worker to exit after draining its current
// item. It does not close the queues, so a late Enqueue is simply dropped
// once the worker has returned.
func (d *Dispatcher) Stop() {
	d.cancel()
}

// WithKindLock runs fn while holding kind's lock, the same lock a status
// transition for that kind acquires before touching the swap record.
// MusigSigner co-sign calls use this to serialize against the dispatcher.
func (d *Dispatcher) WithKindLock(kind Kind, fn func() error) error {
	lock, ok := d.locks[kind]
	if !ok {
		return fmt.Errorf("nursery: unknown kind %q", kind)
	}
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// Enqueue requests that swapID (of the given kind) transition to target.
// The request is processed by that kind's single worker goroutine, in
// submission order relative to other requests for the same kind.
func (d *Dispatcher) Enqueue(kind Kind, swapID string, target Status) error {
	queue, ok := d.queues[kind]
	if !ok {
		return fmt.Errorf("nursery: unknown kind %q", kind)
	}
	queue <- transitionRequest{swapID: swapID, target: target}
	return nil
}

func (d *Dispatcher) run(ctx context.Context, kind Kind) {
	queue := d.queues[kind]
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-queue:
			d.process(ctx, kind, req)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, kind Kind, req transitionRequest) {
	lock := d.locks[kind]
	lock.Lock()
	defer lock.Unlock()

	if d.alreadyApplied(kind, req) {
		return
	}

	meta, err := d.store.LoadMeta(ctx, kind, req.swapID)
	if err != nil {
		d.log.Error("load swap for transition", "kind", kind, "swap", req.swapID, "err", err)
		return
	}

	if meta.Status == req.target {
		d.markApplied(kind, req)
		return
	}

	ok, err := CanTransition(kind, meta.Status, req.target)
	if err != nil {
		d.log.Error("transition check", "kind", kind, "swap", req.swapID, "err", err)
		return
	}
	if !ok {
		d.log.Warn("dropping unreachable transition", "kind", kind, "swap", req.swapID,
			"from", meta.Status, "to", req.target)
		return
	}

	if err := d.store.ApplyStatus(ctx, kind, req.swapID, req.target); err != nil {
		d.log.Error("apply transition", "kind", kind, "swap", req.swapID, "err", err)
		return
	}
	d.markApplied(kind, req)
}

func (d *Dispatcher) alreadyApplied(kind Kind, req transitionRequest) bool {
	d.appliedMu.Lock()
	defer d.appliedMu.Unlock()
	return d.applied[kind][req]
}

func (d *Dispatcher) markApplied(kind Kind, req transitionRequest) {
	d.appliedMu.Lock()
	defer d.appliedMu.Unlock()
	d.applied[kind][req] = true
}

// HandleChainEvent translates a raw ledger observation into a target
// status for the swap's kind and enqueues it, using the
// submarine/reverse/chain transition tables.
func (d *Dispatcher) HandleChainEvent(ctx context.Context, kind Kind, ev ChainEvent) error {
	meta, err := d.store.LoadMeta(ctx, kind, ev.SwapID)
	if err != nil {
		return fmt.Errorf("nursery: load swap for chain event: %w", err)
	}

	target, ok := nextStatusForChainEvent(kind, meta, ev)
	if !ok {
		return nil
	}
	return d.Enqueue(kind, ev.SwapID, target)
}

// HandleLightningEvent translates a raw Lightning observation into a
// target status and enqueues it.
func (d *Dispatcher) HandleLightningEvent(ctx context.Context, kind Kind, ev LightningEvent) error {
	target, ok := nextStatusForLightningEvent(kind, ev)
	if !ok {
		return nil
	}
	return d.Enqueue(kind, ev.SwapID, target)
}

func nextStatusForChainEvent(kind Kind, meta *SwapMeta, ev ChainEvent) (Status, bool) {
	confirmedEnough := ev.Confirmations >= 1 || meta.AcceptZeroConf

	switch kind {
	case KindSubmarine:
		switch meta.Status {
		case SwapCreated, TransactionLockupFailed:
			if ev.MempoolAccepted || ev.Confirmations > 0 {
				if ev.AmountReceived < meta.ExpectedAmount {
					return TransactionLockupFailed, true
				}
				return TransactionMempool, true
			}
		case TransactionMempool:
			if confirmedEnough && ev.Confirmations > 0 {
				return TransactionConfirmed, true
			}
		}
		if meta.TimeoutBlockHeight != 0 && ev.BlockHeight >= meta.TimeoutBlockHeight && !IsTerminal(kind, meta.Status) {
			return SwapExpired, true
		}

	case KindReverse:
		switch meta.Status {
		case SwapCreated:
			if ev.MempoolAccepted || ev.Confirmations > 0 {
				return TransactionMempool, true
			}
		case TransactionMempool:
			if confirmedEnough && ev.Confirmations > 0 {
				return TransactionConfirmed, true
			}
		}
		if meta.TimeoutBlockHeight != 0 && ev.BlockHeight >= meta.TimeoutBlockHeight && !IsTerminal(kind, meta.Status) {
			return SwapExpired, true
		}

	case KindChain:
		switch meta.Status {
		case TransactionWaiting:
			if (ev.MempoolAccepted || ev.Confirmations > 0) && ev.AmountReceived >= meta.ExpectedAmount {
				return TransactionMempool, true
			}
		case TransactionMempool:
			if confirmedEnough && ev.Confirmations > 0 {
				return TransactionConfirmed, true
			}
		}
		if meta.TimeoutBlockHeight != 0 && ev.BlockHeight >= meta.TimeoutBlockHeight && !IsTerminal(kind, meta.Status) {
			return SwapExpired, true
		}
	}

	return "", false
}

func nextStatusForLightningEvent(kind Kind, ev LightningEvent) (Status, bool) {
	if kind != KindSubmarine && kind != KindReverse {
		return "", false
	}

	if ev.Payment == PaymentStateSucceeded && kind == KindSubmarine {
		return InvoicePaid, true
	}
	if ev.Payment == PaymentStateFailed && kind == KindSubmarine {
		return InvoiceFailedToPay, true
	}

	switch ev.Invoice {
	case InvoiceStateAccepted:
		if kind == KindReverse {
			return InvoicePending, true
		}
	case InvoiceStateSettled:
		if kind == KindReverse {
			return InvoiceSettled, true
		}
	case InvoiceStateCancelled:
		return InvoiceExpired, true
	}

	return "", false
}
