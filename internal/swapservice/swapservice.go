// Package swapservice is the SwapService façade: it orchestrates the
// timeout-delta provider, swap builder, swap nursery and MuSig2 signer
// behind one API. It is also the one package allowed to import
// internal/repository alongside internal/nursery and internal/musig,
// since it supplies the concrete adapter (store.go) wiring the
// repository's three record types into those packages' narrow Store
// interfaces without an import cycle.
package swapservice

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"

	"github.com/klingon-exchange/swapcore/internal/blocktime"
	"github.com/klingon-exchange/swapcore/internal/chain"
	"github.com/klingon-exchange/swapcore/internal/eventbus"
	"github.com/klingon-exchange/swapcore/internal/lightning"
	"github.com/klingon-exchange/swapcore/internal/musig"
	"github.com/klingon-exchange/swapcore/internal/nursery"
	"github.com/klingon-exchange/swapcore/internal/rates"
	"github.com/klingon-exchange/swapcore/internal/repository"
	"github.com/klingon-exchange/swapcore/internal/swapbuilder"
	"github.com/klingon-exchange/swapcore/internal/timeoutdelta"
	"github.com/klingon-exchange/swapcore/pkg/logging"
)

// Config wires every collaborator the façade needs. Scripts/Wallet/
// Broadcaster/Invoices/Settler/LnClients/ClnClients/WalletKeys are the
// external-collaborator interfaces this core's boundary stops at; a
// caller building a production swapd supplies real implementations, and
// the module's own tests supply fakes.
type Config struct {
	Repository        *repository.Repository
	Rates             rates.RateProvider
	Fees              rates.FeeEstimator
	Scripts           swapbuilder.ScriptFactory
	Wallet            swapbuilder.WalletHandle
	WalletKeys        musig.WalletKeys
	Broadcaster       swapbuilder.Broadcaster
	Invoices          swapbuilder.InvoiceIssuer
	Settler           InvoiceSettler
	LnClient          lightning.Client
	LnClients         map[string]lightning.Client
	ClnClients        map[string]lightning.ClnClient
	LnSymbol          string
	PairsPath         string
	BlockTimes        *blocktime.Table
	Network           chain.Network
	AllowReverseSwaps bool
}

// Service is the SwapService façade.
type Service struct {
	repo       *repository.Repository
	timeouts   *timeoutdelta.Provider
	builder    *swapbuilder.Builder
	dispatcher *nursery.Dispatcher
	signer     *musig.Signer
	bus        *eventbus.Bus
	log        *logging.Logger
}

// New builds a Service from cfg. It starts the nursery's per-kind
// dispatcher workers immediately; call Close to stop them.
func New(cfg Config) (*Service, error) {
	timeouts, err := timeoutdelta.New(timeoutdelta.Config{
		BlockTimes: cfg.BlockTimes,
		LnClient:   cfg.LnClient,
		LnSymbol:   cfg.LnSymbol,
		PairsPath:  cfg.PairsPath,
	})
	if err != nil {
		return nil, fmt.Errorf("swapservice: build timeout-delta provider: %w", err)
	}

	builder := swapbuilder.New(swapbuilder.Config{
		Repository:        cfg.Repository,
		Timeouts:          timeouts,
		Rates:             cfg.Rates,
		Fees:              cfg.Fees,
		Scripts:           cfg.Scripts,
		Wallet:            cfg.Wallet,
		Broadcaster:       cfg.Broadcaster,
		Invoices:          cfg.Invoices,
		LnClient:          cfg.LnClient,
		Network:           cfg.Network,
		AllowReverseSwaps: cfg.AllowReverseSwaps,
	})

	bus := eventbus.New()

	store := &repoStore{repo: cfg.Repository, settler: cfg.Settler}
	dispatcher := nursery.NewDispatcher(store)
	store.publish = func(kind nursery.Kind, swapID string, status nursery.Status) {
		bus.Publish(eventbus.StatusEvent{SwapID: swapID, Kind: kind, Status: status, Timestamp: time.Now()})
	}

	signer := musig.New(musig.Config{
		Store:      store,
		Wallet:     cfg.WalletKeys,
		LnClients:  cfg.LnClients,
		ClnClients: cfg.ClnClients,
	})

	return &Service{
		repo:       cfg.Repository,
		timeouts:   timeouts,
		builder:    builder,
		dispatcher: dispatcher,
		signer:     signer,
		bus:        bus,
		log:        logging.GetDefault().Component("swapservice"),
	}, nil
}

// Close stops the nursery's dispatcher workers and closes the event bus.
// It does not close the repository, since the façade did not open it.
func (s *Service) Close() {
	s.dispatcher.Stop()
	s.bus.Close()
}

// CreateSwap creates a submarine (chain-to-Lightning) swap.
func (s *Service) CreateSwap(ctx context.Context, req swapbuilder.SubmarineSwapRequest) (*swapbuilder.SubmarineSwapResult, error) {
	return s.builder.CreateSwap(ctx, req)
}

// CreateReverseSwap creates a reverse (Lightning-to-chain) swap.
func (s *Service) CreateReverseSwap(ctx context.Context, req swapbuilder.ReverseSwapRequest) (*swapbuilder.ReverseSwapResult, error) {
	return s.builder.CreateReverseSwap(ctx, req)
}

// CreateChainToChainSwap creates a chain-to-chain swap.
func (s *Service) CreateChainToChainSwap(ctx context.Context, req swapbuilder.ChainSwapRequest) (*swapbuilder.ChainSwapResult, error) {
	return s.builder.CreateChainToChainSwap(ctx, req)
}

// GetTimeouts returns pair's per-side timeout windows in blocks.
func (s *Service) GetTimeouts(pair string) (timeoutdelta.Deltas, error) {
	return s.timeouts.GetTimeouts(pair)
}

// HandleChainEvent feeds a ledger observation for a submarine/reverse
// swap id into the nursery.
func (s *Service) HandleChainEvent(ctx context.Context, kind nursery.Kind, ev nursery.ChainEvent) error {
	return s.dispatcher.HandleChainEvent(ctx, kind, ev)
}

// HandleChainLegEvent feeds a ledger observation for one leg of a chain
// swap into the nursery, using the (tradeID, leg) pair rather than a
// plain swap id.
func (s *Service) HandleChainLegEvent(ctx context.Context, tradeID, leg string, ev nursery.ChainEvent) error {
	ev.SwapID = ChainLegSwapID(tradeID, leg)
	return s.dispatcher.HandleChainEvent(ctx, nursery.KindChain, ev)
}

// HandleLightningEvent feeds a Lightning-side observation into the
// nursery.
func (s *Service) HandleLightningEvent(ctx context.Context, kind nursery.Kind, ev nursery.LightningEvent) error {
	return s.dispatcher.HandleLightningEvent(ctx, kind, ev)
}

// SignRefund produces a cooperative refund partial signature for an
// expired submarine swap or one leg of a chain swap. It runs under the
// swap's kind lock, the same lock the dispatcher holds while applying a
// status transition, so a concurrent chain event can never race the
// signer's load-sign-persist sequence against the same record.
func (s *Service) SignRefund(ctx context.Context, swapID string, theirPubKey *btcec.PublicKey, theirNonce [musig2.PubNonceSize]byte, sighash []byte, inputIndex int) (*musig.CoSignResult, error) {
	kind := nursery.KindSubmarine
	if _, _, ok := splitChainLegSwapID(swapID); ok {
		kind = nursery.KindChain
	}

	var result *musig.CoSignResult
	err := s.dispatcher.WithKindLock(kind, func() error {
		var signErr error
		result, signErr = s.signer.SignRefund(ctx, swapID, theirPubKey, theirNonce, sighash, inputIndex)
		return signErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SignReverseSwapClaim produces a cooperative claim partial signature for
// a settled reverse swap, under the same per-kind lock HandleChainEvent/
// HandleLightningEvent use for that swap's status transitions.
func (s *Service) SignReverseSwapClaim(ctx context.Context, swapID string, preimage []byte, theirPubKey *btcec.PublicKey, theirNonce [musig2.PubNonceSize]byte, sighash []byte, inputIndex int) (*musig.CoSignResult, error) {
	var result *musig.CoSignResult
	err := s.dispatcher.WithKindLock(nursery.KindReverse, func() error {
		var signErr error
		result, signErr = s.signer.SignReverseSwapClaim(ctx, swapID, preimage, theirPubKey, theirNonce, sighash, inputIndex)
		return signErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Subscribe registers a new StatusEvent subscriber. See
// internal/eventbus.Bus.Subscribe.
func (s *Service) Subscribe() (<-chan eventbus.StatusEvent, func()) {
	return s.bus.Subscribe()
}

// WithKindLock runs fn while holding kind's dispatcher lock, letting an
// external caller serialize a read-modify-write against the same lock
// the dispatcher and signer use.
func (s *Service) WithKindLock(kind nursery.Kind, fn func() error) error {
	return s.dispatcher.WithKindLock(kind, fn)
}
