package swapservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/klingon-exchange/swapcore/internal/musig"
	"github.com/klingon-exchange/swapcore/internal/nursery"
	"github.com/klingon-exchange/swapcore/internal/repository"
	"github.com/klingon-exchange/swapcore/internal/swapbuilder"
)

// repoStore adapts *repository.Repository into nursery.Store and
// musig.SwapStore, the two narrow interfaces those packages define to
// avoid importing internal/repository themselves (see DESIGN.md). This
// façade is the one place allowed to know about all three record types
// and both consumer interfaces at once.
type repoStore struct {
	repo     *repository.Repository
	settler  InvoiceSettler
	publish  func(kind nursery.Kind, swapID string, status nursery.Status)
}

// LoadMeta implements nursery.Store.
func (s *repoStore) LoadMeta(ctx context.Context, kind nursery.Kind, swapID string) (*nursery.SwapMeta, error) {
	switch kind {
	case nursery.KindSubmarine:
		sw, err := s.repo.GetSubmarineSwap(swapID)
		if err != nil {
			return nil, wrapNotFound(err, swapID)
		}
		return &nursery.SwapMeta{
			Status:             sw.Status,
			ExpectedAmount:     sw.ExpectedAmount,
			AcceptZeroConf:     sw.AcceptZeroConf,
			TimeoutBlockHeight: sw.TimeoutBlockHeight,
			HasLightningSide:   true,
		}, nil

	case nursery.KindReverse:
		sw, err := s.repo.GetReverseSwap(swapID)
		if err != nil {
			return nil, wrapNotFound(err, swapID)
		}
		return &nursery.SwapMeta{
			Status:             sw.Status,
			ExpectedAmount:     sw.OnchainAmount,
			TimeoutBlockHeight: sw.TimeoutBlockHeight,
			HasLightningSide:   true,
		}, nil

	case nursery.KindChain:
		leg, err := s.loadChainLeg(swapID)
		if err != nil {
			return nil, err
		}
		return &nursery.SwapMeta{
			Status:             leg.Status,
			ExpectedAmount:     leg.ExpectedAmount,
			AcceptZeroConf:     leg.AcceptZeroConf,
			TimeoutBlockHeight: leg.TimeoutBlockHeight,
		}, nil

	default:
		return nil, fmt.Errorf("swapservice: unknown kind %q", kind)
	}
}

// ApplyStatus implements nursery.Store.
func (s *repoStore) ApplyStatus(ctx context.Context, kind nursery.Kind, swapID string, status nursery.Status) error {
	switch kind {
	case nursery.KindSubmarine:
		sw, err := s.repo.GetSubmarineSwap(swapID)
		if err != nil {
			return wrapNotFound(err, swapID)
		}
		sw.Status = status
		if err := s.repo.SaveSubmarineSwap(sw); err != nil {
			return fmt.Errorf("swapservice: apply submarine status: %w", err)
		}

	case nursery.KindReverse:
		sw, err := s.repo.GetReverseSwap(swapID)
		if err != nil {
			return wrapNotFound(err, swapID)
		}
		sw.Status = status
		if err := s.repo.SaveReverseSwap(sw); err != nil {
			return fmt.Errorf("swapservice: apply reverse status: %w", err)
		}

	case nursery.KindChain:
		leg, err := s.loadChainLeg(swapID)
		if err != nil {
			return err
		}
		leg.Status = status
		if err := s.repo.SaveChainSwapLeg(leg); err != nil {
			return fmt.Errorf("swapservice: apply chain leg status: %w", err)
		}

	default:
		return fmt.Errorf("swapservice: unknown kind %q", kind)
	}

	if s.publish != nil {
		s.publish(kind, swapID, status)
	}
	return nil
}

func (s *repoStore) loadChainLeg(swapID string) (*repository.ChainSwapLeg, error) {
	tradeID, leg, ok := splitChainLegSwapID(swapID)
	if !ok {
		return nil, unknownSwapIDError(swapID)
	}
	legs, err := s.repo.GetChainSwapLegs(tradeID)
	if err != nil {
		return nil, wrapNotFound(err, swapID)
	}
	for _, l := range legs {
		if l.Leg == leg {
			return l, nil
		}
	}
	return nil, unknownSwapIDError(swapID)
}

func wrapNotFound(err error, swapID string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return unknownSwapIDError(swapID)
	}
	return fmt.Errorf("swapservice: %w", err)
}

// LoadSubmarineOrChain implements musig.SwapStore.
func (s *repoStore) LoadSubmarineOrChain(ctx context.Context, swapID string) (*musig.SubmarineOrChainSwap, error) {
	if tradeID, leg, ok := splitChainLegSwapID(swapID); ok {
		legs, err := s.repo.GetChainSwapLegs(tradeID)
		if err != nil {
			return nil, wrapNotFound(err, swapID)
		}
		for _, l := range legs {
			if l.Leg != leg {
				continue
			}
			counterparty, err := parsePubKeyHex(l.CounterpartyPublicKey)
			if err != nil {
				return nil, err
			}
			return &musig.SubmarineOrChainSwap{
				ID:                 swapID,
				Symbol:             l.Symbol,
				Version:            swapbuilder.Version(l.Version),
				Status:             l.Status,
				RefundPublicKey:    counterparty,
				KeyIndex:           l.KeyIndex,
				TimeoutBlockHeight: l.TimeoutBlockHeight,
			}, nil
		}
		return nil, unknownSwapIDError(swapID)
	}

	sw, err := s.repo.GetSubmarineSwap(swapID)
	if err != nil {
		return nil, wrapNotFound(err, swapID)
	}
	refundPubKey, err := parsePubKeyHex(sw.RefundPublicKey)
	if err != nil {
		return nil, err
	}
	symbol, err := swapbuilder.ChainSymbolForSide(sw.Pair, swapbuilder.OrderSide(sw.OrderSide))
	if err != nil {
		return nil, fmt.Errorf("swapservice: %w", err)
	}
	return &musig.SubmarineOrChainSwap{
		ID:                 sw.ID,
		Symbol:             symbol,
		Version:            swapbuilder.Version(sw.Version),
		Status:             sw.Status,
		RefundPublicKey:    refundPubKey,
		KeyIndex:           sw.KeyIndex,
		TimeoutBlockHeight: sw.TimeoutBlockHeight,
		Invoice:            sw.Invoice,
	}, nil
}

// LoadReverseForClaim implements musig.SwapStore.
func (s *repoStore) LoadReverseForClaim(ctx context.Context, swapID string) (*musig.ReverseSwapForClaim, error) {
	sw, err := s.repo.GetReverseSwap(swapID)
	if err != nil {
		return nil, wrapNotFound(err, swapID)
	}
	claimPubKey, err := parsePubKeyHex(sw.ClaimPublicKey)
	if err != nil {
		return nil, err
	}
	var preimageHash [32]byte
	if err := decodeHash(sw.PreimageHash, preimageHash[:]); err != nil {
		return nil, err
	}
	return &musig.ReverseSwapForClaim{
		ID:             sw.ID,
		Version:        swapbuilder.Version(sw.Version),
		Status:         sw.Status,
		PreimageHash:   preimageHash,
		ClaimPublicKey: claimPubKey,
		KeyIndex:       sw.KeyIndex,
		Invoice:        sw.Invoice,
	}, nil
}

// PersistPreimage implements musig.SwapStore.
func (s *repoStore) PersistPreimage(ctx context.Context, swapID string, preimage []byte) error {
	preimageHex := hexEncode(preimage)

	if tradeID, leg, ok := splitChainLegSwapID(swapID); ok {
		legs, err := s.repo.GetChainSwapLegs(tradeID)
		if err != nil {
			return wrapNotFound(err, swapID)
		}
		for _, l := range legs {
			if l.Leg == leg {
				l.Preimage = preimageHex
				return s.repo.SaveChainSwapLeg(l)
			}
		}
		return unknownSwapIDError(swapID)
	}

	if sw, err := s.repo.GetSubmarineSwap(swapID); err == nil {
		sw.Preimage = preimageHex
		return s.repo.SaveSubmarineSwap(sw)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("swapservice: %w", err)
	}

	sw, err := s.repo.GetReverseSwap(swapID)
	if err != nil {
		return wrapNotFound(err, swapID)
	}
	sw.Preimage = preimageHex
	return s.repo.SaveReverseSwap(sw)
}

// SettleInvoice implements musig.SwapStore, delegating to the external
// Lightning node that actually holds the invoice; this core never talks
// to a node directly.
func (s *repoStore) SettleInvoice(ctx context.Context, invoice string, preimage []byte) error {
	if s.settler == nil {
		return fmt.Errorf("swapservice: no invoice settler configured")
	}
	return s.settler.SettleInvoice(ctx, invoice, preimage)
}

func parsePubKeyHex(h string) (*btcec.PublicKey, error) {
	b, err := hexDecode(h)
	if err != nil {
		return nil, fmt.Errorf("swapservice: decode public key: %w", err)
	}
	return btcec.ParsePubKey(b)
}
