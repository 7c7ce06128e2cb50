package swapbuilder

import (
	"context"
	"errors"
	"fmt"

	"github.com/klingon-exchange/swapcore/internal/nursery"
	"github.com/klingon-exchange/swapcore/internal/repository"
	"github.com/klingon-exchange/swapcore/internal/swaperrors"
	"github.com/klingon-exchange/swapcore/internal/timeoutdelta"
)

// ReverseSwapRequest is a quote request for a Lightning-to-chain swap.
type ReverseSwapRequest struct {
	Pair           string
	Side           OrderSide
	PreimageHash   []byte // 32 bytes, chosen by the requester
	ClaimPublicKey []byte // compressed, 33 bytes
	OnchainAmount  uint64 // not read; CreateReverseSwap always derives the payout from InvoiceAmount
	InvoiceAmount  uint64 // in satoshis; the service's invoice requests InvoiceAmount*1000 msat
	Version        Version
}

// ReverseSwapResult is what CreateReverseSwap hands back to the API caller.
type ReverseSwapResult struct {
	ID                 string
	Invoice            string
	LockupAddress      string
	RedeemScript       string
	OnchainAmount      uint64
	TimeoutBlockHeight uint32
}

// CreateReverseSwap implements createReverseSwap: it derives the onchain
// payout from the requested Lightning amount, funds the lockup leg via the
// broadcaster, and persists the swap with status TransactionMempool.
func (b *Builder) CreateReverseSwap(ctx context.Context, req ReverseSwapRequest) (*ReverseSwapResult, error) {
	if !b.allowReverseSwaps {
		return nil, swaperrors.ErrReverseSwapsDisabled
	}
	if req.Side != Buy && req.Side != Sell {
		return nil, swaperrors.ErrOrderSideNotFound
	}
	if len(req.PreimageHash) != 32 {
		return nil, fmt.Errorf("%w: must be 32 bytes", swaperrors.ErrInvalidPreimageHash)
	}

	preimageHashHex := hexEncode(req.PreimageHash)
	existing, err := b.repo.GetReverseSwapByPreimageHash(preimageHashHex)
	if err == nil && existing != nil {
		return nil, swaperrors.ErrSwapWithPreimageExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("swapbuilder: check preimage uniqueness: %w", err)
	}

	if err := b.verifyAmount(ctx, req.Pair, req.Side, timeoutdelta.KindReverse, req.InvoiceAmount); err != nil {
		return nil, err
	}

	rate, err := b.rates.Rate(ctx, req.Pair)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", swaperrors.ErrPairNotFound, req.Pair)
	}
	fees, err := b.quoteFees(ctx, req.Pair, "reverse", req.InvoiceAmount)
	if err != nil {
		return nil, err
	}

	onchainFloat := float64(req.InvoiceAmount) * rate
	totalFees := fees.BaseFee + fees.PercentageFee
	if uint64(onchainFloat) <= totalFees {
		return nil, swaperrors.ErrOnchainAmountTooLow
	}
	onchainAmount := floorUint64(onchainFloat) - totalFees
	if onchainAmount < 1 {
		return nil, swaperrors.ErrOnchainAmountTooLow
	}

	symbol, err := chainSymbolForSide(req.Pair, invertSide(req.Side))
	if err != nil {
		return nil, err
	}

	timeoutBlocks, _, err := b.timeouts.GetTimeout(ctx, req.Pair, toTimeoutSide(req.Side), timeoutdelta.KindReverse, nil)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: compute timeout: %w", err)
	}
	chainHeight, err := b.ln.CurrentBlockHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: current block height: %w", err)
	}
	timeoutBlockHeight := chainHeight + uint32(timeoutBlocks)

	id, err := generateID()
	if err != nil {
		return nil, err
	}
	keyIndex, err := b.wallet.NextKeyIndex(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: allocate key index: %w", err)
	}
	claimPubKey, err := parseCompressedPubKey(req.ClaimPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: claim public key", swaperrors.ErrInvalidPreimageHash)
	}
	refundPubKey, err := b.wallet.PublicKeyAt(ctx, symbol, keyIndex)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: derive refund key: %w", err)
	}

	var address, redeemScript string
	if req.Version == Taproot {
		tree, err := b.scripts.BuildTaproot(claimPubKey, refundPubKey, timeoutBlockHeight, symbol, b.network)
		if err != nil {
			return nil, fmt.Errorf("swapbuilder: build taproot leg: %w", err)
		}
		address, err = tree.TaprootAddress(symbol, b.network)
		if err != nil {
			return nil, fmt.Errorf("swapbuilder: derive taproot address: %w", err)
		}
		redeemScript = tree.ControlBlockHex() + tree.RefundScriptHex()
	} else {
		leg, err := b.scripts.BuildLegacy(req.PreimageHash, claimPubKey, refundPubKey, timeoutBlockHeight, symbol, b.network)
		if err != nil {
			return nil, fmt.Errorf("swapbuilder: build legacy leg: %w", err)
		}
		address = leg.Address
		redeemScript = leg.ScriptHex()
	}

	var preimageHash [32]byte
	copy(preimageHash[:], req.PreimageHash)
	invoice, err := b.invoices.CreateInvoice(ctx, req.InvoiceAmount*1000, preimageHash, "reverse swap "+id)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: create invoice: %w", err)
	}

	txID, minerFee, err := b.broadcaster.BroadcastLockup(ctx, symbol, address, onchainAmount)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: fund lockup: %w", err)
	}

	swap := &repository.ReverseSwap{
		ID:                 id,
		Pair:               req.Pair,
		OrderSide:          string(req.Side),
		Version:            string(req.Version),
		Status:             nursery.TransactionMempool,
		Fee:                int64(totalFees),
		PreimageHash:       preimageHashHex,
		Invoice:            invoice,
		OnchainAmount:      int64(onchainAmount),
		MinerFee:           int64(minerFee),
		ClaimPublicKey:     hexEncode(req.ClaimPublicKey),
		LockupAddress:      address,
		RedeemScript:       redeemScript,
		KeyIndex:           keyIndex,
		TransactionID:      txID,
		TimeoutBlockHeight: timeoutBlockHeight,
	}
	if err := b.repo.SaveReverseSwap(swap); err != nil {
		return nil, fmt.Errorf("swapbuilder: persist swap: %w", err)
	}

	return &ReverseSwapResult{
		ID:                 id,
		Invoice:            invoice,
		LockupAddress:      address,
		RedeemScript:       redeemScript,
		OnchainAmount:      onchainAmount,
		TimeoutBlockHeight: timeoutBlockHeight,
	}, nil
}

func floorUint64(f float64) uint64 {
	if f < 0 {
		return 0
	}
	return uint64(f)
}

func invertSide(side OrderSide) OrderSide {
	if side == Buy {
		return Sell
	}
	return Buy
}
