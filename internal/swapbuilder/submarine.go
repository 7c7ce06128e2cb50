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

// SubmarineSwapRequest is a quote request for a chain-to-Lightning swap.
type SubmarineSwapRequest struct {
	Pair            string
	Side            OrderSide
	Invoice         string
	RefundPublicKey []byte // compressed, 33 bytes
	Version         Version
}

// SubmarineSwapResult is what CreateSwap hands back to the API caller.
type SubmarineSwapResult struct {
	ID                 string
	Address            string
	RedeemScript       string
	AcceptZeroConf     bool
	ExpectedAmount     uint64
	TimeoutBlockHeight uint32
	BIP21              string
}

// CreateSwap implements createSwap: validates the request, builds the
// lockup script, and persists a new submarine swap with status
// SwapCreated.
func (b *Builder) CreateSwap(ctx context.Context, req SubmarineSwapRequest) (*SubmarineSwapResult, error) {
	if req.Side != Buy && req.Side != Sell {
		return nil, swaperrors.ErrOrderSideNotFound
	}

	existing, err := b.repo.GetSubmarineSwapByInvoice(req.Invoice)
	if err == nil && existing != nil {
		return nil, swaperrors.ErrSwapWithInvoiceExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("swapbuilder: check invoice uniqueness: %w", err)
	}

	decoded, err := b.ln.DecodeInvoice(ctx, req.Invoice)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: decode invoice: %w", err)
	}
	invoiceAmount := decoded.AmountMsat / 1000

	if err := b.verifyAmount(ctx, req.Pair, req.Side, timeoutdelta.KindSubmarine, invoiceAmount); err != nil {
		return nil, err
	}

	rate, err := b.rates.Rate(ctx, req.Pair)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", swaperrors.ErrPairNotFound, req.Pair)
	}
	fees, err := b.quoteFees(ctx, req.Pair, "submarine", invoiceAmount)
	if err != nil {
		return nil, err
	}
	expectedAmount := ceilUint64(float64(invoiceAmount)*rate) + fees.BaseFee + fees.PercentageFee

	symbol, err := chainSymbolForSide(req.Pair, req.Side)
	if err != nil {
		return nil, err
	}
	acceptZeroConf, err := b.rates.AcceptZeroConf(ctx, symbol, expectedAmount)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: accept zero conf: %w", err)
	}

	timeoutBlocks, _, err := b.timeouts.GetTimeout(ctx, req.Pair, toTimeoutSide(req.Side), timeoutdelta.KindSubmarine, decoded)
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
	refundPubKey, err := parseCompressedPubKey(req.RefundPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: refund public key", swaperrors.ErrInvalidPreimageHash)
	}
	claimPubKey, err := b.wallet.PublicKeyAt(ctx, symbol, keyIndex)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: derive claim key: %w", err)
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
		leg, err := b.scripts.BuildLegacy(decoded.PaymentHash[:], claimPubKey, refundPubKey, timeoutBlockHeight, symbol, b.network)
		if err != nil {
			return nil, fmt.Errorf("swapbuilder: build legacy leg: %w", err)
		}
		address = leg.Address
		redeemScript = leg.ScriptHex()
	}

	swap := &repository.SubmarineSwap{
		ID:                 id,
		Pair:               req.Pair,
		OrderSide:          string(req.Side),
		Version:            string(req.Version),
		Status:             nursery.SwapCreated,
		PreimageHash:       hexEncode(decoded.PaymentHash[:]),
		Invoice:            req.Invoice,
		InvoiceAmount:      int64(invoiceAmount),
		ExpectedAmount:     int64(expectedAmount),
		AcceptZeroConf:     acceptZeroConf,
		LockupAddress:      address,
		RedeemScript:       redeemScript,
		KeyIndex:           keyIndex,
		RefundPublicKey:    hexEncode(req.RefundPublicKey),
		TimeoutBlockHeight: timeoutBlockHeight,
	}
	if err := b.repo.SaveSubmarineSwap(swap); err != nil {
		return nil, fmt.Errorf("swapbuilder: persist swap: %w", err)
	}

	return &SubmarineSwapResult{
		ID:                 id,
		Address:            address,
		RedeemScript:       redeemScript,
		AcceptZeroConf:     acceptZeroConf,
		ExpectedAmount:     expectedAmount,
		TimeoutBlockHeight: timeoutBlockHeight,
		BIP21:              bip21URI(address, expectedAmount, "submarine swap"),
	}, nil
}

func toTimeoutSide(side OrderSide) timeoutdelta.Side {
	if side == Sell {
		return timeoutdelta.Sell
	}
	return timeoutdelta.Buy
}
