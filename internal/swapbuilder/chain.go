package swapbuilder

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/klingon-exchange/swapcore/internal/nursery"
	"github.com/klingon-exchange/swapcore/internal/repository"
	"github.com/klingon-exchange/swapcore/internal/swaperrors"
	"github.com/klingon-exchange/swapcore/internal/timeoutdelta"
)

// ChainSwapRequest is a quote request for a chain-to-chain swap.
type ChainSwapRequest struct {
	Pair            string
	Side            OrderSide
	Amount          uint64 // in the sending leg's currency
	PreimageHash    []byte // 32 bytes, chosen by the requester
	ClaimPublicKey  []byte // compressed; user's claim key on the sending leg
	RefundPublicKey []byte // compressed; user's refund key on the receiving leg
	Version         Version
}

// ChainSwapLegResult mirrors one persisted leg for the API response.
type ChainSwapLegResult struct {
	Symbol             string
	LockupAddress      string
	RedeemScript       string
	ExpectedAmount     uint64
	TimeoutBlockHeight uint32
}

// ChainSwapResult is what CreateChainToChainSwap hands back to the caller.
type ChainSwapResult struct {
	ID        string
	Sending   ChainSwapLegResult
	Receiving ChainSwapLegResult
}

// CreateChainToChainSwap implements createChainToChainSwap: it builds both
// legs' lockup scripts, using the shorter timeout on the leg the service
// sends from and the longer timeout on the leg it receives on so the
// service's claim window always closes before the user's refund window
// opens on the same preimage.
func (b *Builder) CreateChainToChainSwap(ctx context.Context, req ChainSwapRequest) (*ChainSwapResult, error) {
	if req.Side != Buy && req.Side != Sell {
		return nil, swaperrors.ErrOrderSideNotFound
	}
	if len(req.PreimageHash) != 32 {
		return nil, fmt.Errorf("%w: must be 32 bytes", swaperrors.ErrInvalidPreimageHash)
	}

	preimageHashHex := hexEncode(req.PreimageHash)
	if _, err := b.repo.GetChainSwapLegByPreimageHash(preimageHashHex, repository.LegSending); err == nil {
		return nil, swaperrors.ErrSwapWithPreimageExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("swapbuilder: check preimage uniqueness: %w", err)
	}

	if err := b.verifyAmount(ctx, req.Pair, req.Side, timeoutdelta.KindChain, req.Amount); err != nil {
		return nil, err
	}

	rate, err := b.rates.Rate(ctx, req.Pair)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", swaperrors.ErrPairNotFound, req.Pair)
	}
	fees, err := b.quoteFees(ctx, req.Pair, "chain", req.Amount)
	if err != nil {
		return nil, err
	}
	expectedAmount := ceilUint64(float64(req.Amount)*rate) + fees.BaseFee + fees.PercentageFee

	sendingSymbol, err := chainSymbolForSide(req.Pair, invertSide(req.Side))
	if err != nil {
		return nil, err
	}
	receivingSymbol, err := chainSymbolForSide(req.Pair, req.Side)
	if err != nil {
		return nil, err
	}

	balance, err := b.wallet.Balance(ctx, sendingSymbol)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: check sending-wallet balance: %w", err)
	}
	if balance <= req.Amount {
		return nil, swaperrors.ErrNotEnoughFunds
	}

	deltas, err := b.timeouts.GetTimeouts(req.Pair)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", swaperrors.ErrPairNotFound, req.Pair)
	}
	sendingDelta, receivingDelta := deltas.Base, deltas.Quote
	if req.Side == Sell {
		sendingDelta, receivingDelta = deltas.Quote, deltas.Base
	}
	// The sending leg (service pays out, user claims) gets the shorter
	// window; the receiving leg (user pays in, service claims) gets the
	// longer one, so the service's claim window always closes before the
	// user's refund window opens, regardless of which side the pair
	// assigns shorter deltas to.
	sendingTimeout := sendingDelta.SwapMinimal
	receivingTimeout := receivingDelta.SwapMaximal
	if sendingTimeout > receivingTimeout {
		sendingTimeout, receivingTimeout = receivingTimeout, sendingTimeout
	}

	chainHeight, err := b.ln.CurrentBlockHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: current block height: %w", err)
	}
	sendingTimeoutHeight := chainHeight + uint32(sendingTimeout)
	receivingTimeoutHeight := chainHeight + uint32(receivingTimeout)

	tradeID, err := generateID()
	if err != nil {
		return nil, err
	}

	refundPubKey, err := parseCompressedPubKey(req.RefundPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: refund public key", swaperrors.ErrInvalidPreimageHash)
	}
	claimPubKey, err := parseCompressedPubKey(req.ClaimPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: claim public key", swaperrors.ErrInvalidPreimageHash)
	}

	sendingKeyIndex, err := b.wallet.NextKeyIndex(ctx, sendingSymbol)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: allocate sending key index: %w", err)
	}
	sendingRefundPubKey, err := b.wallet.PublicKeyAt(ctx, sendingSymbol, sendingKeyIndex)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: derive sending refund key: %w", err)
	}
	receivingKeyIndex, err := b.wallet.NextKeyIndex(ctx, receivingSymbol)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: allocate receiving key index: %w", err)
	}
	receivingClaimPubKey, err := b.wallet.PublicKeyAt(ctx, receivingSymbol, receivingKeyIndex)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: derive receiving claim key: %w", err)
	}

	sendingAddress, sendingScript, err := b.buildLeg(req.Version, req.PreimageHash, claimPubKey, sendingRefundPubKey, sendingTimeoutHeight, sendingSymbol)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: build sending leg: %w", err)
	}
	receivingAddress, receivingScript, err := b.buildLeg(req.Version, req.PreimageHash, receivingClaimPubKey, refundPubKey, receivingTimeoutHeight, receivingSymbol)
	if err != nil {
		return nil, fmt.Errorf("swapbuilder: build receiving leg: %w", err)
	}

	sendingLeg := &repository.ChainSwapLeg{
		TradeID:               tradeID,
		Leg:                   repository.LegSending,
		Pair:                  req.Pair,
		OrderSide:             string(req.Side),
		Version:               string(req.Version),
		Status:                nursery.TransactionWaiting,
		PreimageHash:          preimageHashHex,
		Symbol:                sendingSymbol,
		LockupAddress:         sendingAddress,
		ExpectedAmount:        int64(req.Amount),
		RedeemScript:          sendingScript,
		KeyIndex:              sendingKeyIndex,
		CounterpartyPublicKey: hexEncode(req.ClaimPublicKey),
		TimeoutBlockHeight:    sendingTimeoutHeight,
	}
	receivingLeg := &repository.ChainSwapLeg{
		TradeID:               tradeID,
		Leg:                   repository.LegReceiving,
		Pair:                  req.Pair,
		OrderSide:             string(req.Side),
		Version:               string(req.Version),
		Status:                nursery.TransactionWaiting,
		PreimageHash:          preimageHashHex,
		Symbol:                receivingSymbol,
		LockupAddress:         receivingAddress,
		ExpectedAmount:        int64(expectedAmount),
		RedeemScript:          receivingScript,
		KeyIndex:              receivingKeyIndex,
		CounterpartyPublicKey: hexEncode(req.RefundPublicKey),
		TimeoutBlockHeight:    receivingTimeoutHeight,
	}
	if err := b.repo.SaveChainSwapLeg(sendingLeg); err != nil {
		return nil, fmt.Errorf("swapbuilder: persist sending leg: %w", err)
	}
	if err := b.repo.SaveChainSwapLeg(receivingLeg); err != nil {
		return nil, fmt.Errorf("swapbuilder: persist receiving leg: %w", err)
	}

	return &ChainSwapResult{
		ID: tradeID,
		Sending: ChainSwapLegResult{
			Symbol:             sendingSymbol,
			LockupAddress:      sendingAddress,
			RedeemScript:       sendingScript,
			ExpectedAmount:     req.Amount,
			TimeoutBlockHeight: sendingTimeoutHeight,
		},
		Receiving: ChainSwapLegResult{
			Symbol:             receivingSymbol,
			LockupAddress:      receivingAddress,
			RedeemScript:       receivingScript,
			ExpectedAmount:     expectedAmount,
			TimeoutBlockHeight: receivingTimeoutHeight,
		},
	}, nil
}

func (b *Builder) buildLeg(version Version, secretHash []byte, claimPubKey, refundPubKey *btcec.PublicKey, timeoutBlockHeight uint32, symbol string) (address, redeemScript string, err error) {
	if version == Taproot {
		tree, err := b.scripts.BuildTaproot(claimPubKey, refundPubKey, timeoutBlockHeight, symbol, b.network)
		if err != nil {
			return "", "", err
		}
		address, err := tree.TaprootAddress(symbol, b.network)
		if err != nil {
			return "", "", err
		}
		return address, tree.ControlBlockHex() + tree.RefundScriptHex(), nil
	}

	leg, err := b.scripts.BuildLegacy(secretHash, claimPubKey, refundPubKey, timeoutBlockHeight, symbol, b.network)
	if err != nil {
		return "", "", err
	}
	return leg.Address, leg.ScriptHex(), nil
}
