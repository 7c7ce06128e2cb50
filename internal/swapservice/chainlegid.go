package swapservice

import (
	"fmt"
	"strings"
)

// chainLegSeparator joins a chain swap's trade id and leg name into the
// single swapID string internal/nursery and internal/musig address a
// record by. Neither package knows about two-row chain swaps, so the
// façade is where that encoding lives.
const chainLegSeparator = "#"

// ChainLegSwapID builds the dispatcher/signer-facing swap id for one leg
// of a chain-to-chain swap.
func ChainLegSwapID(tradeID, leg string) string {
	return tradeID + chainLegSeparator + leg
}

// splitChainLegSwapID reverses ChainLegSwapID, reporting ok=false if id
// was not built by it (e.g. it is a plain submarine/reverse swap id).
func splitChainLegSwapID(id string) (tradeID, leg string, ok bool) {
	tradeID, leg, found := strings.Cut(id, chainLegSeparator)
	if !found || tradeID == "" || leg == "" {
		return "", "", false
	}
	return tradeID, leg, true
}

func unknownSwapIDError(id string) error {
	return fmt.Errorf("%w: %s", ErrSwapNotFound, id)
}
