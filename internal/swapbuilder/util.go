package swapbuilder

import (
	"encoding/hex"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcec/v2"
)

func ceilUint64(f float64) uint64 {
	return uint64(math.Ceil(f))
}

func hexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func parseCompressedPubKey(b []byte) (*btcec.PublicKey, error) {
	if len(b) != 33 {
		return nil, fmt.Errorf("swapbuilder: public key must be 33 bytes, got %d", len(b))
	}
	return btcec.ParsePubKey(b)
}
