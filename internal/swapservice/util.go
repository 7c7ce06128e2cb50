package swapservice

import (
	"encoding/hex"
	"fmt"
)

func hexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func hexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

// decodeHash hex-decodes s into dst, requiring an exact length match.
func decodeHash(s string, dst []byte) error {
	b, err := hexDecode(s)
	if err != nil {
		return fmt.Errorf("swapservice: decode hash: %w", err)
	}
	if len(b) != len(dst) {
		return fmt.Errorf("swapservice: hash must be %d bytes, got %d", len(dst), len(b))
	}
	copy(dst, b)
	return nil
}
