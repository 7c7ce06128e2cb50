package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// TimeoutDelta holds, in wall-clock minutes, the three timeout windows a
// pair's timeout-delta provider needs: the service's own reverse-swap
// lockup window, and the minimal/maximal windows offered to the user's
// side of a submarine or chain swap.
type TimeoutDelta struct {
	Reverse     int `toml:"reverse"`
	SwapMinimal int `toml:"swapMinimal"`
	SwapMaximal int `toml:"swapMaximal"`
}

// UnmarshalTOML accepts either a bare integer (legacy shorthand: all three
// windows equal) or a table with the three keys explicitly set.
func (d *TimeoutDelta) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case int64:
		d.Reverse = int(v)
		d.SwapMinimal = int(v)
		d.SwapMaximal = int(v)
		return nil
	case float64:
		d.Reverse = int(v)
		d.SwapMinimal = int(v)
		d.SwapMaximal = int(v)
		return nil
	case map[string]interface{}:
		if reverse, ok := v["reverse"]; ok {
			d.Reverse = toInt(reverse)
		}
		if minimal, ok := v["swapMinimal"]; ok {
			d.SwapMinimal = toInt(minimal)
		}
		if maximal, ok := v["swapMaximal"]; ok {
			d.SwapMaximal = toInt(maximal)
		}
		return nil
	default:
		return fmt.Errorf("timeoutDelta: unsupported TOML representation %T", data)
	}
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// PairConfig describes one trading pair's rate, fee and timeout windows.
type PairConfig struct {
	Base         string       `toml:"base"`
	Quote        string       `toml:"quote"`
	Rate         float64      `toml:"rate,omitempty"`
	Fee          float64      `toml:"fee"`
	TimeoutDelta TimeoutDelta `toml:"timeoutDelta"`
}

// Symbol returns the pair identifier used throughout the swap core, e.g.
// "BTC/BTC".
func (p PairConfig) Symbol() string {
	return p.Base + "/" + p.Quote
}

// PairsFile is the top-level TOML document holding all configured pairs.
type PairsFile struct {
	Pairs []PairConfig `toml:"pairs"`
}

// LoadPairsFile reads and parses a TOML pairs file.
func LoadPairsFile(path string) (*PairsFile, error) {
	var pf PairsFile
	if _, err := toml.DecodeFile(path, &pf); err != nil {
		return nil, fmt.Errorf("decode pairs file %s: %w", path, err)
	}
	return &pf, nil
}

// Save rewrites the pairs file atomically: encode to a temp file in the
// same directory, then rename over the target, so a concurrent reader never
// observes a partially written file.
func (pf *PairsFile) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pairs-*.toml")
	if err != nil {
		return fmt.Errorf("create temp pairs file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := toml.NewEncoder(tmp).Encode(pf); err != nil {
		tmp.Close()
		return fmt.Errorf("encode pairs file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp pairs file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp pairs file: %w", err)
	}
	return nil
}

// Find returns the PairConfig for a given pair symbol, if configured.
func (pf *PairsFile) Find(symbol string) (PairConfig, bool) {
	for _, p := range pf.Pairs {
		if p.Symbol() == symbol {
			return p, true
		}
	}
	return PairConfig{}, false
}

// Set replaces (or appends) the PairConfig for a pair, preserving the order
// and contents of every other entry.
func (pf *PairsFile) Set(updated PairConfig) {
	for i, p := range pf.Pairs {
		if p.Symbol() == updated.Symbol() {
			pf.Pairs[i] = updated
			return
		}
	}
	pf.Pairs = append(pf.Pairs, updated)
}
