package rates

import (
	"context"
	"fmt"
	"sync"
)

// StaticPairConfig is one pair's reference-implementation configuration.
type StaticPairConfig struct {
	Rate               float64
	BaseFee            uint64
	PercentageFee      func(amount uint64) uint64 // nil means 0
	SubmarineLimits    Limits
	ReverseLimits      Limits
	ChainLimits        Limits
	ZeroConfThresholds map[string]uint64 // symbol -> max accepted zero-conf amount
}

// Static is an in-memory FeeEstimator and RateProvider, suitable as a
// fake in the swap core's own tests and as a starting reference
// implementation for a real pricing service.
type Static struct {
	mu            sync.RWMutex
	pairs         map[string]StaticPairConfig
	minerFeeBySym map[string]uint64
}

// NewStatic builds a Static reference provider from a set of pair configs
// keyed by pair symbol (e.g. "BTC/BTC").
func NewStatic(pairs map[string]StaticPairConfig) *Static {
	return &Static{
		pairs:         pairs,
		minerFeeBySym: make(map[string]uint64),
	}
}

// SetMinerFee overrides the miner fee estimate returned for symbol.
func (s *Static) SetMinerFee(symbol string, sats uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minerFeeBySym[symbol] = sats
}

func (s *Static) config(pair string) (StaticPairConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.pairs[pair]
	if !ok {
		return StaticPairConfig{}, fmt.Errorf("rates: pair %q not found", pair)
	}
	return cfg, nil
}

func (s *Static) EstimateFees(_ context.Context, pair, kind string, amount uint64) (Fees, error) {
	cfg, err := s.config(pair)
	if err != nil {
		return Fees{}, err
	}
	pct := uint64(0)
	if cfg.PercentageFee != nil {
		pct = cfg.PercentageFee(amount)
	}
	return Fees{BaseFee: cfg.BaseFee, PercentageFee: pct}, nil
}

func (s *Static) MinerFeeEstimate(_ context.Context, symbol string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if fee, ok := s.minerFeeBySym[symbol]; ok {
		return fee, nil
	}
	return 0, nil
}

func (s *Static) Rate(_ context.Context, pair string) (float64, error) {
	cfg, err := s.config(pair)
	if err != nil {
		return 0, err
	}
	return cfg.Rate, nil
}

func (s *Static) Limits(_ context.Context, pair, kind string) (Limits, error) {
	cfg, err := s.config(pair)
	if err != nil {
		return Limits{}, err
	}
	switch kind {
	case "reverse":
		return cfg.ReverseLimits, nil
	case "chain":
		return cfg.ChainLimits, nil
	default:
		return cfg.SubmarineLimits, nil
	}
}

func (s *Static) AcceptZeroConf(_ context.Context, symbol string, amount uint64) (bool, error) {
	cfg, ok := func() (StaticPairConfig, bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for _, c := range s.pairs {
			if _, ok := c.ZeroConfThresholds[symbol]; ok {
				return c, true
			}
		}
		return StaticPairConfig{}, false
	}()
	if !ok {
		return false, nil
	}
	return amount <= cfg.ZeroConfThresholds[symbol], nil
}
