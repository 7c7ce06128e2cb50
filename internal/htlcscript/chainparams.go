package htlcscript

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/klingon-exchange/swapcore/internal/chain"
)

// btcdParams builds a chaincfg.Params from this package's chain registry so
// btcutil's address encoders work for every UTXO currency we support,
// including ones (Liquid) btcd has no built-in definition for.
func btcdParams(symbol string, network chain.Network) (*chaincfg.Params, error) {
	p, ok := chain.Get(symbol, network)
	if !ok {
		return nil, fmt.Errorf("htlcscript: unsupported currency %s/%s", symbol, network)
	}
	if p.Type != chain.ChainTypeBitcoin {
		return nil, fmt.Errorf("htlcscript: %s is not a UTXO currency", symbol)
	}

	return &chaincfg.Params{
		Name:             string(network),
		PubKeyHashAddrID: p.PubKeyHashAddrID,
		ScriptHashAddrID: p.ScriptHashAddrID,
		Bech32HRPSegwit:  p.Bech32HRP,
	}, nil
}
