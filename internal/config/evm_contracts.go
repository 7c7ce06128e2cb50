package config

import "github.com/ethereum/go-ethereum/common"

// EVMContractAddresses holds the HTLC contract address used to namespace a
// chain swap's EVM-leg swap-id descriptor for a given chain ID.
type EVMContractAddresses struct {
	HTLCContract common.Address
}

var evmContractRegistry = map[uint64]*EVMContractAddresses{
	// Ethereum Mainnet
	1: {
		HTLCContract: common.HexToAddress("0x628c677e7b8889e64564d3f381565a9e6656aade"),
	},
	// Ethereum Sepolia
	11155111: {
		HTLCContract: common.HexToAddress("0x628c677e7b8889e64564d3f381565a9e6656aade"),
	},
}

// EVMContractsFor returns the HTLC contract address registered for chainID.
func EVMContractsFor(chainID uint64) (*EVMContractAddresses, bool) {
	addrs, ok := evmContractRegistry[chainID]
	return addrs, ok
}
