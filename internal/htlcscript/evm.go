package htlcscript

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/klingon-exchange/swapcore/internal/config"
)

// EVMDescriptor is the offline-computed counterpart of the HTLC contract's
// computeSwapId view function. It lets the chain-swap EVM leg be built and
// verified without dialing a node.
type EVMDescriptor struct {
	SwapID       [32]byte
	Contract     common.Address
	Sender       common.Address
	Receiver     common.Address
	Token        common.Address
	Amount       *big.Int
	SecretHash   [32]byte
	TimeoutBlock uint32
	Nonce        *big.Int
}

var swapIDArguments = mustSwapIDArguments()

func mustSwapIDArguments() abi.Arguments {
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	uint256Ty, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	bytes32Ty, err := abi.NewType("bytes32", "", nil)
	if err != nil {
		panic(err)
	}

	return abi.Arguments{
		{Type: addressTy}, // sender
		{Type: addressTy}, // receiver
		{Type: addressTy}, // token
		{Type: uint256Ty}, // amount
		{Type: bytes32Ty}, // secretHash
		{Type: uint256Ty}, // timelock
		{Type: uint256Ty}, // nonce
	}
}

// BuildEVMDescriptor computes the swap-id descriptor for an EVM chain-swap
// leg the same way the on-chain contract's computeSwapId does: the keccak256
// of the abi-encoded (sender, receiver, token, amount, secretHash, timelock,
// nonce) tuple, namespaced by the chain's registered HTLC contract address.
func BuildEVMDescriptor(chainID uint64, sender, receiver, token common.Address, amount *big.Int, secretHash [32]byte, timeoutBlockHeight uint32, nonce *big.Int) (*EVMDescriptor, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("htlcscript: amount must be positive")
	}
	if nonce == nil {
		nonce = big.NewInt(0)
	}

	contracts, ok := config.EVMContractsFor(chainID)
	if !ok {
		return nil, fmt.Errorf("htlcscript: no HTLC contract registered for chain id %d", chainID)
	}

	timelock := new(big.Int).SetUint64(uint64(timeoutBlockHeight))

	packed, err := swapIDArguments.Pack(sender, receiver, token, amount, secretHash, timelock, nonce)
	if err != nil {
		return nil, fmt.Errorf("htlcscript: pack swap-id arguments: %w", err)
	}

	return &EVMDescriptor{
		SwapID:       crypto.Keccak256Hash(packed),
		Contract:     contracts.HTLCContract,
		Sender:       sender,
		Receiver:     receiver,
		Token:        token,
		Amount:       amount,
		SecretHash:   secretHash,
		TimeoutBlock: timeoutBlockHeight,
		Nonce:        nonce,
	}, nil
}

// SwapIDHex returns the swap id as a 0x-prefixed hex string.
func (d *EVMDescriptor) SwapIDHex() string {
	return "0x" + common.Bytes2Hex(d.SwapID[:])
}
