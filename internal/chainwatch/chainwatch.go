// Package chainwatch is a thin mempool.space-style REST client used by
// cmd/swapd as its reference chain-data collaborator: address balances,
// current block height and raw transaction broadcast for the Bitcoin-family
// chains the core scripts HTLCs for. It is read-only with respect to keys —
// nothing in this package ever sees a private key.
//
// It satisfies swapbuilder.Broadcaster directly, but BroadcastLockup needs a
// signed, fully-assembled raw transaction to hand to BroadcastTransaction.
// Building and signing that transaction is left to a separate collaborator,
// so Client's BroadcastLockup returns ErrBroadcastNotConfigured until a
// caller supplies one via SetTransactionBuilder.
package chainwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrBroadcastNotConfigured is returned by BroadcastLockup when no
// TransactionBuilder has been wired in. A production deployment supplies one;
// the core's own tests use a fake Broadcaster instead of this package.
var ErrBroadcastNotConfigured = errors.New("chainwatch: no transaction builder configured")

// TransactionBuilder assembles and signs the raw lockup transaction for a
// symbol/address/amount. cmd/swapd wires one in from whatever wallet and
// UTXO-selection machinery the surrounding deployment runs; the core itself
// never constructs a spendable transaction.
type TransactionBuilder func(ctx context.Context, symbol, address string, amount uint64) (rawTxHex string, minerFee uint64, err error)

// Endpoints maps a currency symbol to its mempool.space-compatible API base
// URL, mainnet and testnet.
type Endpoints struct {
	Mainnet string
	Testnet string
}

// DefaultEndpoints returns the mempool.space-family endpoints for the
// Bitcoin-derived chains the core scripts HTLCs for. Symbols outside this
// set (EVM chains, Liquid) are left to a caller-supplied Client via
// NewClient, since this set only covers UTXO REST backends.
func DefaultEndpoints() map[string]Endpoints {
	return map[string]Endpoints{
		"BTC": {Mainnet: "https://mempool.space/api", Testnet: "https://mempool.space/testnet4/api"},
		"LTC": {Mainnet: "https://litecoinspace.org/api", Testnet: "https://litecoinspace.org/testnet/api"},
	}
}

// Client is a mempool.space-compatible REST client for one symbol.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu      sync.RWMutex
	builder TransactionBuilder
}

// NewClient creates a client against baseURL (no trailing slash required).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetTransactionBuilder wires in the raw-transaction assembler used by
// BroadcastLockup. Safe to call after construction, before first use.
func (c *Client) SetTransactionBuilder(b TransactionBuilder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.builder = b
}

// AddressBalance is the confirmed balance of one address, in the chain's
// smallest unit.
func (c *Client) AddressBalance(ctx context.Context, address string) (uint64, error) {
	var result struct {
		ChainStats struct {
			FundedTxoSum uint64 `json:"funded_txo_sum"`
			SpentTxoSum  uint64 `json:"spent_txo_sum"`
		} `json:"chain_stats"`
	}
	if err := c.get(ctx, "/address/"+address, &result); err != nil {
		return 0, err
	}
	return result.ChainStats.FundedTxoSum - result.ChainStats.SpentTxoSum, nil
}

// CurrentBlockHeight returns the chain tip height.
func (c *Client) CurrentBlockHeight(ctx context.Context) (uint32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/blocks/tip/height", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("chainwatch: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	var height uint32
	if err := json.Unmarshal(body, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// RecommendedFeeRate returns the sat/vB fee rate for next-block confirmation.
func (c *Client) RecommendedFeeRate(ctx context.Context) (uint64, error) {
	var result map[string]float64
	if err := c.get(ctx, "/v1/fees/recommended", &result); err != nil {
		return 0, err
	}
	return uint64(result["fastestFee"]), nil
}

// BroadcastTransaction submits a raw signed transaction and returns its ID.
func (c *Client) BroadcastTransaction(ctx context.Context, rawTxHex string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tx", strings.NewReader(rawTxHex))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chainwatch: broadcast: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chainwatch: broadcast rejected: %s", strings.TrimSpace(string(body)))
	}
	return strings.TrimSpace(string(body)), nil
}

// BroadcastLockup implements swapbuilder.Broadcaster. It delegates the raw
// transaction's construction and signing to the configured
// TransactionBuilder, then submits the result through this client.
func (c *Client) BroadcastLockup(ctx context.Context, symbol, address string, amount uint64) (string, uint64, error) {
	c.mu.RLock()
	builder := c.builder
	c.mu.RUnlock()
	if builder == nil {
		return "", 0, ErrBroadcastNotConfigured
	}

	rawTxHex, minerFee, err := builder(ctx, symbol, address, amount)
	if err != nil {
		return "", 0, fmt.Errorf("chainwatch: build lockup transaction: %w", err)
	}

	txID, err := c.BroadcastTransaction(ctx, rawTxHex)
	if err != nil {
		return "", 0, err
	}
	return txID, minerFee, nil
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chainwatch: %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// Registry holds one Client per symbol, picked by network at construction.
type Registry struct {
	clients map[string]*Client
}

// NewDefaultRegistry builds a Registry from DefaultEndpoints, using each
// symbol's testnet endpoint when testnet is true and its mainnet endpoint
// otherwise.
func NewDefaultRegistry(testnet bool) *Registry {
	reg := &Registry{clients: make(map[string]*Client)}
	for symbol, ep := range DefaultEndpoints() {
		url := ep.Mainnet
		if testnet {
			url = ep.Testnet
		}
		reg.clients[symbol] = NewClient(url)
	}
	return reg
}

// Client returns the registered client for symbol, or nil if unsupported.
func (r *Registry) Client(symbol string) *Client {
	return r.clients[symbol]
}
