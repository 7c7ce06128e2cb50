package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/klingon-exchange/swapcore/internal/nursery"
)

// ChainSwapLeg is one side (sending or receiving) of a chain-to-chain swap.
type ChainSwapLeg struct {
	TradeID            string
	Leg                string // "sending" or "receiving"
	Pair               string
	OrderSide          string
	Version            string
	Status             nursery.Status
	Fee                int64
	PreimageHash       string
	Preimage           string
	Symbol             string
	AcceptZeroConf     bool
	LockupAddress      string
	ExpectedAmount     int64
	RedeemScript       string
	KeyIndex           uint32
	// CounterpartyPublicKey is the external party's compressed pubkey in
	// this leg's HTLC (their claim key on the sending leg, their refund
	// key on the receiving leg) — the key a cooperative MuSig2 signature
	// must combine with the service's own key at KeyIndex.
	CounterpartyPublicKey string
	TimeoutBlockHeight    uint32
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

const (
	LegSending   = "sending"
	LegReceiving = "receiving"
)

// SaveChainSwapLeg inserts or updates one leg of a chain swap.
func (r *Repository) SaveChainSwapLeg(leg *ChainSwapLeg) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if leg.CreatedAt.IsZero() {
		leg.CreatedAt = now
	}
	leg.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO chain_swap_legs (
			trade_id, leg, pair, order_side, version, status, fee, preimage_hash,
			preimage, symbol, accept_zero_conf, lockup_address, expected_amount,
			redeem_script, key_index, counterparty_public_key, timeout_block_height,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trade_id, leg) DO UPDATE SET
			status = excluded.status,
			preimage = excluded.preimage,
			updated_at = excluded.updated_at
	`,
		leg.TradeID, leg.Leg, leg.Pair, leg.OrderSide, leg.Version, string(leg.Status),
		leg.Fee, leg.PreimageHash, nullableString(leg.Preimage), leg.Symbol,
		boolToInt(leg.AcceptZeroConf), leg.LockupAddress, leg.ExpectedAmount,
		leg.RedeemScript, leg.KeyIndex, leg.CounterpartyPublicKey, leg.TimeoutBlockHeight,
		leg.CreatedAt.Unix(), leg.UpdatedAt.Unix(),
	)
	return err
}

const chainLegColumns = `trade_id, leg, pair, order_side, version, status, fee, preimage_hash,
	preimage, symbol, accept_zero_conf, lockup_address, expected_amount,
	redeem_script, key_index, counterparty_public_key, timeout_block_height, created_at, updated_at`

func scanChainSwapLeg(scanner interface {
	Scan(dest ...interface{}) error
}) (*ChainSwapLeg, error) {
	var leg ChainSwapLeg
	var status string
	var preimageNS sql.NullString
	var acceptZeroConf int
	var createdAt, updatedAt int64

	err := scanner.Scan(
		&leg.TradeID, &leg.Leg, &leg.Pair, &leg.OrderSide, &leg.Version, &status,
		&leg.Fee, &leg.PreimageHash, &preimageNS, &leg.Symbol, &acceptZeroConf,
		&leg.LockupAddress, &leg.ExpectedAmount, &leg.RedeemScript, &leg.KeyIndex,
		&leg.CounterpartyPublicKey, &leg.TimeoutBlockHeight, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	leg.Status = nursery.Status(status)
	leg.Preimage = stringOrEmpty(preimageNS)
	leg.AcceptZeroConf = intToBool(acceptZeroConf)
	leg.CreatedAt = time.Unix(createdAt, 0)
	leg.UpdatedAt = time.Unix(updatedAt, 0)
	return &leg, nil
}

// GetChainSwapLegs returns both legs (sending, receiving) for a trade id.
func (r *Repository) GetChainSwapLegs(tradeID string) ([]*ChainSwapLeg, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.Query("SELECT "+chainLegColumns+" FROM chain_swap_legs WHERE trade_id = ?", tradeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ChainSwapLeg
	for rows.Next() {
		leg, err := scanChainSwapLeg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, leg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// GetChainSwapLegByPreimageHash looks up a single leg by preimage hash.
func (r *Repository) GetChainSwapLegByPreimageHash(hash, leg string) (*ChainSwapLeg, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRow("SELECT "+chainLegColumns+" FROM chain_swap_legs WHERE preimage_hash = ? AND leg = ?", hash, leg)
	l, err := scanChainSwapLeg(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

// ListChainSwapLegsByStatus returns every leg currently in status.
func (r *Repository) ListChainSwapLegsByStatus(status nursery.Status) ([]*ChainSwapLeg, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.Query("SELECT "+chainLegColumns+" FROM chain_swap_legs WHERE status = ?", string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ChainSwapLeg
	for rows.Next() {
		leg, err := scanChainSwapLeg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, leg)
	}
	return out, rows.Err()
}
