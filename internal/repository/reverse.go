package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/klingon-exchange/swapcore/internal/nursery"
)

// ReverseSwap is a Lightning-to-chain swap record.
type ReverseSwap struct {
	ID                 string
	Pair               string
	OrderSide          string
	Version            string
	Status             nursery.Status
	Fee                int64
	PreimageHash       string
	Preimage           string
	Invoice            string
	OnchainAmount      int64
	MinerFee           int64
	ClaimPublicKey     string
	LockupAddress      string
	RedeemScript       string
	KeyIndex           uint32
	TransactionID      string
	TimeoutBlockHeight uint32
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SaveReverseSwap inserts or updates a reverse swap by id.
func (r *Repository) SaveReverseSwap(s *ReverseSwap) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO reverse_swaps (
			id, pair, order_side, version, status, fee, preimage_hash, preimage,
			invoice, onchain_amount, miner_fee, claim_public_key, lockup_address,
			redeem_script, key_index, transaction_id, timeout_block_height,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			preimage = excluded.preimage,
			transaction_id = excluded.transaction_id,
			updated_at = excluded.updated_at
	`,
		s.ID, s.Pair, s.OrderSide, s.Version, string(s.Status), s.Fee, s.PreimageHash,
		nullableString(s.Preimage), s.Invoice, s.OnchainAmount, s.MinerFee, s.ClaimPublicKey,
		s.LockupAddress, s.RedeemScript, s.KeyIndex, nullableString(s.TransactionID),
		s.TimeoutBlockHeight, s.CreatedAt.Unix(), s.UpdatedAt.Unix(),
	)
	return err
}

const reverseColumns = `id, pair, order_side, version, status, fee, preimage_hash, preimage,
	invoice, onchain_amount, miner_fee, claim_public_key, lockup_address,
	redeem_script, key_index, transaction_id, timeout_block_height,
	created_at, updated_at`

func scanReverseSwap(scanner interface {
	Scan(dest ...interface{}) error
}) (*ReverseSwap, error) {
	var s ReverseSwap
	var status string
	var preimageNS, txIDNS sql.NullString
	var createdAt, updatedAt int64

	err := scanner.Scan(
		&s.ID, &s.Pair, &s.OrderSide, &s.Version, &status, &s.Fee, &s.PreimageHash,
		&preimageNS, &s.Invoice, &s.OnchainAmount, &s.MinerFee, &s.ClaimPublicKey,
		&s.LockupAddress, &s.RedeemScript, &s.KeyIndex, &txIDNS, &s.TimeoutBlockHeight,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = nursery.Status(status)
	s.Preimage = stringOrEmpty(preimageNS)
	s.TransactionID = stringOrEmpty(txIDNS)
	s.CreatedAt = time.Unix(createdAt, 0)
	s.UpdatedAt = time.Unix(updatedAt, 0)
	return &s, nil
}

// GetReverseSwap looks up a reverse swap by id.
func (r *Repository) GetReverseSwap(id string) (*ReverseSwap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRow("SELECT "+reverseColumns+" FROM reverse_swaps WHERE id = ?", id)
	s, err := scanReverseSwap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// GetReverseSwapByPreimageHash looks up a reverse swap by preimage hash.
func (r *Repository) GetReverseSwapByPreimageHash(hash string) (*ReverseSwap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRow("SELECT "+reverseColumns+" FROM reverse_swaps WHERE preimage_hash = ?", hash)
	s, err := scanReverseSwap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// ListReverseSwapsByStatus returns every reverse swap currently in status.
func (r *Repository) ListReverseSwapsByStatus(status nursery.Status) ([]*ReverseSwap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.Query("SELECT "+reverseColumns+" FROM reverse_swaps WHERE status = ?", string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ReverseSwap
	for rows.Next() {
		s, err := scanReverseSwap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
