package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/klingon-exchange/swapcore/internal/nursery"
)

// SubmarineSwap is a chain-to-Lightning swap record.
type SubmarineSwap struct {
	ID                string
	Pair              string
	OrderSide         string
	Version           string
	Status            nursery.Status
	Fee               int64
	PreimageHash      string
	Preimage          string
	Invoice           string
	InvoiceAmount     int64
	ExpectedAmount    int64
	AcceptZeroConf    bool
	LockupAddress     string
	RedeemScript      string
	KeyIndex          uint32
	RefundPublicKey   string
	TimeoutBlockHeight uint32
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SaveSubmarineSwap inserts or updates a submarine swap by id.
func (r *Repository) SaveSubmarineSwap(s *SubmarineSwap) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO submarine_swaps (
			id, pair, order_side, version, status, fee, preimage_hash, preimage,
			invoice, invoice_amount, expected_amount, accept_zero_conf,
			lockup_address, redeem_script, key_index, refund_public_key,
			timeout_block_height, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			preimage = excluded.preimage,
			updated_at = excluded.updated_at
	`,
		s.ID, s.Pair, s.OrderSide, s.Version, string(s.Status), s.Fee, s.PreimageHash,
		nullableString(s.Preimage), s.Invoice, s.InvoiceAmount, s.ExpectedAmount,
		boolToInt(s.AcceptZeroConf), s.LockupAddress, s.RedeemScript, s.KeyIndex,
		s.RefundPublicKey, s.TimeoutBlockHeight, s.CreatedAt.Unix(), s.UpdatedAt.Unix(),
	)
	return err
}

const submarineColumns = `id, pair, order_side, version, status, fee, preimage_hash, preimage,
	invoice, invoice_amount, expected_amount, accept_zero_conf,
	lockup_address, redeem_script, key_index, refund_public_key,
	timeout_block_height, created_at, updated_at`

func scanSubmarineSwap(scanner interface {
	Scan(dest ...interface{}) error
}) (*SubmarineSwap, error) {
	var s SubmarineSwap
	var status string
	var preimageNS sql.NullString
	var acceptZeroConf int
	var createdAt, updatedAt int64

	err := scanner.Scan(
		&s.ID, &s.Pair, &s.OrderSide, &s.Version, &status, &s.Fee, &s.PreimageHash,
		&preimageNS, &s.Invoice, &s.InvoiceAmount, &s.ExpectedAmount, &acceptZeroConf,
		&s.LockupAddress, &s.RedeemScript, &s.KeyIndex, &s.RefundPublicKey,
		&s.TimeoutBlockHeight, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = nursery.Status(status)
	s.Preimage = stringOrEmpty(preimageNS)
	s.AcceptZeroConf = intToBool(acceptZeroConf)
	s.CreatedAt = time.Unix(createdAt, 0)
	s.UpdatedAt = time.Unix(updatedAt, 0)
	return &s, nil
}

// GetSubmarineSwap looks up a submarine swap by id.
func (r *Repository) GetSubmarineSwap(id string) (*SubmarineSwap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRow("SELECT "+submarineColumns+" FROM submarine_swaps WHERE id = ?", id)
	s, err := scanSubmarineSwap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// GetSubmarineSwapByInvoice looks up a submarine swap by its Lightning invoice.
func (r *Repository) GetSubmarineSwapByInvoice(invoice string) (*SubmarineSwap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRow("SELECT "+submarineColumns+" FROM submarine_swaps WHERE invoice = ?", invoice)
	s, err := scanSubmarineSwap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// GetSubmarineSwapByPreimageHash looks up a submarine swap by preimage hash.
func (r *Repository) GetSubmarineSwapByPreimageHash(hash string) (*SubmarineSwap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRow("SELECT "+submarineColumns+" FROM submarine_swaps WHERE preimage_hash = ?", hash)
	s, err := scanSubmarineSwap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// ListSubmarineSwapsByStatus returns every submarine swap currently in status.
func (r *Repository) ListSubmarineSwapsByStatus(status nursery.Status) ([]*SubmarineSwap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.Query("SELECT "+submarineColumns+" FROM submarine_swaps WHERE status = ?", string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SubmarineSwap
	for rows.Next() {
		s, err := scanSubmarineSwap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
