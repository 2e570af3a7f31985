// Package store is the solver journal: opened deposits, placed bids and the
// progress of fill/settle sessions, kept in sqlite so a restarted daemon can
// resume where it stopped.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bridge/internal/chain"
	"bridge/internal/deposit"
	"bridge/internal/win"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db *sql.DB
}

// Bid is a journaled bid.
type Bid struct {
	Network     string    `json:"network"`
	AuctionID   uint64    `json:"auctionId"`
	TxHash      string    `json:"txHash"`
	BlockNumber uint64    `json:"blockNumber"`
	GasUsed     uint64    `json:"gasUsed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Open opens the sqlite database at path and creates the journal tables.
// ":memory:" gives a private in-memory journal.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// every connection to :memory: is its own database
	db.SetMaxOpenConns(1)

	if err := InitDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func InitDB(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS deposits (
			order_id TEXT PRIMARY KEY,
			source_network TEXT,
			dest_network TEXT,
			sender TEXT,
			input_token TEXT,
			output_token TEXT,
			amount_in TEXT,
			amount_out TEXT,
			tx_hash TEXT,
			fill_deadline INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create deposits table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS bids (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			network TEXT,
			auction_id INTEGER,
			tx_hash TEXT,
			block_number INTEGER,
			gas_used INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create bids table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS win_sessions (
			id TEXT PRIMARY KEY,
			network TEXT,
			auction_id INTEGER,
			order_id TEXT,
			origin_data TEXT,
			step TEXT,
			fill_tx TEXT,
			settle_tx TEXT,
			error TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create win_sessions table: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RecordDeposit(ctx context.Context, rec deposit.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO deposits (order_id, source_network, dest_network, sender, input_token, output_token, amount_in, amount_out, tx_hash, fill_deadline, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.OrderID, rec.SourceNetwork, rec.DestNetwork, rec.Sender, rec.InputToken, rec.OutputToken, rec.AmountIn, rec.AmountOut, rec.TxHash, rec.FillDeadline, rec.CreatedAt.UTC())
	return err
}

// Deposits returns journaled deposits, newest first.
func (s *Store) Deposits(ctx context.Context) ([]deposit.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, source_network, dest_network, sender, input_token, output_token, amount_in, amount_out, tx_hash, fill_deadline, created_at
		FROM deposits
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []deposit.Record{}
	for rows.Next() {
		var rec deposit.Record
		err := rows.Scan(&rec.OrderID, &rec.SourceNetwork, &rec.DestNetwork, &rec.Sender, &rec.InputToken, &rec.OutputToken, &rec.AmountIn, &rec.AmountOut, &rec.TxHash, &rec.FillDeadline, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) RecordBid(ctx context.Context, network string, auctionID uint64, receipt *chain.Receipt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bids (network, auction_id, tx_hash, block_number, gas_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, network, int64(auctionID), receipt.TxHash.Hex(), int64(receipt.BlockNumber), int64(receipt.GasUsed), time.Now().UTC())
	return err
}

// Bids returns journaled bids on network, all networks when network is
// empty, oldest first.
func (s *Store) Bids(ctx context.Context, network string) ([]Bid, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT network, auction_id, tx_hash, block_number, gas_used, created_at
		FROM bids
		WHERE ? = '' OR network = ?
		ORDER BY id
	`, network, network)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Bid{}
	for rows.Next() {
		var (
			b                         Bid
			auctionID, block, gasUsed int64
		)
		if err := rows.Scan(&b.Network, &auctionID, &b.TxHash, &block, &gasUsed, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.AuctionID, b.BlockNumber, b.GasUsed = uint64(auctionID), uint64(block), uint64(gasUsed)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) SaveSession(ctx context.Context, sess win.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO win_sessions (id, network, auction_id, order_id, origin_data, step, fill_tx, settle_tx, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			step = excluded.step,
			fill_tx = excluded.fill_tx,
			settle_tx = excluded.settle_tx,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, sess.ID.String(), sess.Network, int64(sess.AuctionID), sess.OrderID, sess.OriginData, sess.Step.String(),
		sess.FillTx, sess.SettleTx, sess.Error, sess.CreatedAt.UTC(), sess.UpdatedAt.UTC())
	return err
}

// DeleteSession removes an abandoned session.
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM win_sessions WHERE id = ?`, id.String())
	return err
}

// LoadSessions returns every journaled session, oldest first.
func (s *Store) LoadSessions(ctx context.Context) ([]win.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, network, auction_id, order_id, origin_data, step, fill_tx, settle_tx, error, created_at, updated_at
		FROM win_sessions
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []win.Session
	for rows.Next() {
		var (
			sess      win.Session
			id, step  string
			auctionID int64
		)
		err := rows.Scan(&id, &sess.Network, &auctionID, &sess.OrderID, &sess.OriginData, &step,
			&sess.FillTx, &sess.SettleTx, &sess.Error, &sess.CreatedAt, &sess.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if sess.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("session %q: %w", id, err)
		}
		if sess.Step, err = win.ParseStep(step); err != nil {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		sess.AuctionID = uint64(auctionID)
		out = append(out, sess)
	}
	return out, rows.Err()
}
