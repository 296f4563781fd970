// Package storage provides a SQLite-backed journal of strategy decisions.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/dexrisk/internal/models"
)

// Storage wraps a SQLite database holding the decision journal.
type Storage struct {
	db           *sql.DB
	maxDecisions int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/dexrisk/data.db.
func New(maxDecisions int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "dexrisk", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxDecisions: maxDecisions}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS decisions (
			id           TEXT PRIMARY KEY,
			symbol       TEXT NOT NULL,
			kind         TEXT NOT NULL,
			reason       TEXT NOT NULL,
			side         TEXT,
			quantity     TEXT,
			price        TEXT,
			average      TEXT,
			stddev       TEXT,
			volatility   TEXT,
			trend        TEXT,
			total_volume TEXT,
			created_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_kind ON decisions(kind)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// AddDecision appends an outcome to the journal and trims it to maxDecisions rows.
func (s *Storage) AddDecision(o models.Outcome) error {
	if o.Kind == "" || o.Symbol == "" {
		return fmt.Errorf("invalid decision: kind and symbol are required")
	}
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}

	var side, quantity, price sql.NullString
	if o.Intent != nil {
		side = nullString(string(o.Intent.Side))
		quantity = nullString(o.Intent.Quantity.String())
		price = nullString(o.Intent.Price.String())
	}
	var average, stddev, volatility, trend, totalVolume sql.NullString
	if o.Stats != nil {
		average = nullString(o.Stats.Average.String())
		stddev = nullString(o.Stats.StdDev.String())
		volatility = nullString(o.Stats.Volatility.String())
		trend = nullString(string(o.Stats.Trend))
		totalVolume = nullString(o.Stats.TotalVolume.String())
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO decisions
			(id, symbol, kind, reason, side, quantity, price,
			 average, stddev, volatility, trend, total_volume, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		uuid.NewString(), o.Symbol, string(o.Kind), o.Reason,
		side, quantity, price,
		average, stddev, volatility, trend, totalVolume,
		at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}

	if err := rotate(tx, s.maxDecisions); err != nil {
		return err
	}
	return tx.Commit()
}

// GetRecentDecisions returns up to k decisions, newest first.
func (s *Storage) GetRecentDecisions(k int) ([]models.Outcome, error) {
	rows, err := s.db.Query(`
		SELECT symbol, kind, reason, side, quantity, price,
		       average, stddev, volatility, trend, total_volume, created_at
		FROM decisions ORDER BY created_at DESC LIMIT ?`, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var out []models.Outcome
	for rows.Next() {
		o, err := scanDecision(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		out = append(out, o)
	}
	if out == nil {
		out = []models.Outcome{}
	}
	return out, rows.Err()
}

// CountDecisions returns the number of journaled decisions of the given kind.
// An empty kind counts every decision.
func (s *Storage) CountDecisions(kind models.OutcomeKind) (int, error) {
	var n int
	var err error
	if kind == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM decisions`).Scan(&n)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM decisions WHERE kind = ?`, string(kind)).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count decisions: %w", err)
	}
	return n, nil
}

// RotateDecisions keeps at most maxDecisions newest decisions by created_at.
func (s *Storage) RotateDecisions() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if err := rotate(tx, s.maxDecisions); err != nil {
		return err
	}
	return tx.Commit()
}

func rotate(tx *sql.Tx, limit int) error {
	if _, err := tx.Exec(`
		DELETE FROM decisions WHERE id NOT IN (
			SELECT id FROM decisions ORDER BY created_at DESC LIMIT ?
		)`, limit); err != nil {
		return fmt.Errorf("failed to rotate decisions: %w", err)
	}
	return nil
}

func scanDecision(scan func(...any) error) (models.Outcome, error) {
	var o models.Outcome
	var kind string
	var side, quantity, price sql.NullString
	var average, stddev, volatility, trend, totalVolume sql.NullString
	var createdAtNano int64

	err := scan(
		&o.Symbol, &kind, &o.Reason, &side, &quantity, &price,
		&average, &stddev, &volatility, &trend, &totalVolume, &createdAtNano,
	)
	if err != nil {
		return models.Outcome{}, err
	}
	o.Kind = models.OutcomeKind(kind)
	o.At = time.Unix(0, createdAtNano)

	if side.Valid {
		o.Intent = &models.OrderIntent{
			Side:     models.Side(side.String),
			Quantity: parseDecimal(quantity),
			Price:    parseDecimal(price),
		}
	}
	if trend.Valid {
		o.Stats = &models.MarketStats{
			Average:     parseDecimal(average),
			StdDev:      parseDecimal(stddev),
			Volatility:  parseDecimal(volatility),
			Trend:       models.Trend(trend.String),
			TotalVolume: parseDecimal(totalVolume),
		}
	}
	return o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(ns sql.NullString) decimal.Decimal {
	if !ns.Valid {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return decimal.Zero
	}
	return d
}
