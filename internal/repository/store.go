package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Dialect selects the SQL flavour of the underlying database.
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// Store bundles the repositories that make up the bill.  It is the
// transactional record store the billing engine runs against.
type Store struct {
	db      *sql.DB
	dialect Dialect

	Sessions    *SessionRepo
	Cart        *CartRepo
	Orders      *OrderRepo
	Payments    *PaymentRepo
	Quotes      *QuoteRepo
	SplitPlans  *SplitPlanRepo
	Idempotency *IdempotencyRepo
	Menu        *MenuRepo
}

// NewStore wires every repository to db.
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:          db,
		dialect:     dialect,
		Sessions:    NewSessionRepo(db, dialect),
		Cart:        NewCartRepo(db),
		Orders:      NewOrderRepo(db),
		Payments:    NewPaymentRepo(db),
		Quotes:      NewQuoteRepo(db),
		SplitPlans:  NewSplitPlanRepo(db, dialect),
		Idempotency: NewIdempotencyRepo(db),
		Menu:        NewMenuRepo(db),
	}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the configured dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// WithTx runs fn inside a transaction.  The transaction is committed when fn
// returns nil and rolled back otherwise, so a failing fn never leaves partial
// writes behind.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// forUpdate returns the row-lock suffix for the dialect.  SQLite has no row
// locks; its single writer already serialises transactions.
func forUpdate(d Dialect) string {
	if d == DialectMySQL {
		return " FOR UPDATE"
	}
	return ""
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	i := int(n.Int64)
	return &i
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}
