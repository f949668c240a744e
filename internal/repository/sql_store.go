package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/box-office/internal/model"
)

// SQLStore is the Store backed by a relational database through sqlx.  It
// works against MySQL (go-sql-driver/mysql) and PostgreSQL (lib/pq); the
// SQL is written with '?' placeholders and rebound for the connection's
// driver.
//
// Read-write transactions run at READ COMMITTED.  Isolation between
// concurrent reservations on the same event comes from LockEvent
// (SELECT ... FOR UPDATE on the event row), which every capacity-affecting
// transaction takes before reading availability.  Under READ COMMITTED each
// statement after the lock sees every transaction that committed before the
// lock was granted, so two callers can never both act on the same stale
// availability.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an open pool.  The pool stays owned by the caller's
// lifecycle but is closed by Close.
func NewSQLStore(db *sqlx.DB) *SQLStore { return &SQLStore{db: db} }

// DB exposes the pool, e.g. for migrations.
func (s *SQLStore) DB() *sqlx.DB { return s.db }

func (s *SQLStore) WithTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error {
	return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn)
}

func (s *SQLStore) ReadOnly(ctx context.Context, fn func(ctx context.Context, q Queries) error) error {
	return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn)
}

func (s *SQLStore) run(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, q Queries) error) error {
	tx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return classify("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &sqlQueries{ext: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify("commit", err)
	}
	committed = true
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return classify("ping", s.db.PingContext(ctx))
}

func (s *SQLStore) Close() error { return s.db.Close() }

// Predicates shared by availability and metrics queries.  The holds table
// must be aliased as h.
const (
	bookedExists     = `EXISTS (SELECT 1 FROM bookings b WHERE b.hold_id = h.id)`
	activeHoldFilter = `h.is_expired = FALSE AND h.expires_at > ? AND NOT ` + bookedExists
)

type sqlQueries struct {
	ext sqlx.ExtContext
}

func (q *sqlQueries) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, q.ext, dest, q.ext.Rebind(query), args...)
}

func (q *sqlQueries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.ext.ExecContext(ctx, q.ext.Rebind(query), args...)
}

func (q *sqlQueries) CreateEvent(ctx context.Context, e model.Event) error {
	const stmt = `INSERT INTO events (id, name, total_seats, created_at) VALUES (?, ?, ?, ?)`
	if _, err := q.exec(ctx, stmt, e.ID, e.Name, e.TotalSeats, e.CreatedAt.UTC()); err != nil {
		return classify("create event", err)
	}
	return nil
}

func (q *sqlQueries) GetEvent(ctx context.Context, id string) (model.Event, error) {
	return q.event(ctx, `SELECT id, name, total_seats, created_at FROM events WHERE id = ?`, id)
}

func (q *sqlQueries) LockEvent(ctx context.Context, id string) (model.Event, error) {
	return q.event(ctx, `SELECT id, name, total_seats, created_at FROM events WHERE id = ? FOR UPDATE`, id)
}

func (q *sqlQueries) event(ctx context.Context, query, id string) (model.Event, error) {
	var e model.Event
	if err := q.get(ctx, &e, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Event{}, model.ErrEventNotFound
		}
		return model.Event{}, classify("get event", err)
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func (q *sqlQueries) SumHeld(ctx context.Context, eventID string, now time.Time) (int, error) {
	query := `SELECT COALESCE(SUM(h.quantity), 0) FROM holds h WHERE h.event_id = ? AND ` + activeHoldFilter
	var total int
	if err := q.get(ctx, &total, query, eventID, now.UTC()); err != nil {
		return 0, classify("sum held seats", err)
	}
	return total, nil
}

func (q *sqlQueries) SumBooked(ctx context.Context, eventID string) (int, error) {
	const query = `
SELECT COALESCE(SUM(h.quantity), 0)
FROM holds h
JOIN bookings b ON b.hold_id = h.id
WHERE h.event_id = ?`
	var total int
	if err := q.get(ctx, &total, query, eventID); err != nil {
		return 0, classify("sum booked seats", err)
	}
	return total, nil
}

func (q *sqlQueries) CreateHold(ctx context.Context, h model.Hold) error {
	const stmt = `
INSERT INTO holds (id, event_id, quantity, payment_token, expires_at, is_expired, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := q.exec(ctx, stmt,
		h.ID,
		h.EventID,
		h.Quantity,
		h.PaymentToken,
		h.ExpiresAt.UTC(),
		h.IsExpired,
		h.CreatedAt.UTC(),
	)
	if err != nil {
		return classify("create hold", err)
	}
	return nil
}

func (q *sqlQueries) GetHold(ctx context.Context, id string) (model.Hold, error) {
	const query = `
SELECT id, event_id, quantity, payment_token, expires_at, is_expired, created_at
FROM holds
WHERE id = ?`
	var h model.Hold
	if err := q.get(ctx, &h, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Hold{}, model.ErrHoldNotFound
		}
		return model.Hold{}, classify("get hold", err)
	}
	h.ExpiresAt = h.ExpiresAt.UTC()
	h.CreatedAt = h.CreatedAt.UTC()
	return h, nil
}

func (q *sqlQueries) FindBooking(ctx context.Context, holdID, token string) (*model.Booking, error) {
	return q.booking(ctx,
		`SELECT id, hold_id, payment_token, created_at FROM bookings WHERE hold_id = ? AND payment_token = ?`,
		holdID, token)
}

func (q *sqlQueries) FindBookingByHold(ctx context.Context, holdID string) (*model.Booking, error) {
	return q.booking(ctx,
		`SELECT id, hold_id, payment_token, created_at FROM bookings WHERE hold_id = ?`,
		holdID)
}

func (q *sqlQueries) booking(ctx context.Context, query string, args ...any) (*model.Booking, error) {
	var b model.Booking
	if err := q.get(ctx, &b, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("find booking", err)
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return &b, nil
}

func (q *sqlQueries) CreateBooking(ctx context.Context, b model.Booking) error {
	const stmt = `INSERT INTO bookings (id, hold_id, payment_token, created_at) VALUES (?, ?, ?, ?)`
	if _, err := q.exec(ctx, stmt, b.ID, b.HoldID, b.PaymentToken, b.CreatedAt.UTC()); err != nil {
		return classify("create booking", err)
	}
	return nil
}

func (q *sqlQueries) ExpireHolds(ctx context.Context, now time.Time) (int64, error) {
	// The cutoff is a bound parameter; the statement text never changes.
	const stmt = `
UPDATE holds SET is_expired = TRUE
WHERE expires_at <= ?
  AND is_expired = FALSE
  AND NOT EXISTS (SELECT 1 FROM bookings b WHERE b.hold_id = holds.id)`
	res, err := q.exec(ctx, stmt, now.UTC())
	if err != nil {
		return 0, classify("expire holds", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify("expire holds", err)
	}
	return n, nil
}

func (q *sqlQueries) Rollup(ctx context.Context, now, soon time.Time) (model.Metrics, error) {
	query := fmt.Sprintf(`
SELECT
  (SELECT COUNT(*) FROM events) AS total_events,
  (SELECT COUNT(*) FROM holds) AS total_holds,
  (SELECT COUNT(*) FROM holds h WHERE %[1]s) AS active_holds,
  (SELECT COUNT(*) FROM holds h WHERE (h.is_expired = TRUE OR h.expires_at <= ?) AND NOT %[2]s) AS expired_holds,
  (SELECT COUNT(*) FROM bookings) AS total_bookings,
  (SELECT COALESCE(SUM(h.quantity), 0) FROM holds h JOIN bookings b ON b.hold_id = h.id) AS total_seats_booked,
  (SELECT COALESCE(SUM(h.quantity), 0) FROM holds h WHERE %[1]s) AS total_seats_held,
  (SELECT COUNT(*) FROM holds h WHERE %[1]s AND h.expires_at <= ?) AS holds_expiring_soon`,
		activeHoldFilter, bookedExists)

	now = now.UTC()
	var m model.Metrics
	if err := q.get(ctx, &m, query, now, now, now, now, soon.UTC()); err != nil {
		return model.Metrics{}, classify("rollup metrics", err)
	}
	return m, nil
}
