/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements leave.TxStore (bookings + booking history) and profile.Store
  using SQLite through database/sql.

KEY TABLES:
  bookings:        current booking records (mutable)
  booking_history: append-only audit log; snapshots stored as JSON text
  user_profiles:   registration records keyed by LINE user id

INDEXES:
  - idx_bookings_span:            covering-day queries (date, end_date)
  - idx_bookings_user:            per-user queries
  - idx_unique_monthly_booking:   one booking start per user per month,
                                  enforced by storage (leave.ErrQuotaConflict)
  - idx_history_timestamp:        newest-first history listing

STORAGE FORMATS:
  Dates are "YYYY-MM-DD" text, so lexical order is calendar order.
  Timestamps are fixed-width UTC text, so lexical order is time order.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction, which serializes validate-then-write.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := leave.NewService(store, leave.Options{})

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
  - store/gormstore: GORM implementation (PostgreSQL)
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/leave-calendar/calendar"
	"github.com/warp/leave-calendar/leave"
	"github.com/warp/leave-calendar/profile"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Wrap uses an already-open database without migrating it.
func Wrap(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the database schema.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	-- Bookings (current state, one row per booking)
	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		end_date TEXT,
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		category TEXT NOT NULL CHECK (category IN ('domestic', 'international')),
		reason TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT,
		CHECK (end_date IS NULL OR end_date >= date)
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_span
		ON bookings(date, end_date);
	CREATE INDEX IF NOT EXISTS idx_bookings_user
		ON bookings(user_id, date);

	-- One booking start per user per calendar month
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_monthly_booking
		ON bookings(user_id, substr(date, 1, 7));

	-- Booking history (append-only)
	CREATE TABLE IF NOT EXISTS booking_history (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL CHECK (action IN ('create', 'update', 'delete')),
		booking_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		old_data TEXT,
		new_data TEXT,
		booking_data TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_history_timestamp
		ON booking_history(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_history_booking
		ON booking_history(booking_id);
	CREATE INDEX IF NOT EXISTS idx_history_user
		ON booking_history(user_id);

	-- User profiles
	CREATE TABLE IF NOT EXISTS user_profiles (
		line_user_id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		phone TEXT NOT NULL,
		email TEXT,
		display_name TEXT,
		picture_url TEXT,
		status_message TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// BOOKING STORE (leave.BookingStore interface)
// =============================================================================

func (s *Store) InsertBooking(ctx context.Context, b leave.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertBooking(ctx, s.db, b)
}

func (s *Store) GetBooking(ctx context.Context, id string) (leave.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBooking(ctx, s.db, id)
}

func (s *Store) SaveBooking(ctx context.Context, b leave.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveBooking(ctx, s.db, b)
}

func (s *Store) DeleteBooking(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteBooking(ctx, s.db, id)
}

func (s *Store) BookingsCovering(ctx context.Context, day calendar.Date) ([]leave.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bookingsCovering(ctx, s.db, day)
}

func (s *Store) BookingsStartingIn(ctx context.Context, year int, month time.Month) ([]leave.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bookingsStartingIn(ctx, s.db, year, month)
}

func (s *Store) BookingsByUser(ctx context.Context, userID string) ([]leave.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryBookings(ctx, s.db, `WHERE user_id = ?`, userID)
}

func (s *Store) AllBookings(ctx context.Context) ([]leave.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryBookings(ctx, s.db, ``)
}

const bookingColumns = `id, date, end_date, user_id, user_name, category, reason, created_at, updated_at`

func insertBooking(ctx context.Context, db querier, b leave.Booking) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID,
		b.Date.String(),
		nullDate(b.EndDate),
		b.UserID,
		b.UserName,
		string(b.Category),
		nullString(b.Reason),
		formatTime(b.CreatedAt),
		nullTime(b.UpdatedAt),
	)
	if err != nil {
		if isQuotaError(err) {
			return leave.ErrQuotaConflict
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func getBooking(ctx context.Context, db querier, id string) (leave.Booking, error) {
	bookings, err := queryBookings(ctx, db, `WHERE id = ?`, id)
	if err != nil {
		return leave.Booking{}, err
	}
	if len(bookings) == 0 {
		return leave.Booking{}, leave.ErrNotFound
	}
	return bookings[0], nil
}

func saveBooking(ctx context.Context, db querier, b leave.Booking) error {
	res, err := db.ExecContext(ctx, `
		UPDATE bookings
		SET date = ?, end_date = ?, category = ?, reason = ?, updated_at = ?
		WHERE id = ?
	`,
		b.Date.String(),
		nullDate(b.EndDate),
		string(b.Category),
		nullString(b.Reason),
		nullTime(b.UpdatedAt),
		b.ID,
	)
	if err != nil {
		if isQuotaError(err) {
			return leave.ErrQuotaConflict
		}
		return fmt.Errorf("failed to update booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if n == 0 {
		return leave.ErrNotFound
	}
	return nil
}

func deleteBooking(ctx context.Context, db querier, id string) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete booking: %w", err)
	}
	return n > 0, nil
}

func bookingsCovering(ctx context.Context, db querier, day calendar.Date) ([]leave.Booking, error) {
	d := day.String()
	return queryBookings(ctx, db, `WHERE date <= ? AND COALESCE(end_date, date) >= ?`, d, d)
}

func bookingsStartingIn(ctx context.Context, db querier, year int, month time.Month) ([]leave.Booking, error) {
	r := calendar.MonthRange(year, month)
	return queryBookings(ctx, db, `WHERE date >= ? AND date <= ?`, r.Start.String(), r.End.String())
}

func queryBookings(ctx context.Context, db querier, where string, args ...any) ([]leave.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ` + where + ` ORDER BY date ASC, created_at ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []leave.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func scanBooking(rows *sql.Rows) (leave.Booking, error) {
	var (
		b         leave.Booking
		date      string
		endDate   sql.NullString
		category  string
		reason    sql.NullString
		createdAt string
		updatedAt sql.NullString
	)

	err := rows.Scan(&b.ID, &date, &endDate, &b.UserID, &b.UserName, &category, &reason, &createdAt, &updatedAt)
	if err != nil {
		return b, fmt.Errorf("failed to scan booking: %w", err)
	}

	if b.Date, err = calendar.Parse(date); err != nil {
		return b, fmt.Errorf("booking %s: %w", b.ID, err)
	}
	if endDate.Valid && endDate.String != "" {
		end, err := calendar.Parse(endDate.String)
		if err != nil {
			return b, fmt.Errorf("booking %s: %w", b.ID, err)
		}
		b.EndDate = &end
	}
	b.Category = leave.Category(category)
	b.Reason = reason.String
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return b, fmt.Errorf("booking %s: %w", b.ID, err)
	}
	if updatedAt.Valid && updatedAt.String != "" {
		t, err := parseTime(updatedAt.String)
		if err != nil {
			return b, fmt.Errorf("booking %s: %w", b.ID, err)
		}
		b.UpdatedAt = &t
	}
	return b, nil
}

// =============================================================================
// HISTORY STORE (leave.HistoryStore interface)
// =============================================================================

func (s *Store) AppendHistory(ctx context.Context, e leave.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendHistory(ctx, s.db, e)
}

func (s *Store) ListHistory(ctx context.Context, f leave.HistoryFilter) ([]leave.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listHistory(ctx, s.db, f)
}

func (s *Store) PurgeHistory(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return purgeHistory(ctx, s.db)
}

func appendHistory(ctx context.Context, db querier, e leave.HistoryEntry) error {
	oldData, err := marshalData(e.OldData)
	if err != nil {
		return err
	}
	newData, err := marshalData(e.NewData)
	if err != nil {
		return err
	}
	bookingData, err := marshalData(e.BookingData)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO booking_history
		(id, action, booking_id, user_id, user_name, timestamp, old_data, new_data, booking_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		string(e.Action),
		e.BookingID,
		e.UserID,
		e.UserName,
		formatTime(e.Timestamp),
		oldData,
		newData,
		bookingData,
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

func listHistory(ctx context.Context, db querier, f leave.HistoryFilter) ([]leave.HistoryEntry, error) {
	var (
		conds []string
		args  []any
	)
	if f.BookingID != "" {
		conds = append(conds, "booking_id = ?")
		args = append(args, f.BookingID)
	}
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}

	query := `
		SELECT id, action, booking_id, user_id, user_name, timestamp, old_data, new_data, booking_data
		FROM booking_history`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY timestamp DESC, rowid DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []leave.HistoryEntry
	for rows.Next() {
		var (
			e                             leave.HistoryEntry
			action, ts                    string
			oldData, newData, bookingData sql.NullString
		)
		if err := rows.Scan(&e.ID, &action, &e.BookingID, &e.UserID, &e.UserName, &ts, &oldData, &newData, &bookingData); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.Action = leave.HistoryAction(action)
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("history %s: %w", e.ID, err)
		}
		if e.OldData, err = unmarshalData(oldData); err != nil {
			return nil, err
		}
		if e.NewData, err = unmarshalData(newData); err != nil {
			return nil, err
		}
		if e.BookingData, err = unmarshalData(bookingData); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func purgeHistory(ctx context.Context, db querier) (int, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM booking_history`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to purge history: %w", err)
	}
	return int(n), nil
}

func marshalData(d *leave.BookingData) (sql.NullString, error) {
	if d == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalData(s sql.NullString) (*leave.BookingData, error) {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil, nil
	}
	var d leave.BookingData
	if err := json.Unmarshal([]byte(s.String), &d); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &d, nil
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every call on the open transaction; the parent's lock is
// already held by WithTx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) InsertBooking(ctx context.Context, b leave.Booking) error {
	return insertBooking(ctx, ts.tx, b)
}

func (ts *txStore) GetBooking(ctx context.Context, id string) (leave.Booking, error) {
	return getBooking(ctx, ts.tx, id)
}

func (ts *txStore) SaveBooking(ctx context.Context, b leave.Booking) error {
	return saveBooking(ctx, ts.tx, b)
}

func (ts *txStore) DeleteBooking(ctx context.Context, id string) (bool, error) {
	return deleteBooking(ctx, ts.tx, id)
}

func (ts *txStore) BookingsCovering(ctx context.Context, day calendar.Date) ([]leave.Booking, error) {
	return bookingsCovering(ctx, ts.tx, day)
}

func (ts *txStore) BookingsStartingIn(ctx context.Context, year int, month time.Month) ([]leave.Booking, error) {
	return bookingsStartingIn(ctx, ts.tx, year, month)
}

func (ts *txStore) BookingsByUser(ctx context.Context, userID string) ([]leave.Booking, error) {
	return queryBookings(ctx, ts.tx, `WHERE user_id = ?`, userID)
}

func (ts *txStore) AllBookings(ctx context.Context) ([]leave.Booking, error) {
	return queryBookings(ctx, ts.tx, ``)
}

func (ts *txStore) AppendHistory(ctx context.Context, e leave.HistoryEntry) error {
	return appendHistory(ctx, ts.tx, e)
}

func (ts *txStore) ListHistory(ctx context.Context, f leave.HistoryFilter) ([]leave.HistoryEntry, error) {
	return listHistory(ctx, ts.tx, f)
}

func (ts *txStore) PurgeHistory(ctx context.Context) (int, error) {
	return purgeHistory(ctx, ts.tx)
}

// =============================================================================
// PROFILE STORE (profile.Store interface)
// =============================================================================

func (s *Store) GetProfile(ctx context.Context, lineUserID string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p                                      profile.Profile
		email, displayName, picture, statusMsg sql.NullString
		createdAt, updatedAt                   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT line_user_id, full_name, phone, email, display_name, picture_url, status_message, created_at, updated_at
		FROM user_profiles WHERE line_user_id = ?
	`, lineUserID).Scan(&p.LineUserID, &p.FullName, &p.Phone, &email, &displayName, &picture, &statusMsg, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.Profile{}, profile.ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}

	p.Email = email.String
	p.DisplayName = displayName.String
	p.PictureURL = picture.String
	p.StatusMessage = statusMsg.String
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return profile.Profile{}, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return profile.Profile{}, err
	}
	return p, nil
}

func (s *Store) InsertProfile(ctx context.Context, p profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profiles
		(line_user_id, full_name, phone, email, display_name, picture_url, status_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.LineUserID,
		p.FullName,
		p.Phone,
		nullString(p.Email),
		nullString(p.DisplayName),
		nullString(p.PictureURL),
		nullString(p.StatusMessage),
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return profile.ErrExists
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

func (s *Store) SaveProfile(ctx context.Context, p profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE user_profiles
		SET full_name = ?, phone = ?, email = ?, updated_at = ?
		WHERE line_user_id = ?
	`,
		p.FullName,
		p.Phone,
		nullString(p.Email),
		formatTime(p.UpdatedAt),
		p.LineUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if n == 0 {
		return profile.ErrNotFound
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(d *calendar.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

// isQuotaError matches violations of idx_unique_monthly_booking. SQLite
// reports expression indexes by name ("index 'idx_...'").
func isQuotaError(err error) bool {
	return isUniqueConstraintError(err) && strings.Contains(err.Error(), "idx_unique_monthly_booking")
}
