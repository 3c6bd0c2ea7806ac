/*
Package gormstore implements leave.TxStore and profile.Store on GORM.

PURPOSE:
  The production deployment runs on PostgreSQL; local development and tests
  use SQLite through the same models. Open picks the dialect from the DSN.

MODELS:
  bookingRow  -> bookings
  historyRow  -> booking_history (snapshots as JSON text)
  profileRow  -> user_profiles

MONTHLY QUOTA:
  bookings carries a start_month column ("YYYY-MM") with a unique index on
  (user_id, start_month). A violation surfaces as leave.ErrQuotaConflict.

TRANSACTIONS:
  WithTx runs fn inside db.Transaction. On PostgreSQL the transaction is
  SERIALIZABLE; a process-level mutex additionally serializes WithTx calls.
*/
package gormstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/warp/leave-calendar/calendar"
	"github.com/warp/leave-calendar/leave"
	"github.com/warp/leave-calendar/profile"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// =============================================================================
// MODELS
// =============================================================================

type bookingRow struct {
	ID         string     `gorm:"type:varchar(64);primaryKey"`
	Date       string     `gorm:"type:varchar(10);not null;index:idx_bookings_span,priority:1"`
	EndDate    *string    `gorm:"type:varchar(10);index:idx_bookings_span,priority:2"`
	StartMonth string     `gorm:"type:varchar(7);not null;uniqueIndex:idx_unique_monthly_booking,priority:2"`
	UserID     string     `gorm:"type:varchar(128);not null;uniqueIndex:idx_unique_monthly_booking,priority:1;index"`
	UserName   string     `gorm:"type:varchar(255);not null"`
	Category   string     `gorm:"type:varchar(16);not null;check:chk_bookings_category,category IN ('domestic','international')"`
	Reason     *string    `gorm:"type:text"`
	CreatedAt  time.Time  `gorm:"not null;autoCreateTime:false"`
	UpdatedAt  *time.Time `gorm:"autoUpdateTime:false"`
}

func (bookingRow) TableName() string { return "bookings" }

type historyRow struct {
	Seq         uint64    `gorm:"primaryKey;autoIncrement"`
	ID          string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Action      string    `gorm:"type:varchar(8);not null"`
	BookingID   string    `gorm:"type:varchar(64);not null;index"`
	UserID      string    `gorm:"type:varchar(128);not null;index"`
	UserName    string    `gorm:"type:varchar(255);not null"`
	Timestamp   time.Time `gorm:"not null;index"`
	OldData     *string   `gorm:"type:text"`
	NewData     *string   `gorm:"type:text"`
	BookingData *string   `gorm:"type:text"`
}

func (historyRow) TableName() string { return "booking_history" }

type profileRow struct {
	LineUserID    string    `gorm:"type:varchar(128);primaryKey"`
	FullName      string    `gorm:"type:varchar(255);not null"`
	Phone         string    `gorm:"type:varchar(32);not null"`
	Email         *string   `gorm:"type:varchar(254)"`
	DisplayName   *string   `gorm:"type:varchar(255)"`
	PictureURL    *string   `gorm:"type:text"`
	StatusMessage *string   `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (profileRow) TableName() string { return "user_profiles" }

// =============================================================================
// CONNECT
// =============================================================================

// Open connects to PostgreSQL for postgres:// DSNs and to SQLite otherwise,
// then migrates the schema.
func Open(dsn string) (*Store, error) {
	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}

	var (
		db  *gorm.DB
		err error
	)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		log.Println("Connecting to PostgreSQL...")
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		log.Println("Using SQLite for local development:", dsn)
		db, err = gorm.Open(gormsqlite.Open(dsn), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := New(db)
	if err := s.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Store implements leave.TxStore and profile.Store.
type Store struct {
	conn
	txMu sync.Mutex
}

// New wraps an open *gorm.DB. Call Migrate before first use.
func New(db *gorm.DB) *Store {
	return &Store{conn: conn{db: db}}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&bookingRow{}, &historyRow{}, &profileRow{})
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	var opts []*sql.TxOptions
	if s.db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txStore{conn: conn{db: tx}})
	}, opts...)
}

// txStore is the view handed to WithTx callbacks.
type txStore struct {
	conn
}

// =============================================================================
// CONN - queries shared by Store and txStore
// =============================================================================

type conn struct {
	db *gorm.DB
}

func (c conn) InsertBooking(ctx context.Context, b leave.Booking) error {
	row := toBookingRow(b)
	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return leave.ErrQuotaConflict
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (c conn) GetBooking(ctx context.Context, id string) (leave.Booking, error) {
	var row bookingRow
	err := c.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return leave.Booking{}, leave.ErrNotFound
	}
	if err != nil {
		return leave.Booking{}, fmt.Errorf("failed to get booking: %w", err)
	}
	return row.toBooking()
}

func (c conn) SaveBooking(ctx context.Context, b leave.Booking) error {
	row := toBookingRow(b)
	res := c.db.WithContext(ctx).Model(&bookingRow{}).Where("id = ?", b.ID).Updates(map[string]any{
		"date":        row.Date,
		"end_date":    row.EndDate,
		"start_month": row.StartMonth,
		"category":    row.Category,
		"reason":      row.Reason,
		"updated_at":  row.UpdatedAt,
	})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return leave.ErrQuotaConflict
		}
		return fmt.Errorf("failed to update booking: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return leave.ErrNotFound
	}
	return nil
}

func (c conn) DeleteBooking(ctx context.Context, id string) (bool, error) {
	res := c.db.WithContext(ctx).Where("id = ?", id).Delete(&bookingRow{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete booking: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (c conn) BookingsCovering(ctx context.Context, day calendar.Date) ([]leave.Booking, error) {
	d := day.String()
	return c.findBookings(ctx, c.db.Where("date <= ? AND COALESCE(end_date, date) >= ?", d, d))
}

func (c conn) BookingsStartingIn(ctx context.Context, year int, month time.Month) ([]leave.Booking, error) {
	r := calendar.MonthRange(year, month)
	return c.findBookings(ctx, c.db.Where("date >= ? AND date <= ?", r.Start.String(), r.End.String()))
}

func (c conn) BookingsByUser(ctx context.Context, userID string) ([]leave.Booking, error) {
	return c.findBookings(ctx, c.db.Where("user_id = ?", userID))
}

func (c conn) AllBookings(ctx context.Context) ([]leave.Booking, error) {
	return c.findBookings(ctx, c.db)
}

func (c conn) findBookings(ctx context.Context, q *gorm.DB) ([]leave.Booking, error) {
	var rows []bookingRow
	err := q.WithContext(ctx).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "date"}},
			{Column: clause.Column{Name: "created_at"}},
			{Column: clause.Column{Name: "id"}},
		}}).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}

	bookings := make([]leave.Booking, 0, len(rows))
	for _, row := range rows {
		b, err := row.toBooking()
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, nil
}

func (c conn) AppendHistory(ctx context.Context, e leave.HistoryEntry) error {
	row, err := toHistoryRow(e)
	if err != nil {
		return err
	}
	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

func (c conn) ListHistory(ctx context.Context, f leave.HistoryFilter) ([]leave.HistoryEntry, error) {
	q := c.db.WithContext(ctx)
	if f.BookingID != "" {
		q = q.Where("booking_id = ?", f.BookingID)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "timestamp"}, Desc: true},
		{Column: clause.Column{Name: "seq"}, Desc: true},
	}})
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []historyRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	entries := make([]leave.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		e, err := row.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (c conn) PurgeHistory(ctx context.Context) (int, error) {
	res := c.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&historyRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge history: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// =============================================================================
// PROFILES (profile.Store interface)
// =============================================================================

func (c conn) GetProfile(ctx context.Context, lineUserID string) (profile.Profile, error) {
	var row profileRow
	err := c.db.WithContext(ctx).Where("line_user_id = ?", lineUserID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return profile.Profile{}, profile.ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile.Profile{
		LineUserID:    row.LineUserID,
		FullName:      row.FullName,
		Phone:         row.Phone,
		Email:         deref(row.Email),
		DisplayName:   deref(row.DisplayName),
		PictureURL:    deref(row.PictureURL),
		StatusMessage: deref(row.StatusMessage),
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}, nil
}

func (c conn) InsertProfile(ctx context.Context, p profile.Profile) error {
	row := profileRow{
		LineUserID:    p.LineUserID,
		FullName:      p.FullName,
		Phone:         p.Phone,
		Email:         ptr(p.Email),
		DisplayName:   ptr(p.DisplayName),
		PictureURL:    ptr(p.PictureURL),
		StatusMessage: ptr(p.StatusMessage),
		CreatedAt:     p.CreatedAt.UTC(),
		UpdatedAt:     p.UpdatedAt.UTC(),
	}
	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return profile.ErrExists
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

func (c conn) SaveProfile(ctx context.Context, p profile.Profile) error {
	res := c.db.WithContext(ctx).Model(&profileRow{}).Where("line_user_id = ?", p.LineUserID).Updates(map[string]any{
		"full_name":  p.FullName,
		"phone":      p.Phone,
		"email":      ptr(p.Email),
		"updated_at": p.UpdatedAt.UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return profile.ErrNotFound
	}
	return nil
}

// =============================================================================
// MAPPING
// =============================================================================

func toBookingRow(b leave.Booking) bookingRow {
	row := bookingRow{
		ID:         b.ID,
		Date:       b.Date.String(),
		StartMonth: b.Date.YearMonth(),
		UserID:     b.UserID,
		UserName:   b.UserName,
		Category:   string(b.Category),
		Reason:     ptr(b.Reason),
		CreatedAt:  b.CreatedAt.UTC(),
	}
	if b.EndDate != nil && !b.EndDate.IsZero() {
		end := b.EndDate.String()
		row.EndDate = &end
	}
	if b.UpdatedAt != nil {
		at := b.UpdatedAt.UTC()
		row.UpdatedAt = &at
	}
	return row
}

func (row bookingRow) toBooking() (leave.Booking, error) {
	b := leave.Booking{
		ID:        row.ID,
		UserID:    row.UserID,
		UserName:  row.UserName,
		Category:  leave.Category(row.Category),
		Reason:    deref(row.Reason),
		CreatedAt: row.CreatedAt.UTC(),
	}
	var err error
	if b.Date, err = calendar.Parse(row.Date); err != nil {
		return leave.Booking{}, fmt.Errorf("booking %s: %w", row.ID, err)
	}
	if row.EndDate != nil && *row.EndDate != "" {
		end, err := calendar.Parse(*row.EndDate)
		if err != nil {
			return leave.Booking{}, fmt.Errorf("booking %s: %w", row.ID, err)
		}
		b.EndDate = &end
	}
	if row.UpdatedAt != nil {
		at := row.UpdatedAt.UTC()
		b.UpdatedAt = &at
	}
	return b, nil
}

func toHistoryRow(e leave.HistoryEntry) (historyRow, error) {
	row := historyRow{
		ID:        e.ID,
		Action:    string(e.Action),
		BookingID: e.BookingID,
		UserID:    e.UserID,
		UserName:  e.UserName,
		Timestamp: e.Timestamp.UTC(),
	}
	var err error
	if row.OldData, err = encodeData(e.OldData); err != nil {
		return row, err
	}
	if row.NewData, err = encodeData(e.NewData); err != nil {
		return row, err
	}
	if row.BookingData, err = encodeData(e.BookingData); err != nil {
		return row, err
	}
	return row, nil
}

func (row historyRow) toEntry() (leave.HistoryEntry, error) {
	e := leave.HistoryEntry{
		ID:        row.ID,
		Action:    leave.HistoryAction(row.Action),
		BookingID: row.BookingID,
		UserID:    row.UserID,
		UserName:  row.UserName,
		Timestamp: row.Timestamp.UTC(),
	}
	var err error
	if e.OldData, err = decodeData(row.OldData); err != nil {
		return e, err
	}
	if e.NewData, err = decodeData(row.NewData); err != nil {
		return e, err
	}
	if e.BookingData, err = decodeData(row.BookingData); err != nil {
		return e, err
	}
	return e, nil
}

func encodeData(d *leave.BookingData) (*string, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	s := string(b)
	return &s, nil
}

func decodeData(s *string) (*leave.BookingData, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	var d leave.BookingData
	if err := json.Unmarshal([]byte(*s), &d); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &d, nil
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
