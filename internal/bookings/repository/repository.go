// Package repository provides pgx data access for the autolavado booking
// domain: the service catalog, booking configuration and bookings.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"conviaq_backend/platform/logger"
)

var (
	ErrNotFound        = errors.New("booking not found")
	ErrServiceNotFound = errors.New("wash service not found")
	ErrConfigNotFound  = errors.New("booking config not found")
)

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

type Repository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func New(pool *pgxpool.Pool, log *logger.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

// WashService is one catalog entry. Prices are kept in cents.
type WashService struct {
	ID              int64
	TenantID        int64
	Name            string
	PriceCents      int64
	DurationMinutes int
	IsActive        bool
}

func (r *Repository) ListServices(ctx context.Context, tenantID int64, activeOnly bool) ([]WashService, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, name, price_cents, duration_minutes, is_active
		FROM wash_services
		WHERE tenant_id = $1 AND ($2 = FALSE OR is_active)
		ORDER BY price_cents`,
		tenantID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list wash services: %w", err)
	}
	defer rows.Close()

	var items []WashService
	for rows.Next() {
		var s WashService
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Name, &s.PriceCents, &s.DurationMinutes, &s.IsActive); err != nil {
			return nil, fmt.Errorf("scan wash service: %w", err)
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *Repository) GetService(ctx context.Context, serviceID, tenantID int64) (WashService, error) {
	var s WashService
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, price_cents, duration_minutes, is_active
		FROM wash_services
		WHERE id = $1 AND tenant_id = $2`,
		serviceID, tenantID,
	).Scan(&s.ID, &s.TenantID, &s.Name, &s.PriceCents, &s.DurationMinutes, &s.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WashService{}, ErrServiceNotFound
		}
		return WashService{}, fmt.Errorf("get wash service: %w", err)
	}
	return s, nil
}

// Config is the tenant's booking window: opening hours, slot granularity and
// how many cars fit at once.
type Config struct {
	TenantID    int64
	OpenTime    string
	CloseTime   string
	SlotMinutes int
	Bays        int
	Timezone    string
}

// GetConfig loads the tenant's booking window together with its timezone:
// slot times are interpreted as local wall-clock in that zone.
func (r *Repository) GetConfig(ctx context.Context, tenantID int64) (Config, error) {
	var c Config
	err := r.pool.QueryRow(ctx, `
		SELECT bc.tenant_id, bc.open_time, bc.close_time, bc.slot_minutes, bc.bays, t.timezone
		FROM booking_configs bc
		JOIN tenants t ON t.id = bc.tenant_id
		WHERE bc.tenant_id = $1`,
		tenantID,
	).Scan(&c.TenantID, &c.OpenTime, &c.CloseTime, &c.SlotMinutes, &c.Bays, &c.Timezone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Config{}, ErrConfigNotFound
		}
		return Config{}, fmt.Errorf("get booking config: %w", err)
	}
	return c, nil
}

type Booking struct {
	ID            int64
	TenantID      int64
	WashServiceID int64
	LeadID        *int64
	CustomerName  string
	Phone         string
	Vehicle       *string
	StartsAt      time.Time
	EndsAt        time.Time
	Status        string
	CreatedAt     time.Time
}

const bookingColumns = `id, tenant_id, wash_service_id, lead_id, customer_name, phone, vehicle, starts_at, ends_at, status, created_at`

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID, &b.TenantID, &b.WashServiceID, &b.LeadID, &b.CustomerName,
		&b.Phone, &b.Vehicle, &b.StartsAt, &b.EndsAt, &b.Status, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, fmt.Errorf("scan booking: %w", err)
	}
	return b, nil
}

type CreateBookingParams struct {
	TenantID      int64
	WashServiceID int64
	LeadID        *int64
	CustomerName  string
	Phone         string
	Vehicle       *string
	StartsAt      time.Time
	EndsAt        time.Time
}

func (r *Repository) Create(ctx context.Context, params CreateBookingParams) (Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `
		INSERT INTO bookings (tenant_id, wash_service_id, lead_id, customer_name, phone, vehicle, starts_at, ends_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+bookingColumns,
		params.TenantID, params.WashServiceID, params.LeadID, params.CustomerName,
		params.Phone, params.Vehicle, params.StartsAt, params.EndsAt, StatusConfirmed))
}

func (r *Repository) GetByID(ctx context.Context, bookingID, tenantID int64) (Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings WHERE id = $1 AND tenant_id = $2`,
		bookingID, tenantID))
}

// CountOverlapping counts confirmed bookings that intersect the interval.
// Compared against the configured bay count to decide slot capacity.
func (r *Repository) CountOverlapping(ctx context.Context, tenantID int64, from, to time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM bookings
		WHERE tenant_id = $1 AND status = $2
		  AND starts_at < $4 AND ends_at > $3`,
		tenantID, StatusConfirmed, from, to,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count overlapping bookings: %w", err)
	}
	return count, nil
}

// ListBetween returns bookings starting inside the window, agenda order.
func (r *Repository) ListBetween(ctx context.Context, tenantID int64, from, to time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE tenant_id = $1 AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at`,
		tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var items []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

// SetStatus flips a booking's lifecycle state.
func (r *Repository) SetStatus(ctx context.Context, bookingID, tenantID int64, status string) (Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `
		UPDATE bookings SET status = $3
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+bookingColumns,
		bookingID, tenantID, status))
}
