// Package service implements the autolavado booking workflows: the wash
// service catalog, slot availability and the booking lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"conviaq_backend/internal/bookings/repository"
	"conviaq_backend/internal/bookings/transport"
	appevents "conviaq_backend/internal/events"
	leadrepo "conviaq_backend/internal/leads/repository"
	"conviaq_backend/platform/apperr"
	"conviaq_backend/platform/logger"
	"conviaq_backend/platform/phone"
)

// Store is the data access surface the booking service needs.
type Store interface {
	ListServices(ctx context.Context, tenantID int64, activeOnly bool) ([]repository.WashService, error)
	GetService(ctx context.Context, serviceID, tenantID int64) (repository.WashService, error)
	GetConfig(ctx context.Context, tenantID int64) (repository.Config, error)
	Create(ctx context.Context, params repository.CreateBookingParams) (repository.Booking, error)
	GetByID(ctx context.Context, bookingID, tenantID int64) (repository.Booking, error)
	CountOverlapping(ctx context.Context, tenantID int64, from, to time.Time) (int, error)
	ListBetween(ctx context.Context, tenantID int64, from, to time.Time) ([]repository.Booking, error)
	SetStatus(ctx context.Context, bookingID, tenantID int64, status string) (repository.Booking, error)
}

// Scheduler enqueues the pre-appointment WhatsApp reminder. Nil disables
// reminders (no Redis configured).
type Scheduler interface {
	ScheduleBookingReminder(ctx context.Context, bookingID, tenantID int64, at time.Time) error
	CancelBookingReminder(bookingID int64) error
}

// ActivityLog records bookings on the originating lead's timeline. Nil
// disables timeline entries.
type ActivityLog interface {
	CreateActivity(ctx context.Context, params leadrepo.CreateActivityParams) (leadrepo.ActivityEntry, error)
}

const reminderLead = time.Hour

type Service struct {
	store     Store
	scheduler Scheduler
	activity  ActivityLog
	bus       appevents.Bus
	log       *logger.Logger
	now       func() time.Time
}

func New(store Store, scheduler Scheduler, activity ActivityLog, bus appevents.Bus, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		scheduler: scheduler,
		activity:  activity,
		bus:       bus,
		log:       log,
		now:       time.Now,
	}
}

func (s *Service) ListServices(ctx context.Context, tenantID int64) ([]transport.WashServiceResponse, error) {
	services, err := s.store.ListServices(ctx, tenantID, true)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "could not load services", err)
	}
	out := make([]transport.WashServiceResponse, 0, len(services))
	for _, svc := range services {
		out = append(out, transport.ToWashServiceResponse(svc))
	}
	return out, nil
}

// Availability returns every slot of the given day for a wash service. A slot
// is available when it starts in the future and fewer confirmed bookings
// overlap it than the tenant has bays.
func (s *Service) Availability(ctx context.Context, tenantID, serviceID int64, date string) (transport.AvailabilityResponse, error) {
	svc, err := s.getActiveService(ctx, tenantID, serviceID)
	if err != nil {
		return transport.AvailabilityResponse{}, err
	}

	cfg, err := s.getConfig(ctx, tenantID)
	if err != nil {
		return transport.AvailabilityResponse{}, err
	}

	day, loc, err := parseDay(date, cfg.Timezone)
	if err != nil {
		return transport.AvailabilityResponse{}, err
	}

	openAt, err := atClock(day, cfg.OpenTime, loc)
	if err != nil {
		return transport.AvailabilityResponse{}, apperr.Wrap(apperr.KindInternal, "invalid booking config", err)
	}
	closeAt, err := atClock(day, cfg.CloseTime, loc)
	if err != nil {
		return transport.AvailabilityResponse{}, apperr.Wrap(apperr.KindInternal, "invalid booking config", err)
	}

	duration := time.Duration(svc.DurationMinutes) * time.Minute
	step := time.Duration(cfg.SlotMinutes) * time.Minute
	now := s.now()

	var slots []transport.Slot
	for start := openAt; !start.Add(duration).After(closeAt); start = start.Add(step) {
		end := start.Add(duration)
		available := start.After(now)
		if available {
			overlapping, err := s.store.CountOverlapping(ctx, tenantID, start, end)
			if err != nil {
				return transport.AvailabilityResponse{}, apperr.Wrap(apperr.KindInternal, "could not check availability", err)
			}
			available = overlapping < cfg.Bays
		}
		slots = append(slots, transport.Slot{StartsAt: start, EndsAt: end, Available: available})
	}

	return transport.AvailabilityResponse{Date: date, WashServiceID: serviceID, Slots: slots}, nil
}

// Create books a wash. Capacity is re-checked at insert time; a full slot
// yields a conflict even if the caller saw it as available moments earlier.
func (s *Service) Create(ctx context.Context, tenantID int64, req transport.CreateBookingRequest) (transport.BookingResponse, error) {
	svc, err := s.getActiveService(ctx, tenantID, req.WashServiceID)
	if err != nil {
		return transport.BookingResponse{}, err
	}

	cfg, err := s.getConfig(ctx, tenantID)
	if err != nil {
		return transport.BookingResponse{}, err
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return transport.BookingResponse{}, apperr.Validation("startsAt must be an RFC 3339 timestamp")
	}
	if !startsAt.After(s.now()) {
		return transport.BookingResponse{}, apperr.Validation("booking must start in the future")
	}

	endsAt := startsAt.Add(time.Duration(svc.DurationMinutes) * time.Minute)

	if err := s.checkOperatingHours(cfg, startsAt, endsAt); err != nil {
		return transport.BookingResponse{}, err
	}

	overlapping, err := s.store.CountOverlapping(ctx, tenantID, startsAt, endsAt)
	if err != nil {
		return transport.BookingResponse{}, apperr.Wrap(apperr.KindInternal, "could not check availability", err)
	}
	if overlapping >= cfg.Bays {
		return transport.BookingResponse{}, apperr.Conflict("no bays available at that time")
	}

	normalized := phone.NormalizeE164(req.Phone)
	if normalized == "" {
		return transport.BookingResponse{}, apperr.Validation("phone number is not valid")
	}

	booking, err := s.store.Create(ctx, repository.CreateBookingParams{
		TenantID:      tenantID,
		WashServiceID: svc.ID,
		LeadID:        req.LeadID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		Phone:         normalized,
		Vehicle:       req.Vehicle,
		StartsAt:      startsAt,
		EndsAt:        endsAt,
	})
	if err != nil {
		return transport.BookingResponse{}, apperr.Wrap(apperr.KindInternal, "could not create booking", err)
	}

	s.bus.Publish(ctx, appevents.BookingCreated{
		BaseEvent: appevents.NewBaseEvent(),
		BookingID: booking.ID,
		TenantID:  booking.TenantID,
	})

	s.logTimeline(ctx, booking)
	s.scheduleReminder(ctx, booking)

	return transport.ToBookingResponse(booking), nil
}

// logTimeline appends a booking entry to the lead activity feed for bookings
// opened from a lead. Timeline failures never fail the booking.
func (s *Service) logTimeline(ctx context.Context, booking repository.Booking) {
	if s.activity == nil || booking.LeadID == nil {
		return
	}
	_, err := s.activity.CreateActivity(ctx, leadrepo.CreateActivityParams{
		LeadID:    *booking.LeadID,
		TenantID:  booking.TenantID,
		ActorType: leadrepo.ActorTypeUser,
		EventType: leadrepo.EventTypeBookingCreated,
		Title:     leadrepo.EventTitleBookingCreated,
		Metadata:  map[string]any{"bookingId": booking.ID, "startsAt": booking.StartsAt},
	})
	if err != nil {
		s.log.DatabaseError("create booking activity", err)
	}
}

// Cancel marks a booking cancelled and drops its pending reminder.
// Cancelling an already-cancelled booking is a no-op.
func (s *Service) Cancel(ctx context.Context, tenantID, bookingID int64) (transport.BookingResponse, error) {
	booking, err := s.store.GetByID(ctx, bookingID, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.BookingResponse{}, apperr.NotFound("booking not found")
		}
		return transport.BookingResponse{}, apperr.Wrap(apperr.KindInternal, "could not load booking", err)
	}

	switch booking.Status {
	case repository.StatusCancelled:
		return transport.ToBookingResponse(booking), nil
	case repository.StatusCompleted:
		return transport.BookingResponse{}, apperr.Conflict("completed bookings cannot be cancelled")
	}

	booking, err = s.store.SetStatus(ctx, bookingID, tenantID, repository.StatusCancelled)
	if err != nil {
		return transport.BookingResponse{}, apperr.Wrap(apperr.KindInternal, "could not cancel booking", err)
	}

	if s.scheduler != nil {
		if err := s.scheduler.CancelBookingReminder(bookingID); err != nil {
			s.log.Warn("reminder cancellation failed", "bookingId", bookingID, "error", err)
		}
	}

	return transport.ToBookingResponse(booking), nil
}

// Agenda lists bookings for a window of whole days starting at the given date.
func (s *Service) Agenda(ctx context.Context, tenantID int64, date string, days int) ([]transport.BookingResponse, error) {
	if days < 1 || days > 31 {
		return nil, apperr.Validation("days must be between 1 and 31")
	}

	cfg, err := s.getConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	day, _, err := parseDay(date, cfg.Timezone)
	if err != nil {
		return nil, err
	}

	bookings, err := s.store.ListBetween(ctx, tenantID, day, day.AddDate(0, 0, days))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "could not load agenda", err)
	}
	return transport.ToBookingResponses(bookings), nil
}

func (s *Service) getActiveService(ctx context.Context, tenantID, serviceID int64) (repository.WashService, error) {
	svc, err := s.store.GetService(ctx, serviceID, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrServiceNotFound) {
			return repository.WashService{}, apperr.NotFound("wash service not found")
		}
		return repository.WashService{}, apperr.Wrap(apperr.KindInternal, "could not load service", err)
	}
	if !svc.IsActive {
		return repository.WashService{}, apperr.Validation("wash service is not active")
	}
	return svc, nil
}

func (s *Service) getConfig(ctx context.Context, tenantID int64) (repository.Config, error) {
	cfg, err := s.store.GetConfig(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrConfigNotFound) {
			return repository.Config{}, apperr.Validation("tenant has no booking configuration")
		}
		return repository.Config{}, apperr.Wrap(apperr.KindInternal, "could not load booking config", err)
	}
	return cfg, nil
}

func (s *Service) checkOperatingHours(cfg repository.Config, startsAt, endsAt time.Time) error {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "invalid tenant timezone", err)
	}

	localStart := startsAt.In(loc)
	day := time.Date(localStart.Year(), localStart.Month(), localStart.Day(), 0, 0, 0, 0, loc)

	openAt, err := atClock(day, cfg.OpenTime, loc)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "invalid booking config", err)
	}
	closeAt, err := atClock(day, cfg.CloseTime, loc)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "invalid booking config", err)
	}

	if startsAt.Before(openAt) || endsAt.After(closeAt) {
		return apperr.Validation(fmt.Sprintf("bookings must fall between %s and %s", cfg.OpenTime, cfg.CloseTime))
	}
	return nil
}

func (s *Service) scheduleReminder(ctx context.Context, booking repository.Booking) {
	if s.scheduler == nil {
		return
	}
	at := booking.StartsAt.Add(-reminderLead)
	if err := s.scheduler.ScheduleBookingReminder(ctx, booking.ID, booking.TenantID, at); err != nil {
		// The booking stands; only the reminder is lost.
		s.log.Warn("reminder scheduling failed", "bookingId", booking.ID, "error", err)
	}
}

// parseDay parses a YYYY-MM-DD date as midnight in the tenant's timezone.
func parseDay(date, timezone string) (time.Time, *time.Location, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, nil, apperr.Wrap(apperr.KindInternal, "invalid tenant timezone", err)
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, nil, apperr.Validation("date must be YYYY-MM-DD")
	}
	return day, loc, nil
}

// atClock places an HH:MM wall-clock time on the given day.
func atClock(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	hh, mm, ok := strings.Cut(clock, ":")
	if !ok {
		return time.Time{}, fmt.Errorf("malformed clock time %q", clock)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours < 0 || hours > 23 {
		return time.Time{}, fmt.Errorf("malformed clock time %q", clock)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 || minutes > 59 {
		return time.Time{}, fmt.Errorf("malformed clock time %q", clock)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hours, minutes, 0, 0, loc), nil
}
