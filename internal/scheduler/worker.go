package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	bookingrepo "conviaq_backend/internal/bookings/repository"
	convrepo "conviaq_backend/internal/conversations/repository"
	leadrepo "conviaq_backend/internal/leads/repository"
	"conviaq_backend/platform/config"
	"conviaq_backend/platform/logger"
	"conviaq_backend/platform/phone"
)

// BookingStore loads bookings, their wash service and the tenant's booking
// configuration for reminder texts.
type BookingStore interface {
	GetByID(ctx context.Context, bookingID, tenantID int64) (bookingrepo.Booking, error)
	GetService(ctx context.Context, serviceID, tenantID int64) (bookingrepo.WashService, error)
	GetConfig(ctx context.Context, tenantID int64) (bookingrepo.Config, error)
}

// ChannelStore resolves the tenant's WhatsApp channel.
type ChannelStore interface {
	GetChannelByTenant(ctx context.Context, tenantID int64) (convrepo.Channel, error)
}

// TextSender sends an outbound WhatsApp message through the gateway.
type TextSender interface {
	Enabled() bool
	SendText(ctx context.Context, instanceName, number, text string) (string, error)
}

// ActivityLog records delivered reminders on the lead timeline. Nil disables
// timeline entries.
type ActivityLog interface {
	CreateActivity(ctx context.Context, params leadrepo.CreateActivityParams) (leadrepo.ActivityEntry, error)
}

// Worker consumes the asynq queue and delivers booking reminders.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	bookings BookingStore
	channels ChannelStore
	sender   TextSender
	activity ActivityLog
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, bookings BookingStore, channels ChannelStore, sender TextSender, activity ActivityLog, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, fmt.Errorf("scheduler: parse redis url: %w", err)
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
	})

	w := &Worker{
		server:   server,
		mux:      asynq.NewServeMux(),
		bookings: bookings,
		channels: channels,
		sender:   sender,
		activity: activity,
		log:      log,
	}
	w.mux.HandleFunc(TypeBookingReminder, w.handleBookingReminder)
	return w, nil
}

// Run blocks until the server is shut down.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleBookingReminder(ctx context.Context, task *asynq.Task) error {
	var payload BookingReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// Payload is malformed; retrying cannot fix it.
		return fmt.Errorf("decode reminder payload: %w: %w", err, asynq.SkipRetry)
	}

	booking, err := w.bookings.GetByID(ctx, payload.BookingID, payload.TenantID)
	if err != nil {
		if errors.Is(err, bookingrepo.ErrNotFound) {
			w.log.Info("reminder skipped, booking gone", "bookingId", payload.BookingID)
			return nil
		}
		return fmt.Errorf("load booking %d: %w", payload.BookingID, err)
	}

	// Only confirmed, still-upcoming bookings get a reminder.
	if booking.Status != bookingrepo.StatusConfirmed || time.Now().After(booking.StartsAt) {
		w.log.Info("reminder skipped",
			"bookingId", booking.ID, "status", booking.Status)
		return nil
	}

	if !w.sender.Enabled() {
		w.log.Warn("reminder skipped, gateway disabled", "bookingId", booking.ID)
		return nil
	}

	channel, err := w.channels.GetChannelByTenant(ctx, booking.TenantID)
	if err != nil {
		if errors.Is(err, convrepo.ErrChannelNotFound) {
			w.log.Warn("reminder skipped, tenant has no channel",
				"bookingId", booking.ID, "tenantId", booking.TenantID)
			return nil
		}
		return fmt.Errorf("resolve channel for tenant %d: %w", booking.TenantID, err)
	}
	if channel.Status != "connected" {
		w.log.Warn("reminder skipped, channel not connected",
			"bookingId", booking.ID, "channelStatus", channel.Status)
		return nil
	}

	text := w.reminderText(ctx, booking)
	number := phone.NormalizeE164(booking.Phone)

	if _, err := w.sender.SendText(ctx, channel.InstanceName, number, text); err != nil {
		return fmt.Errorf("send reminder for booking %d: %w", booking.ID, err)
	}

	w.logTimeline(ctx, booking)
	w.log.Info("booking reminder sent", "bookingId", booking.ID, "tenantId", booking.TenantID)
	return nil
}

// logTimeline appends a reminder entry to the lead activity log for bookings
// that came out of a lead. Timeline failures never fail the task.
func (w *Worker) logTimeline(ctx context.Context, booking bookingrepo.Booking) {
	if w.activity == nil || booking.LeadID == nil {
		return
	}
	_, err := w.activity.CreateActivity(ctx, leadrepo.CreateActivityParams{
		LeadID:    *booking.LeadID,
		TenantID:  booking.TenantID,
		ActorType: leadrepo.ActorTypeSystem,
		EventType: leadrepo.EventTypeReminderSent,
		Title:     leadrepo.EventTitleReminderSent,
		Metadata:  map[string]any{"bookingId": booking.ID, "startsAt": booking.StartsAt},
	})
	if err != nil {
		w.log.DatabaseError("create reminder activity", err)
	}
}

func (w *Worker) reminderText(ctx context.Context, booking bookingrepo.Booking) string {
	serviceName := "tu servicio de lavado"
	if svc, err := w.bookings.GetService(ctx, booking.WashServiceID, booking.TenantID); err == nil {
		serviceName = svc.Name
	}
	return fmt.Sprintf(
		"Hola %s, te recordamos tu cita de %s hoy a las %s. ¡Te esperamos!",
		booking.CustomerName, serviceName,
		booking.StartsAt.In(w.tenantLocation(ctx, booking.TenantID)).Format("15:04"),
	)
}

// tenantLocation resolves the tenant's timezone so the reminder shows the
// customer's wall-clock time. Missing config or an unknown zone falls back
// to UTC.
func (w *Worker) tenantLocation(ctx context.Context, tenantID int64) *time.Location {
	cfg, err := w.bookings.GetConfig(ctx, tenantID)
	if err != nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
