package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"conviaq_backend/platform/config"
	"conviaq_backend/platform/logger"
)

// Client enqueues delayed jobs. A nil Client disables scheduling; bookings
// are then created without reminders.
type Client struct {
	inner     *asynq.Client
	inspector *asynq.Inspector
	queue     string
	log       *logger.Logger
}

// NewClient connects the asynq producer. Returns nil when Redis is not
// configured.
func NewClient(cfg config.SchedulerConfig, log *logger.Logger) (*Client, error) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}

	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, fmt.Errorf("scheduler: parse redis url: %w", err)
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		inner:     asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     queue,
		log:       log,
	}, nil
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}

// ScheduleBookingReminder enqueues a reminder to fire at the given time.
// Times already in the past are skipped. Re-scheduling the same booking
// replaces the pending reminder because the task id is derived from the
// booking id.
func (c *Client) ScheduleBookingReminder(ctx context.Context, bookingID, tenantID int64, at time.Time) error {
	if at.Before(time.Now()) {
		return nil
	}

	task, taskID, err := NewBookingReminderTask(bookingID, tenantID)
	if err != nil {
		return err
	}

	// Drop a previous reminder for this booking so the new schedule wins.
	_ = c.inspector.DeleteTask(c.queue, fmt.Sprintf("booking-reminder-%d", bookingID))

	info, err := c.inner.EnqueueContext(ctx, task,
		taskID,
		asynq.Queue(c.queue),
		asynq.ProcessAt(at),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return fmt.Errorf("scheduler: enqueue reminder: %w", err)
	}

	c.log.Info("booking reminder scheduled",
		"bookingId", bookingID, "taskId", info.ID, "at", at)
	return nil
}

// CancelBookingReminder drops a pending reminder for a cancelled booking.
func (c *Client) CancelBookingReminder(bookingID int64) error {
	taskID := fmt.Sprintf("booking-reminder-%d", bookingID)
	if err := c.inspector.DeleteTask(c.queue, taskID); err != nil {
		// A reminder that already ran or never existed is fine.
		c.log.Debug("reminder cancel skipped", "bookingId", bookingID, "error", err)
	}
	return nil
}

func (c *Client) Close() error {
	c.inspector.Close()
	return c.inner.Close()
}
