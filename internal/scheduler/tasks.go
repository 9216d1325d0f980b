// Package scheduler wraps asynq for delayed background jobs, currently the
// booking reminder sent one hour before a wash appointment.
package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeBookingReminder is the task type for pre-appointment reminders.
const TypeBookingReminder = "booking:reminder"

// BookingReminderPayload identifies the booking to remind about.
type BookingReminderPayload struct {
	BookingID int64 `json:"bookingId"`
	TenantID  int64 `json:"tenantId"`
}

// NewBookingReminderTask builds the reminder task. The task id is derived
// from the booking so a rescheduled booking replaces its pending reminder
// instead of stacking a second one.
func NewBookingReminderTask(bookingID, tenantID int64) (*asynq.Task, asynq.Option, error) {
	payload, err := json.Marshal(BookingReminderPayload{BookingID: bookingID, TenantID: tenantID})
	if err != nil {
		return nil, nil, fmt.Errorf("scheduler: encode payload: %w", err)
	}
	taskID := asynq.TaskID(fmt.Sprintf("booking-reminder-%d", bookingID))
	return asynq.NewTask(TypeBookingReminder, payload), taskID, nil
}
