package app

import (
	"time"

	"github.com/visicontrol/visicontrol/internal/app/jobs"
	"github.com/visicontrol/visicontrol/internal/realtime"
	"github.com/visicontrol/visicontrol/internal/services"
)

// HubOptions converts NotificationConfig into live delivery channel options.
func (c NotificationConfig) HubOptions() realtime.Options {
	return realtime.Options{
		HeartbeatInterval: c.HeartbeatInterval,
		SendBuffer:        c.SendBuffer,
	}
}

// ListLimits returns the default and maximum page sizes for notification listing.
func (c NotificationConfig) ListLimits() services.ListLimits {
	limits := services.ListLimits{
		Default: c.DefaultLimit,
		Max:     c.MaxLimit,
	}
	if limits.Max <= 0 {
		limits.Max = services.MaxListLimit
	}
	if limits.Default <= 0 {
		limits.Default = services.DefaultListLimit
	}
	if limits.Default > limits.Max {
		limits.Default = limits.Max
	}
	return limits
}

// SchedulerConfig converts NotificationConfig into background job settings.
func (c NotificationConfig) SchedulerConfig() jobs.Config {
	timeout := c.ReminderTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return jobs.Config{
		ReminderSchedule:     c.ReminderSchedule,
		TokenCleanupSchedule: c.TokenCleanupSchedule,
		JobTimeout:           timeout,
	}
}
