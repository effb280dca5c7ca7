// Package testutil holds the configuration, clock and notification fakes
// shared by the service and handler tests.
package testutil

import (
	"io"
	"smartdorm/pkg/config"
	"smartdorm/pkg/logger"
	"smartdorm/pkg/notify"
	"sync"
	"time"
)

// Clock is a settable time source for config.Config.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func NewLogger() *logger.Logger {
	return logger.New(logger.Config{Output: io.Discard, Service: "test"})
}

// NewConfig returns a UTC configuration with the default rate card whose
// clock is clock.
func NewConfig(clock *Clock) *config.Config {
	return &config.Config{
		MongoDatabaseName: "smartdorm_test",
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		Rates: config.RateCard{
			WaterPerUnit:    config.DefaultWaterRate,
			ElectricPerUnit: config.DefaultElectricRate,
			ServiceFee:      config.DefaultServiceFee,
			FinePerDay:      config.DefaultFinePerDay,
			DueDay:          config.DefaultBillDueDay,
		},
		TimeZone:        "UTC",
		Location:        time.UTC,
		AdminRecipient:  "admin",
		AdminPhone:      "+66800000000",
		PublicBaseURL:   "https://dorm.example.com",
		OverdueSchedule: config.DefaultOverdueSchedule,
		OverdueWorkers:  4,
		Clock:           clock.Now,
		Log:             NewLogger(),
	}
}

// Notifier records every notification it is handed.
type Notifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *Notifier) Notify(ns ...notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, ns...)
}

func (n *Notifier) Sent() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notification(nil), n.sent...)
}

// Events returns the events sent to recipient, in order.
func (n *Notifier) Events(recipient string) []string {
	var events []string
	for _, s := range n.Sent() {
		if s.Recipient == recipient {
			events = append(events, s.Event)
		}
	}
	return events
}

func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}
