package notify

import (
	"context"
	"smartdorm/pkg/logger"
	"sync"
	"time"
)

const sendTimeout = 15 * time.Second

// Dispatcher is a bounded in-process queue drained by a fixed set of
// workers. A full queue drops the notification with an error log.
type Dispatcher struct {
	sender  Sender
	log     *logger.Logger
	queue   chan Notification
	workers int

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, log *logger.Logger, queueSize, workers int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		sender:  sender,
		log:     log.Component("notify-dispatcher"),
		queue:   make(chan Notification, queueSize),
		workers: workers,
	}
}

func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	d.log.Info("Notification dispatcher started", "workers", d.workers, "queue_size", cap(d.queue))
}

func (d *Dispatcher) Notify(ns ...Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, n := range ns {
		if d.closed {
			d.log.Error("Notification dropped, dispatcher stopped", "event", n.Event, "recipient", n.Recipient)
			continue
		}
		select {
		case d.queue <- n:
		default:
			d.log.Error("Notification dropped, queue full", "event", n.Event, "recipient", n.Recipient)
		}
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, n); err != nil {
		d.log.Error("Failed to deliver notification",
			"event", n.Event,
			"recipient", n.Recipient,
			"error", err,
		)
		return
	}
	d.log.Debug("Notification delivered", "event", n.Event, "recipient", n.Recipient)
}

// Stop refuses new notifications and waits for the queue to drain.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		for n := range d.queue {
			d.log.Warn("Notification discarded, dispatcher never started", "event", n.Event)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.log.Info("Notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
