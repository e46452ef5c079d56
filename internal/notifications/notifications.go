package notifications

import (
	"context"
	"fmt"
	"medisched/pkg/kafka"
	"medisched/pkg/logger"
	"medisched/pkg/model"
	"sync"
	"time"
)

const schemaVersion = "1"

type Dispatcher interface {
	Dispatch(ctx context.Context, n model.Notification) error
}

// KafkaDispatcher hands notifications to the delivery service through the
// notification topic, keyed by booking so events for one booking stay
// ordered.
type KafkaDispatcher struct {
	publisher kafka.Publisher
	source    string
}

func NewKafkaDispatcher(publisher kafka.Publisher, source string) *KafkaDispatcher {
	return &KafkaDispatcher{publisher: publisher, source: source}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, n model.Notification) error {
	msg, err := kafka.NewMessage().
		WithKey(n.BookingID).
		WithValue(n).
		WithEventType(string(n.Kind)).
		WithCorrelationID(n.BookingID).
		WithSchemaVersion(schemaVersion).
		WithSource(d.source).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build notification: %w", err)
	}
	return d.publisher.Publish(ctx, msg)
}

type LogDispatcher struct {
	log *logger.Logger
}

func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, n model.Notification) error {
	d.log.InfoContext(ctx, "Notification",
		"kind", n.Kind,
		"booking_id", n.BookingID,
		"patient_id", n.PatientID,
		"start_time", n.StartTime,
	)
	return nil
}

// Async runs dispatches in the background. Failures are logged and never
// reach the caller. Close waits for in-flight dispatches; anything
// dispatched after Close is dropped.
type Async struct {
	next    Dispatcher
	timeout time.Duration
	log     *logger.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsync(next Dispatcher, timeout time.Duration, log *logger.Logger) *Async {
	return &Async{next: next, timeout: timeout, log: log}
}

func (a *Async) Dispatch(ctx context.Context, n model.Notification) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.log.Warn("Notification dropped after shutdown", "kind", n.Kind, "booking_id", n.BookingID)
		return nil
	}
	a.wg.Add(1)
	a.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.log.Error("Notification dispatch panicked", "booking_id", n.BookingID, "panic", r)
			}
		}()

		if a.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.timeout)
			defer cancel()
		}
		if err := a.next.Dispatch(ctx, n); err != nil {
			a.log.Warn("Notification dispatch failed",
				"kind", n.Kind,
				"booking_id", n.BookingID,
				"error", err,
			)
		}
	}()
	return nil
}

func (a *Async) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.wg.Wait()
}

// Recorder keeps dispatched notifications in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []model.Notification
	Err  error
}

func (r *Recorder) Dispatch(ctx context.Context, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.Err
}

func (r *Recorder) Sent() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Notification(nil), r.sent...)
}
