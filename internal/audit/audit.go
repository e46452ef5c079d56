package audit

import (
	"context"
	"fmt"
	"medisched/pkg/kafka"
	"medisched/pkg/logger"
	"medisched/pkg/model"
	"sync"
)

const schemaVersion = "1"

// Sink records audit events for booking attempts.
type Sink interface {
	Record(ctx context.Context, event model.AuditEvent) error
}

// KafkaSink publishes events to the audit topic, keyed by actor.
type KafkaSink struct {
	publisher kafka.Publisher
	source    string
}

func NewKafkaSink(publisher kafka.Publisher, source string) *KafkaSink {
	return &KafkaSink{publisher: publisher, source: source}
}

func (s *KafkaSink) Record(ctx context.Context, event model.AuditEvent) error {
	key := event.ActorID
	if key == "" {
		key = "anonymous"
	}
	msg, err := kafka.NewMessage().
		WithKey(key).
		WithValue(event).
		WithEventType(string(event.Action)).
		WithSchemaVersion(schemaVersion).
		WithSource(s.source).
		WithTimestamp(event.OccurredAt).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build audit event: %w", err)
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}

// LogSink writes events to the structured log. Used when Kafka is off.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Record(ctx context.Context, event model.AuditEvent) error {
	s.log.InfoContext(ctx, "Audit event",
		"actor_id", event.ActorID,
		"action", event.Action,
		"description", event.Description,
		"details", event.Details,
		"occurred_at", event.OccurredAt,
	)
	return nil
}

// MemorySink keeps events in order of arrival.
type MemorySink struct {
	mu     sync.Mutex
	events []model.AuditEvent
}

func (s *MemorySink) Record(ctx context.Context, event model.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemorySink) Events() []model.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditEvent(nil), s.events...)
}
