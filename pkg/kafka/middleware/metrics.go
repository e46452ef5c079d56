package kafka_middleware

import (
	"context"
	"medisched/pkg/kafka"
	"sync/atomic"
	"time"
)

// Metrics counts publish outcomes per producer.
type Metrics struct {
	published     atomic.Int64
	failed        atomic.Int64
	totalDuration atomic.Int64
}

type Snapshot struct {
	Published          int64         `json:"published"`
	Failed             int64         `json:"failed"`
	AvgPublishDuration time.Duration `json:"avg_publish_duration"`
}

func (m *Metrics) Middleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		m.totalDuration.Add(int64(time.Since(start)))
		if err != nil {
			m.failed.Add(1)
		} else {
			m.published.Add(1)
		}
		return err
	}
}

func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Published: m.published.Load(),
		Failed:    m.failed.Load(),
	}
	if total := s.Published + s.Failed; total > 0 {
		s.AvgPublishDuration = time.Duration(m.totalDuration.Load() / total)
	}
	return s
}
