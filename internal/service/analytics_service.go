package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coldreach/coldreach-backend/internal/model"
	"github.com/coldreach/coldreach-backend/internal/repository"
)

// AnalyticsService records delivery events into the daily metric counters.
// Tracking is fire and forget: TrackEvent hands the event to a buffered
// channel and returns immediately; a background drain goroutine writes it
// out and logs failures instead of propagating them. Analytics must never
// fail or slow down a send.
type AnalyticsService struct {
	metrics repository.MetricsRepositoryInterface
	logger  *slog.Logger

	events chan model.AnalyticsEvent
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewAnalyticsService(metrics repository.MetricsRepositoryInterface, logger *slog.Logger) *AnalyticsService {
	s := &AnalyticsService{
		metrics: metrics,
		logger:  logger,
		events:  make(chan model.AnalyticsEvent, 256),
	}
	s.wg.Add(1)
	go s.drain()
	return s
}

// TrackEvent enqueues the event without blocking. If the buffer is full, or
// the service is already closed, the event is dropped and counted against
// the log, not the caller.
func (s *AnalyticsService) TrackEvent(ev model.AnalyticsEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("analytics closed, dropping event",
			"tenant_id", ev.TenantID, "type", ev.Type)
		return
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("analytics buffer full, dropping event",
			"tenant_id", ev.TenantID, "type", ev.Type)
	}
}

func (s *AnalyticsService) drain() {
	defer s.wg.Done()
	for ev := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.metrics.RecordEvent(ctx, ev); err != nil {
			s.logger.Error("failed to record analytics event",
				"tenant_id", ev.TenantID, "type", ev.Type, "error", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits for the buffer to flush.
func (s *AnalyticsService) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
