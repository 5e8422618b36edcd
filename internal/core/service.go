// Package core implements the versioned-resource model: source, collection,
// concept and mapping roots with immutable version chains, the collection
// reference set with cascade and dedup semantics, collection version seeding,
// and the schema-selectable concept validation engine.
package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"termcore/internal/config"
	"termcore/internal/infra/persistence/memory"
	"termcore/pkg/domain"
)

// Service exposes the transactional operations of the terminology core.
type Service struct {
	store     domain.PersistentStore
	refValues config.ReferenceValues
	logger    zerolog.Logger
	metrics   MetricsRecorder
	notifier  Notifier
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithLogger injects a structured logger. The default logger is disabled.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithMetricsRecorder injects a metrics recorder.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithNotifier injects the hook invoked after successful reference-set
// changes.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithReferenceValues overrides the validation vocabularies.
func WithReferenceValues(rv config.ReferenceValues) ServiceOption {
	return func(s *Service) { s.refValues = rv }
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		refValues: config.DefaultReferenceValues(),
		logger:    zerolog.Nop(),
		metrics:   noopMetrics{},
		notifier:  NoopNotifier{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Store returns the underlying persistent store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// instrument wraps an operation with duration metrics and logging.
func (s *Service) instrument(ctx context.Context, operation string, fn func() error) error {
	started := time.Now()
	err := fn()
	s.metrics.Observe(ctx, operation, err == nil, time.Since(started))
	evt := s.logger.Debug()
	if err != nil {
		evt = s.logger.Warn().Err(err)
	}
	evt.Str("operation", operation).Dur("duration", time.Since(started)).Msg("core operation")
	return err
}
