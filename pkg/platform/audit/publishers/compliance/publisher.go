// Package compliance emits account-lifecycle audit events with fail-closed
// semantics: the caller blocks until the store accepts the event, and a
// failed write must fail the operation that produced it.
package compliance

import (
	"context"
	"fmt"
	"log/slog"

	audit "registrar/pkg/platform/audit"
	"registrar/pkg/platform/middleware/device"
	"registrar/pkg/requestcontext"
)

// Publisher writes compliance events synchronously.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit validates and persists event. Request metadata missing from the
// event is filled from ctx.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit event requires Action")
	}
	category := audit.AuditEvent(event.Action).Category()
	if category == audit.CategoryCompliance && event.UserID.IsNil() {
		return fmt.Errorf("compliance event %q requires UserID", event.Action)
	}
	event.Category = category
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.Device == "" {
		event.Device = device.FromContext(ctx)
	}

	if err := p.store.Append(ctx, event); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: audit persistence failed",
				"action", event.Action,
				"user_id", event.UserID.String(),
				"error", err,
			)
		}
		return fmt.Errorf("audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.IncEventsEmitted(string(category))
	}
	return nil
}
