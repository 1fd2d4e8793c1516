package captcha

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/platform/validation"
	"registrar/pkg/requestcontext"
)

const defaultTTL = 5 * time.Minute

// Gate issues challenges and decides whether a submitted response passes.
// Whether the gate is enforced is not Gate state: callers pass the flag on
// every Evaluate.
type Gate struct {
	store     ChallengeStore
	generator Generator
	ttl       time.Duration
	metrics   *Metrics
}

type Option func(*Gate)

func WithGenerator(g Generator) Option {
	return func(gate *Gate) {
		gate.generator = g
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(gate *Gate) {
		if ttl > 0 {
			gate.ttl = ttl
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(gate *Gate) {
		gate.metrics = m
	}
}

func NewGate(store ChallengeStore, opts ...Option) *Gate {
	g := &Gate{store: store, generator: MathGenerator{}, ttl: defaultTTL}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Issue mints a challenge and stores its answer for the configured TTL.
func (g *Gate) Issue(ctx context.Context) (*Issued, error) {
	prompt, answer := g.generator.Generate()
	key := uuid.NewString()
	if err := g.store.Save(ctx, key, answer, g.ttl); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store captcha challenge")
	}
	if g.metrics != nil {
		g.metrics.ChallengesIssued.Inc()
	}
	return &Issued{
		Key:       key,
		Prompt:    prompt,
		ExpiresAt: requestcontext.Now(ctx).Add(g.ttl),
	}, nil
}

// Evaluate checks challenge when enabled is true.
//
// It returns nil when the gate is disabled or the response matches, a
// *validation.FieldError on Field for a missing (ErrRequired) or wrong
// (ErrInvalidCaptcha) response, and a domain error when the store fails.
// The challenge key is consumed by the attempt either way.
func (g *Gate) Evaluate(ctx context.Context, enabled bool, challenge Challenge) error {
	if !enabled {
		g.observe(outcomeDisabled)
		return nil
	}

	response := strings.TrimSpace(challenge.Response)
	if response == "" {
		g.observe(outcomeRequired)
		return validation.ErrRequired.On(Field)
	}
	key := strings.TrimSpace(challenge.Key)
	if key == "" {
		g.observe(outcomeInvalid)
		return validation.ErrInvalidCaptcha.On(Field)
	}

	expected, err := g.store.Take(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			g.observe(outcomeInvalid)
			return validation.ErrInvalidCaptcha.On(Field)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load captcha challenge")
	}
	if !strings.EqualFold(strings.TrimSpace(expected), response) {
		g.observe(outcomeInvalid)
		return validation.ErrInvalidCaptcha.On(Field)
	}

	g.observe(outcomePassed)
	return nil
}

func (g *Gate) observe(outcome string) {
	if g.metrics != nil {
		g.metrics.Evaluations.WithLabelValues(outcome).Inc()
	}
}
