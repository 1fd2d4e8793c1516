package captcha

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/validation"
)

type brokenStore struct{}

func (brokenStore) Save(context.Context, string, string, time.Duration) error {
	return errors.New("connection refused")
}

func (brokenStore) Take(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

type GateSuite struct {
	suite.Suite
	ctx     context.Context
	store   *InMemoryStore
	metrics *Metrics
	gate    *Gate
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.gate = NewGate(s.store,
		WithGenerator(FixedGenerator{Prompt: "2 + 2", Answer: "Four"}),
		WithMetrics(s.metrics),
	)
}

func (s *GateSuite) issue() string {
	issued, err := s.gate.Issue(s.ctx)
	s.Require().NoError(err)
	return issued.Key
}

func (s *GateSuite) TestDisabledGate() {
	s.Run("passes without any challenge", func() {
		s.NoError(s.gate.Evaluate(s.ctx, false, Challenge{}))
	})

	s.Run("ignores a wrong response", func() {
		s.NoError(s.gate.Evaluate(s.ctx, false, Challenge{Key: "correct", Response: "WRONG"}))
	})

	s.Run("never touches the store", func() {
		gate := NewGate(brokenStore{})
		s.NoError(gate.Evaluate(s.ctx, false, Challenge{Key: "k", Response: "r"}))
	})
}

func (s *GateSuite) TestEnabledGate() {
	s.Run("missing response is required", func() {
		err := s.gate.Evaluate(s.ctx, true, Challenge{})
		s.Require().ErrorIs(err, validation.ErrRequired)

		var fe *validation.FieldError
		s.Require().ErrorAs(err, &fe)
		s.Equal(Field, fe.Field)
		s.Equal("This field is required.", fe.Message)
	})

	s.Run("whitespace response is required", func() {
		key := s.issue()
		err := s.gate.Evaluate(s.ctx, true, Challenge{Key: key, Response: "   "})
		s.Require().ErrorIs(err, validation.ErrRequired)
	})

	s.Run("unknown key is invalid", func() {
		err := s.gate.Evaluate(s.ctx, true, Challenge{Key: "correct", Response: "WRONG"})
		s.Require().ErrorIs(err, validation.ErrInvalidCaptcha)

		var fe *validation.FieldError
		s.Require().ErrorAs(err, &fe)
		s.Equal(Field, fe.Field)
		s.Equal("Invalid CAPTCHA", fe.Message)
	})

	s.Run("response without key is invalid", func() {
		err := s.gate.Evaluate(s.ctx, true, Challenge{Response: "four"})
		s.Require().ErrorIs(err, validation.ErrInvalidCaptcha)
	})

	s.Run("wrong answer is invalid", func() {
		key := s.issue()
		err := s.gate.Evaluate(s.ctx, true, Challenge{Key: key, Response: "five"})
		s.Require().ErrorIs(err, validation.ErrInvalidCaptcha)
	})

	s.Run("matching is case-insensitive and trimmed", func() {
		key := s.issue()
		s.NoError(s.gate.Evaluate(s.ctx, true, Challenge{Key: key, Response: "  fOUR "}))
	})

	s.Run("a challenge cannot be replayed", func() {
		key := s.issue()
		s.Require().NoError(s.gate.Evaluate(s.ctx, true, Challenge{Key: key, Response: "four"}))
		err := s.gate.Evaluate(s.ctx, true, Challenge{Key: key, Response: "four"})
		s.Require().ErrorIs(err, validation.ErrInvalidCaptcha)
	})

	s.Run("a failed attempt burns the challenge", func() {
		key := s.issue()
		s.Require().Error(s.gate.Evaluate(s.ctx, true, Challenge{Key: key, Response: "five"}))
		err := s.gate.Evaluate(s.ctx, true, Challenge{Key: key, Response: "four"})
		s.Require().ErrorIs(err, validation.ErrInvalidCaptcha)
	})

	s.Run("store failure is an internal error, not a field error", func() {
		gate := NewGate(brokenStore{})
		err := gate.Evaluate(s.ctx, true, Challenge{Key: "k", Response: "r"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		_, isField := validation.AsErrors(err)
		s.False(isField)
	})
}

func (s *GateSuite) TestExpiredChallengeIsInvalid() {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store.now = func() time.Time { return now }
	gate := NewGate(s.store, WithGenerator(FixedGenerator{Prompt: "1 + 1", Answer: "2"}), WithTTL(time.Minute))

	issued, err := gate.Issue(s.ctx)
	s.Require().NoError(err)

	now = now.Add(2 * time.Minute)
	err = gate.Evaluate(s.ctx, true, Challenge{Key: issued.Key, Response: "2"})
	s.Require().ErrorIs(err, validation.ErrInvalidCaptcha)
}

func (s *GateSuite) TestMetrics() {
	key := s.issue()
	s.Require().NoError(s.gate.Evaluate(s.ctx, true, Challenge{Key: key, Response: "four"}))
	s.Require().Error(s.gate.Evaluate(s.ctx, true, Challenge{}))
	s.Require().NoError(s.gate.Evaluate(s.ctx, false, Challenge{}))

	s.Equal(1.0, testutil.ToFloat64(s.metrics.ChallengesIssued))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Evaluations.WithLabelValues(outcomePassed)))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Evaluations.WithLabelValues(outcomeRequired)))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Evaluations.WithLabelValues(outcomeDisabled)))
}

func (s *GateSuite) TestIssueStoreFailure() {
	gate := NewGate(brokenStore{})
	_, err := gate.Issue(s.ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
