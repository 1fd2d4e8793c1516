package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"registrar/internal/accounts/metrics"
	"registrar/internal/accounts/models"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	audit "registrar/pkg/platform/audit"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/platform/validation"
	"registrar/pkg/requestcontext"
)

var tracer = otel.Tracer("registrar/internal/accounts/service")

// Settings are the registration knobs read on every request.
type Settings struct {
	// UseCaptcha is handed to the CAPTCHA gate at evaluation time.
	UseCaptcha        bool
	PasswordMinLength int
}

// Service registers accounts and manages their activation.
type Service struct {
	accounts       AccountStore
	tx             StoreTx
	captcha        CaptchaGate
	hasher         PasswordHasher
	settings       Settings
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithStoreTx replaces the default process-local lock. Use it whenever the
// store is shared between processes.
func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func New(accounts AccountStore, gate CaptchaGate, hasher PasswordHasher, settings Settings, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, errors.New("accounts store is required")
	}
	if gate == nil {
		return nil, errors.New("captcha gate is required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	s := &Service{
		accounts: accounts,
		captcha:  gate,
		hasher:   hasher,
		settings: settings,
		tx:       &lockTx{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register validates form and builds the account it describes. With commit
// the account is persisted before returning; without it the caller gets an
// account with no identity that no store reader can see, and may hand it to
// Persist later.
//
// Field failures come back as validation.Errors.
func (s *Service) Register(ctx context.Context, form *models.RegistrationForm, commit bool) (*models.Account, error) {
	ctx, span := tracer.Start(ctx, "accounts.Register",
		trace.WithAttributes(attribute.Bool("registration.commit", commit)))
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveRegister(time.Now())
	}

	if form == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "registration form is required")
	}
	form.Normalize()

	if err := s.pipeline().Run(ctx, form); err != nil {
		if fieldErrs, ok := validation.AsErrors(err); ok {
			span.SetStatus(codes.Error, "validation failed")
			s.recordRejection(ctx, form, fieldErrs)
			return nil, fieldErrs
		}
		return nil, s.failRegistration(span, err, "failed to validate registration")
	}

	hash, err := s.hasher.Hash(form.Password1)
	if err != nil {
		return nil, s.failRegistration(span, err, "failed to hash password")
	}
	existing, err := s.accounts.CountSuperusers(ctx)
	if err != nil {
		return nil, s.failRegistration(span, err, "failed to count superusers")
	}
	account := Build(form, hash, existing, requestcontext.Now(ctx))

	if !commit {
		s.incRegistration(metrics.OutcomeDeferred)
		return account, nil
	}
	return s.Persist(ctx, account)
}

// Persist writes a built account and assigns its identity. The bootstrap
// rule is applied again under the store transaction, so an account built
// against a stale count cannot become a second superuser.
//
// On success account is overwritten with the stored values: ID is set and
// IsSuperuser/IsActive may differ from what Build returned if a superuser
// was created in between. Callers must read the flags from the returned
// account, not from an earlier copy. On failure account is left untouched.
func (s *Service) Persist(ctx context.Context, account *models.Account) (*models.Account, error) {
	ctx, span := tracer.Start(ctx, "accounts.Persist")
	defer span.End()

	if account == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "account is required")
	}
	if account.IsPersisted() {
		return nil, dErrors.New(dErrors.CodeConflict, "account is already persisted")
	}

	candidate := *account
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.accounts.CountSuperusers(txCtx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count superusers")
		}
		applyBootstrapRule(&candidate, existing)
		candidate.ID = id.NewUserID()

		if err := s.accounts.Create(txCtx, &candidate); err != nil {
			switch {
			case errors.Is(err, models.ErrUsernameTaken):
				return validation.Errors{validation.ErrDuplicateUsername.On(models.FieldUsername)}
			case errors.Is(err, models.ErrEmailTaken):
				return validation.Errors{validation.ErrDuplicateEmail.On(models.FieldEmail)}
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
		}
		return s.emitCreated(txCtx, &candidate)
	})
	if err != nil {
		if fieldErrs, ok := validation.AsErrors(err); ok {
			span.SetStatus(codes.Error, "duplicate account")
			s.incRegistration(metrics.OutcomeRejected)
			return nil, fieldErrs
		}
		return nil, s.failRegistration(span, err, "failed to persist account")
	}

	*account = candidate
	span.SetAttributes(
		attribute.String("account.id", account.ID.String()),
		attribute.Bool("account.superuser", account.IsSuperuser),
	)
	s.incRegistration(metrics.OutcomeCreated)
	s.logAudit(ctx, string(audit.EventUserCreated),
		"user_id", account.ID.String(),
		"username", account.Username,
		"is_superuser", account.IsSuperuser,
		"is_active", account.IsActive,
	)
	if account.IsSuperuser {
		if s.metrics != nil {
			s.metrics.IncSuperuserBootstrapped()
		}
		s.logAudit(ctx, string(audit.EventSuperuserBootstrapped), "user_id", account.ID.String())
	}
	return account, nil
}

// Activate moves an inactive account to active. actorID names the
// administrator and is only recorded.
func (s *Service) Activate(ctx context.Context, userID id.UserID, actorID string) (*models.Account, error) {
	ctx, span := tracer.Start(ctx, "accounts.Activate")
	defer span.End()

	var activated *models.Account
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		account, err := s.accounts.FindByID(txCtx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "account not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
		}
		if err := account.CanActivate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeConflict, "account is already active")
		}
		account.ApplyActivation(requestcontext.Now(txCtx))
		if err := s.accounts.Update(txCtx, account); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "account not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update account")
		}
		if s.auditPublisher != nil {
			if err := s.auditPublisher.Emit(txCtx, audit.Event{
				UserID:   account.ID,
				Subject:  account.Username,
				Action:   string(audit.EventUserActivated),
				Decision: "activated",
				Email:    account.Email,
				ActorID:  actorID,
			}); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record activation")
			}
		}
		activated = account
		return nil
	})
	if err != nil {
		return nil, s.fail(span, err, "failed to activate account")
	}

	if s.metrics != nil {
		s.metrics.IncActivation()
	}
	s.logAudit(ctx, string(audit.EventUserActivated),
		"user_id", activated.ID.String(),
		"actor_id", actorID,
	)
	return activated, nil
}

// Get returns a persisted account.
func (s *Service) Get(ctx context.Context, userID id.UserID) (*models.Account, error) {
	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return account, nil
}

// List returns every persisted account, oldest first.
func (s *Service) List(ctx context.Context) ([]*models.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list accounts")
	}
	return accounts, nil
}

// emitCreated writes compliance events inside the registration transaction.
// A failed write aborts the registration.
func (s *Service) emitCreated(ctx context.Context, account *models.Account) error {
	if s.auditPublisher == nil {
		return nil
	}
	event := audit.Event{
		UserID:  account.ID,
		Subject: account.Username,
		Action:  string(audit.EventUserCreated),
		Email:   account.Email,
	}
	if account.IsActive {
		event.Decision = "active"
	} else {
		event.Decision = "inactive"
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record account creation")
	}
	if !account.IsSuperuser {
		return nil
	}
	event.Action = string(audit.EventSuperuserBootstrapped)
	event.Decision = "granted"
	event.Reason = "no existing superuser"
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record superuser bootstrap")
	}
	return nil
}

// recordRejection reports a failed validation. Rejections are best-effort:
// a failed audit write never changes the response.
func (s *Service) recordRejection(ctx context.Context, form *models.RegistrationForm, fieldErrs validation.Errors) {
	s.incRegistration(metrics.OutcomeRejected)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "registration rejected",
			"username", form.Username,
			"fields", fieldErrs.Fields(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	if s.auditPublisher == nil {
		return
	}
	action := audit.EventRegistrationRejected
	if fieldErrs.Is(validation.ErrInvalidCaptcha) {
		action = audit.EventCaptchaFailed
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Subject:  form.Username,
		Action:   string(action),
		Decision: "rejected",
		Reason:   fieldErrs.Error(),
		Email:    form.Email,
	})
}

func (s *Service) failRegistration(span trace.Span, err error, msg string) error {
	s.incRegistration(metrics.OutcomeFailed)
	return s.fail(span, err, msg)
}

func (s *Service) fail(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) incRegistration(outcome string) {
	if s.metrics != nil {
		s.metrics.IncRegistration(outcome)
	}
}
