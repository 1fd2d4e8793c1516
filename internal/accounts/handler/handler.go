package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"registrar/internal/accounts/models"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	"registrar/pkg/platform/middleware/admin"
	"registrar/pkg/platform/validation"
	"registrar/pkg/requestcontext"
)

const maxBodyBytes = 1 << 20

// HeaderAdminActor optionally names the administrator behind an admin call.
const HeaderAdminActor = "X-Admin-Actor"

// Service defines the account operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, form *models.RegistrationForm, commit bool) (*models.Account, error)
	Activate(ctx context.Context, userID id.UserID, actorID string) (*models.Account, error)
	Get(ctx context.Context, userID id.UserID) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
}

// Handler serves registration and account administration.
type Handler struct {
	accounts   Service
	adminToken string
	logger     *slog.Logger
}

func New(accounts Service, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{accounts: accounts, adminToken: adminToken, logger: logger}
}

// Register mounts the public registration route on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/accounts/register", h.HandleRegister)
}

// RegisterAdmin mounts the token-guarded account administration routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Route("/admin/accounts", func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Post("/{id}/activate", h.HandleActivate)
	})
}

// HandleRegister accepts a JSON or form-encoded submission. ?commit=false
// validates and builds the account without persisting it.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	commit := true
	if raw := r.URL.Query().Get("commit"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "commit must be a boolean"))
			return
		}
		commit = parsed
	}

	form, err := decodeForm(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid registration request",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	account, err := h.accounts.Register(ctx, form, commit)
	if err != nil {
		h.logFailure(ctx, "registration failed", err)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if !account.IsPersisted() {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, models.NewAccountResponse(account))
}

func decodeForm(w http.ResponseWriter, r *http.Request) (*models.RegistrationForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return models.FormFromValues(r.PostForm), nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, err
		}
		return models.FormFromValues(r.PostForm), nil
	}

	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return req.ToForm(), nil
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		h.logFailure(r.Context(), "failed to list accounts", err)
		httputil.WriteError(w, err)
		return
	}
	resp := &models.AccountListResponse{
		Accounts: make([]*models.AccountResponse, 0, len(accounts)),
		Total:    len(accounts),
	}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, models.NewAccountResponse(a))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	account, err := h.accounts.Get(r.Context(), userID)
	if err != nil {
		h.logFailure(r.Context(), "failed to load account", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewAccountResponse(account))
}

func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	actor := r.Header.Get(HeaderAdminActor)
	if actor == "" {
		actor = "admin"
	}
	account, err := h.accounts.Activate(ctx, userID, actor)
	if err != nil {
		h.logFailure(ctx, "failed to activate account", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewAccountResponse(account))
}

// logFailure logs at warn for client mistakes and error for everything else.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	attrs := []any{"request_id", requestcontext.RequestID(ctx), "error", err}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) || dErrors.CodeOf(err) != dErrors.CodeInternal {
		h.logger.WarnContext(ctx, msg, attrs...)
		return
	}
	h.logger.ErrorContext(ctx, msg, attrs...)
}
