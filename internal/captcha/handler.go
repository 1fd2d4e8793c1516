package captcha

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	"registrar/pkg/requestcontext"
)

// Issuer is the part of Gate the HTTP layer needs.
type Issuer interface {
	Issue(ctx context.Context) (*Issued, error)
}

// Handler exposes challenge issuance.
type Handler struct {
	issuer  Issuer
	enabled bool
	logger  *slog.Logger
}

func NewHandler(issuer Issuer, enabled bool, logger *slog.Logger) *Handler {
	return &Handler{issuer: issuer, enabled: enabled, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/captcha/challenges", h.HandleIssue)
}

// HandleIssue returns a new challenge, or 404 when CAPTCHA is switched off
// so clients know not to render the field.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.enabled {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "captcha is disabled"))
		return
	}
	issued, err := h.issuer.Issue(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue captcha challenge",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, issued)
}
