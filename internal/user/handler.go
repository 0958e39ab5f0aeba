package user

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/samiti/portal/internal/middleware"
	"github.com/samiti/portal/internal/response"
)

// Finder looks up accounts by id. *Service implements it.
type Finder interface {
	GetByID(ctx context.Context, id string) (*User, error)
}

// Handler holds HTTP handlers for user-related endpoints.
type Handler struct {
	users Finder
	log   *slog.Logger
}

// NewHandler creates a new user Handler.
func NewHandler(users Finder, log *slog.Logger) *Handler {
	return &Handler{users: users, log: log}
}

// GetMe godoc
//
//	@Summary		Get current user
//	@Description	Returns the account of the currently authenticated principal.
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=User}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/auth/me [get]
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	u, err := h.users.GetByID(r.Context(), p.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "user not found")
			return
		}
		h.log.ErrorContext(r.Context(), "get current user", "user_id", p.UserID, "err", err)
		response.InternalError(w)
		return
	}

	response.OK(w, u)
}
