package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samiti/portal/internal/middleware"
	"github.com/samiti/portal/internal/response"
)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type loginRequest struct {
	Email    string `json:"email"    example:"admin@samiti.org"`
	Password string `json:"password" example:"s3cret"`
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Verify email and password and issue a bearer token.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		loginRequest	true	"Credentials"
//	@Success		200		{object}	response.Envelope{data=LoginResult}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if response.Status(err) >= http.StatusInternalServerError {
			h.log.ErrorContext(r.Context(), "login failed", "err", err)
		}
		response.FromError(w, err, "internal server error")
		return
	}

	response.OK(w, res)
}

// Logout godoc
//
//	@Summary		Log out
//	@Description	Revoke the bearer token used for this request.
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if err := h.svc.Logout(r.Context(), p); err != nil {
		h.log.ErrorContext(r.Context(), "logout failed", "err", err)
		response.FromError(w, err, "internal server error")
		return
	}

	response.OK(w, map[string]bool{"loggedOut": true})
}
