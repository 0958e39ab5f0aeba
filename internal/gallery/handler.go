package gallery

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/samiti/portal/internal/response"
)

// Handler holds HTTP handlers for gallery endpoints.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler creates a new gallery Handler.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts the public listing and the admin CRUD endpoints.
func (h *Handler) Routes(r chi.Router, guard func(http.Handler) http.Handler) {
	r.Get("/api/gallery", h.ListPublic)
	r.Route("/api/admin/gallery", func(r chi.Router) {
		r.Use(guard)
		r.Get("/", h.ListAll)
		r.Post("/", h.Create)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// ListPublic godoc
//
//	@Summary	List gallery
//	@Tags		gallery
//	@Produce	json
//	@Success	200	{object}	response.Envelope{data=[]Image}
//	@Failure	500	{object}	response.Envelope
//	@Router		/gallery [get]
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	images, err := h.svc.ListPublic(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, images)
}

// ListAll godoc
//
//	@Summary		List all gallery images
//	@Description	Includes inactive entries.
//	@Tags			gallery
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=[]Image}
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/admin/gallery [get]
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	images, err := h.svc.ListAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, images)
}

// Create godoc
//
//	@Summary	Add a gallery image
//	@Tags		gallery
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		request	body		NewImage	true	"Image"
//	@Success	201		{object}	response.Envelope{data=Image}
//	@Failure	400		{object}	response.Envelope
//	@Failure	401		{object}	response.Envelope
//	@Failure	403		{object}	response.Envelope
//	@Failure	500		{object}	response.Envelope
//	@Router		/admin/gallery [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req NewImage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	img, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, img)
}

// Update godoc
//
//	@Summary	Update a gallery image
//	@Tags		gallery
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string	true	"Image ID"
//	@Param		request	body		Patch	true	"Fields to change"
//	@Success	200		{object}	response.Envelope{data=Image}
//	@Failure	400		{object}	response.Envelope
//	@Failure	401		{object}	response.Envelope
//	@Failure	403		{object}	response.Envelope
//	@Failure	404		{object}	response.Envelope
//	@Failure	500		{object}	response.Envelope
//	@Router		/admin/gallery/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req Patch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	img, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, img)
}

// Delete godoc
//
//	@Summary	Delete a gallery image
//	@Tags		gallery
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Image ID"
//	@Success	200	{object}	response.Envelope
//	@Failure	401	{object}	response.Envelope
//	@Failure	403	{object}	response.Envelope
//	@Failure	404	{object}	response.Envelope
//	@Failure	500	{object}	response.Envelope
//	@Router		/admin/gallery/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]bool{"deleted": true})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if response.Status(err) >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "gallery request failed", "path", r.URL.Path, "err", err)
	}
	response.FromError(w, err, "internal server error")
}
