package upload

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/samiti/portal/internal/middleware"
	"github.com/samiti/portal/internal/response"
	"github.com/samiti/portal/internal/storage"
)

// cacheControl is sent with every public file; keys never change content.
const cacheControl = "public, max-age=604800"

// Options tune the PUT endpoint.
type Options struct {
	MaxBytes int64         // 0 = unlimited
	Timeout  time.Duration // read/write deadline for one PUT; 0 keeps server defaults
}

// Handler holds HTTP handlers for upload endpoints.
type Handler struct {
	broker *Broker
	writer *Writer
	store  storage.Storage
	opts   Options
	log    *slog.Logger
}

// NewHandler creates a new upload Handler.
func NewHandler(broker *Broker, writer *Writer, store storage.Storage, opts Options, log *slog.Logger) *Handler {
	return &Handler{broker: broker, writer: writer, store: store, opts: opts, log: log}
}

// Routes mounts the guarded upload endpoints and the public file routes.
func (h *Handler) Routes(r chi.Router, guard func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(guard)
		r.Post("/api/uploads/request-url", h.RequestURL)
		r.Put(PutPath+"{fileName}", h.Put)
	})

	for _, prefix := range []string{PublicPath, LegacyPath} {
		r.Get(prefix+"*", h.Serve)
		r.Head(prefix+"*", h.Serve)
	}
}

type putResponse struct {
	OK      bool   `json:"ok"      example:"true"`
	FileURL string `json:"fileURL" example:"https://samiti.org/uploads/1718000000000-1b4e28ba-2fa1-11d2-883f-0016d3cca427.jpg"`
}

// RequestURL godoc
//
//	@Summary		Request an upload URL
//	@Description	Mint a fresh storage key and return the URL to PUT the file to and the public URL it will be served from. Extensions outside jpg/jpeg/png/webp/gif/svg are dropped from the key.
//	@Tags			uploads
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		Request	true	"File description"
//	@Success		200		{object}	Ticket
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/uploads/request-url [post]
func (h *Handler) RequestURL(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	p, _ := middleware.PrincipalFrom(r.Context())
	ticket, err := h.broker.RequestUploadURL(BaseURL(r), req, p.IsAdmin())
	if err != nil {
		h.fail(w, r, err, "Failed to generate upload URL")
		return
	}

	response.JSON(w, http.StatusOK, ticket)
}

// Put godoc
//
//	@Summary		Upload file bytes
//	@Description	Stream the raw request body to storage under fileName (reduced to its base name). The file becomes visible only after the whole body has been received.
//	@Tags			uploads
//	@Accept			application/octet-stream
//	@Produce		json
//	@Security		BearerAuth
//	@Param			fileName	path		string	true	"Key returned by request-url"
//	@Success		200			{object}	putResponse
//	@Header			200			{string}	ETag	"Quoted MD5 of the stored bytes"
//	@Failure		400			{object}	response.Envelope
//	@Failure		401			{object}	response.Envelope
//	@Failure		403			{object}	response.Envelope
//	@Failure		413			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/uploads/put/{fileName} [put]
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	if h.opts.Timeout > 0 {
		deadline := time.Now().Add(h.opts.Timeout)
		rc := http.NewResponseController(w)
		if err := rc.SetReadDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
			h.log.WarnContext(r.Context(), "extend read deadline", "err", err)
		}
		if err := rc.SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
			h.log.WarnContext(r.Context(), "extend write deadline", "err", err)
		}
	}

	body := r.Body
	if h.opts.MaxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.opts.MaxBytes)
	}

	p, _ := middleware.PrincipalFrom(r.Context())
	receipt, err := h.writer.Receive(r.Context(), BaseURL(r), chi.URLParam(r, "fileName"),
		body, r.Header.Get("Content-Type"), p.IsAdmin())
	if err != nil {
		h.fail(w, r, err, "Upload failed")
		return
	}

	w.Header().Set("ETag", receipt.ETag)
	w.Header().Set("Access-Control-Expose-Headers", "ETag")
	response.JSON(w, http.StatusOK, putResponse{OK: true, FileURL: receipt.FileURL})
}

// Serve streams a stored file to any caller. Directory listings do not
// exist; unknown or hidden names are 404.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if k, err := url.PathUnescape(key); err == nil {
		key = k
	}

	f, err := h.store.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			response.NotFound(w, "file not found")
			return
		}
		h.log.ErrorContext(r.Context(), "open stored file", "key", key, "err", err)
		response.InternalError(w)
		return
	}
	defer f.Close()

	w.Header().Set("Cache-Control", cacheControl)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if f.ContentType != "" {
		w.Header().Set("Content-Type", f.ContentType)
	}
	http.ServeContent(w, r, key, f.ModTime, f)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if response.Status(err) >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), fallback, "path", r.URL.Path, "err", err)
	}
	response.FromError(w, err, fallback)
}
