package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/samiti/portal/internal/apperr"
	"github.com/samiti/portal/internal/storage"
)

// Receipt describes a completed upload.
type Receipt struct {
	Key     string
	FileURL string
	ETag    string
	Size    int64
}

// Writer persists PUT bodies into storage without buffering them in memory.
type Writer struct {
	store storage.Storage
	log   *slog.Logger
}

// NewWriter creates a Writer backed by store.
func NewWriter(store storage.Storage, log *slog.Logger) *Writer {
	return &Writer{store: store, log: log}
}

// Receive streams body into storage under the sanitised fileNameParam and
// returns the public URL built on base. Nothing is written unless the
// caller is an admin and the name is usable.
func (w *Writer) Receive(ctx context.Context, base, fileNameParam string, body io.Reader, contentType string, callerIsAdmin bool) (*Receipt, error) {
	if !callerIsAdmin {
		return nil, apperr.Forbidden("admin access required")
	}

	key := SanitizeName(fileNameParam)
	if !storage.ValidKey(key) {
		return nil, apperr.Validation("Invalid fileName")
	}

	obj, err := w.store.Put(ctx, key, body, contentType)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &apperr.Error{Kind: apperr.ErrTooLarge, Message: "file exceeds upload limit", Err: err}
		}
		return nil, apperr.IO("store upload", err)
	}

	w.log.InfoContext(ctx, "upload stored", "key", obj.Key, "bytes", obj.Size)
	return &Receipt{
		Key:     obj.Key,
		FileURL: FileURL(base, obj.Key),
		ETag:    obj.ETag,
		Size:    obj.Size,
	}, nil
}

// SanitizeName decodes a fileName path parameter and keeps only its last
// path element, so callers can never address anything outside the upload
// directory. It returns "" when nothing usable remains.
func SanitizeName(param string) string {
	name, err := url.PathUnescape(param)
	if err != nil {
		name = param
	}
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}
