// Package upload implements the two-step upload protocol: an admin asks the
// Broker for an upload URL bound to a fresh key, PUTs the raw bytes to it,
// and the Writer streams them into storage. Stored files are served back
// publicly under /uploads/ (and the legacy /objects/ prefix).
package upload

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/samiti/portal/internal/apperr"
)

// URL prefixes shared by the broker, writer and static routes.
const (
	PutPath    = "/api/uploads/put/"
	PublicPath = "/uploads/"
	LegacyPath = "/objects/"
)

// Request is the body of POST /api/uploads/request-url.
type Request struct {
	Name        string `json:"name"        example:"group-photo.JPG"`
	Size        int64  `json:"size"        example:"204800"`
	ContentType string `json:"contentType" example:"image/jpeg"`
}

// Ticket is the answer to an upload-URL request.
type Ticket struct {
	UploadURL   string `json:"uploadURL"   example:"https://samiti.org/api/uploads/put/1718000000000-1b4e28ba-2fa1-11d2-883f-0016d3cca427.jpg"`
	FileURL     string `json:"fileURL"     example:"https://samiti.org/uploads/1718000000000-1b4e28ba-2fa1-11d2-883f-0016d3cca427.jpg"`
	ContentType string `json:"contentType" example:"image/jpeg"`
}

// Broker issues upload URLs ahead of the byte transfer. It keeps no state:
// keys are unique by construction and are not reserved.
type Broker struct {
	keys *KeyGenerator
}

// NewBroker creates a Broker minting keys with keys.
func NewBroker(keys *KeyGenerator) *Broker {
	return &Broker{keys: keys}
}

// RequestUploadURL validates req and returns the URLs for a new key. base is
// the public origin (scheme://host) the URLs are built on. The declared size
// is not checked.
func (b *Broker) RequestUploadURL(base string, req Request, callerIsAdmin bool) (*Ticket, error) {
	if !callerIsAdmin {
		return nil, apperr.Forbidden("admin access required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperr.Validation("Missing file name")
	}

	key := b.keys.NewKey(req.Name)
	return &Ticket{
		UploadURL:   UploadURL(base, key),
		FileURL:     FileURL(base, key),
		ContentType: req.ContentType,
	}, nil
}

// UploadURL is where the bytes for key are PUT.
func UploadURL(base, key string) string {
	return base + PutPath + url.PathEscape(key)
}

// FileURL is where the stored file for key is publicly readable.
func FileURL(base, key string) string {
	return base + PublicPath + url.PathEscape(key)
}

// BaseURL derives the public origin of r, honouring X-Forwarded-Proto and
// X-Forwarded-Host from a reverse proxy.
func BaseURL(r *http.Request) string {
	proto := firstValue(r.Header.Get("X-Forwarded-Proto"))
	if proto == "" {
		proto = "http"
		if r.TLS != nil {
			proto = "https"
		}
	}

	host := firstValue(r.Header.Get("X-Forwarded-Host"))
	if host == "" {
		host = r.Host
	}
	if host == "" {
		host = "localhost"
	}
	return proto + "://" + host
}

// firstValue returns the first entry of a comma-separated header value, as
// appended by chained proxies.
func firstValue(h string) string {
	if i := strings.IndexByte(h, ','); i >= 0 {
		h = h[:i]
	}
	return strings.TrimSpace(h)
}
