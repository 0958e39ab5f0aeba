package upload

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samiti/portal/internal/apperr"
	"github.com/samiti/portal/internal/logging"
	"github.com/samiti/portal/internal/middleware"
	"github.com/samiti/portal/internal/storage"
)

var keyPattern = regexp.MustCompile(`^\d+-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}(\.(jpg|jpeg|png|webp|gif|svg))?$`)

type fakeAuthn struct{}

func (fakeAuthn) Authenticate(_ context.Context, token string) (*middleware.Principal, error) {
	switch token {
	case "admin-token":
		return &middleware.Principal{UserID: "u1", Role: middleware.RoleAdmin}, nil
	case "member-token":
		return &middleware.Principal{UserID: "u2", Role: middleware.RoleMember}, nil
	}
	return nil, apperr.Unauthenticated("invalid or expired token")
}

type testServer struct {
	router http.Handler
	dir    string
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	log := logging.Discard()
	h := NewHandler(NewBroker(NewKeyGenerator()), NewWriter(store, log), store, opts, log)

	r := chi.NewRouter()
	h.Routes(r, middleware.RequireAdmin(fakeAuthn{}))
	return &testServer{router: r, dir: dir}
}

func (s *testServer) do(method, target, token string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// storedFiles lists visible objects, ignoring the staging directory.
func (s *testServer) storedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names
}

func requestTicket(t *testing.T, s *testServer, name string) Ticket {
	t.Helper()
	body := `{"name":"` + name + `","size":3,"contentType":"image/png"}`
	rec := s.do(http.MethodPost, "/api/uploads/request-url", "admin-token", strings.NewReader(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ticket Ticket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticket))
	return ticket
}

func pathOf(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.EscapedPath()
}

// --- key generation ---

func TestNewKey_Format(t *testing.T) {
	g := NewKeyGenerator()
	for _, name := range []string{"photo.JPG", "a.png", "noext", "virus.exe", "x.tar.gz", ".svg"} {
		key := g.NewKey(name)
		assert.Regexp(t, keyPattern, key, name)
	}
}

func TestNewKey_Deterministic(t *testing.T) {
	g := &KeyGenerator{
		now:   func() time.Time { return time.UnixMilli(1718000000000) },
		newID: func() string { return "1b4e28ba-2fa1-11d2-883f-0016d3cca427" },
	}
	assert.Equal(t, "1718000000000-1b4e28ba-2fa1-11d2-883f-0016d3cca427.jpg", g.NewKey("Holi 2024.JPG"))
	assert.Equal(t, "1718000000000-1b4e28ba-2fa1-11d2-883f-0016d3cca427", g.NewKey("virus.exe"))
}

func TestNewKey_Distinct(t *testing.T) {
	g := NewKeyGenerator()
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		k := g.NewKey("same.png")
		_, dup := seen[k]
		require.False(t, dup, "duplicate key %s", k)
		seen[k] = struct{}{}
	}
}

func TestSafeExt(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"a.JPG", ".jpg"},
		{"a.jpeg", ".jpeg"},
		{"a.webp", ".webp"},
		{"a.svg", ".svg"},
		{"a.gif", ".gif"},
		{"a.exe", ""},
		{"a.html", ""},
		{"a", ""},
		{"a.pngxxxxxxxxxxxx", ""},
		{"archive.tar.png", ".png"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SafeExt(tc.name), tc.name)
	}
}

// --- broker ---

func TestRequestUploadURL(t *testing.T) {
	b := NewBroker(NewKeyGenerator())

	ticket, err := b.RequestUploadURL("https://portal.example", Request{Name: "p.png", ContentType: "image/png"}, true)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(ticket.UploadURL, "https://portal.example/api/uploads/put/"))
	require.True(t, strings.HasPrefix(ticket.FileURL, "https://portal.example/uploads/"))
	putKey := strings.TrimPrefix(ticket.UploadURL, "https://portal.example/api/uploads/put/")
	fileKey := strings.TrimPrefix(ticket.FileURL, "https://portal.example/uploads/")
	assert.Equal(t, putKey, fileKey)
	assert.Regexp(t, keyPattern, putKey)
	assert.True(t, strings.HasSuffix(putKey, ".png"))
	assert.Equal(t, "image/png", ticket.ContentType)
}

func TestRequestUploadURL_Errors(t *testing.T) {
	b := NewBroker(NewKeyGenerator())

	_, err := b.RequestUploadURL("http://h", Request{Name: "p.png"}, false)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	_, err = b.RequestUploadURL("http://h", Request{Name: "  "}, true)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"plain host", nil, "http://example.com"},
		{"forwarded", map[string]string{
			"X-Forwarded-Proto": "https",
			"X-Forwarded-Host":  "portal.example",
		}, "https://portal.example"},
		{"proxy chain", map[string]string{
			"X-Forwarded-Proto": "https, http",
			"X-Forwarded-Host":  "portal.example, internal:5011",
		}, "https://portal.example"},
		{"proto only", map[string]string{"X-Forwarded-Proto": "https"}, "https://example.com"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, BaseURL(req))
		})
	}
}

// --- writer ---

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a.png", "a.png"},
		{"../../etc/passwd", "passwd"},
		{"..%2F..%2Fetc%2Fpasswd", "passwd"},
		{`..\..\windows\win.ini`, "win.ini"},
		{"dir/", "dir"},
		{"..", ""},
		{".", ""},
		{"/", ""},
		{"%2F", ""},
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SanitizeName(tc.in), tc.in)
	}
}

func TestReceive_RejectsNonAdmin(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	w := NewWriter(store, logging.Discard())

	_, err = w.Receive(context.Background(), "http://h", "a.png", strings.NewReader("x"), "", false)
	require.ErrorIs(t, err, apperr.ErrAuthorization)

	_, err = os.Stat(filepath.Join(dir, "a.png"))
	assert.True(t, os.IsNotExist(err))
}

// --- HTTP ---

func TestUploadFlow_PutThenGet(t *testing.T) {
	s := newTestServer(t, Options{})
	content := []byte("\x89PNG\r\n\x1a\nfake image bytes")

	ticket := requestTicket(t, s, "banner.png")

	rec := s.do(http.MethodPut, pathOf(t, ticket.UploadURL), "admin-token", bytes.NewReader(content))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sum := md5.Sum(content)
	assert.Equal(t, `"`+hex.EncodeToString(sum[:])+`"`, rec.Header().Get("ETag"))
	assert.Equal(t, "ETag", rec.Header().Get("Access-Control-Expose-Headers"))

	var put struct {
		OK      bool   `json:"ok"`
		FileURL string `json:"fileURL"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &put))
	assert.True(t, put.OK)
	assert.Equal(t, ticket.FileURL, put.FileURL)

	get := s.do(http.MethodGet, pathOf(t, put.FileURL), "", nil)
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, content, get.Body.Bytes())
	assert.Equal(t, "public, max-age=604800", get.Header().Get("Cache-Control"))
	assert.Equal(t, "image/png", get.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", get.Header().Get("X-Content-Type-Options"))

	key := strings.TrimPrefix(pathOf(t, put.FileURL), PublicPath)
	legacy := s.do(http.MethodGet, LegacyPath+key, "", nil)
	require.Equal(t, http.StatusOK, legacy.Code)
	assert.Equal(t, content, legacy.Body.Bytes())

	head := s.do(http.MethodHead, pathOf(t, put.FileURL), "", nil)
	require.Equal(t, http.StatusOK, head.Code)
	assert.Empty(t, head.Body.Bytes())
}

func TestServe_Range(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := s.do(http.MethodPut, PutPath+"r.png", "admin-token", strings.NewReader("0123456789"))
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, PublicPath+"r.png", nil)
	req.Header.Set("Range", "bytes=2-5")
	got := httptest.NewRecorder()
	s.router.ServeHTTP(got, req)

	require.Equal(t, http.StatusPartialContent, got.Code)
	assert.Equal(t, "2345", got.Body.String())
}

func TestPut_ReplacesExisting(t *testing.T) {
	s := newTestServer(t, Options{})
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, PutPath+"same.png", "admin-token", strings.NewReader("first")).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, PutPath+"same.png", "admin-token", strings.NewReader("second")).Code)

	get := s.do(http.MethodGet, PublicPath+"same.png", "", nil)
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, "second", get.Body.String())
}

func TestPut_TraversalStaysInUploadDir(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := s.do(http.MethodPut, PutPath+"..%2F..%2Fetc%2Fpasswd", "admin-token", strings.NewReader("root:x"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data, err := os.ReadFile(filepath.Join(s.dir, "passwd"))
	require.NoError(t, err)
	assert.Equal(t, "root:x", string(data))
	assert.Equal(t, []string{"passwd"}, s.storedFiles(t))
}

func TestPut_InvalidName(t *testing.T) {
	s := newTestServer(t, Options{})

	for _, name := range []string{"..", "%2F", ".hidden"} {
		rec := s.do(http.MethodPut, PutPath+name, "admin-token", strings.NewReader("x"))
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
	assert.Empty(t, s.storedFiles(t))
}

func TestPut_TooLarge(t *testing.T) {
	s := newTestServer(t, Options{MaxBytes: 4})

	rec := s.do(http.MethodPut, PutPath+"big.png", "admin-token", strings.NewReader("0123456789"))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
	assert.Empty(t, s.storedFiles(t))

	ok := s.do(http.MethodPut, PutPath+"small.png", "admin-token", strings.NewReader("0123"))
	require.Equal(t, http.StatusOK, ok.Code)
}

func TestAccessGuard(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"bad token", "nope", http.StatusUnauthorized},
		{"non-admin", "member-token", http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, Options{})

			req := s.do(http.MethodPost, "/api/uploads/request-url", tc.token, strings.NewReader(`{"name":"a.png"}`))
			assert.Equal(t, tc.wantStatus, req.Code)

			put := s.do(http.MethodPut, PutPath+"a.png", tc.token, strings.NewReader("x"))
			assert.Equal(t, tc.wantStatus, put.Code)

			assert.Empty(t, s.storedFiles(t))
		})
	}
}

func TestRequestURL_BadInput(t *testing.T) {
	s := newTestServer(t, Options{})

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"malformed json", "{", "invalid request body"},
		{"missing name", `{"size":10}`, "Missing file name"},
		{"blank name", `{"name":"   "}`, "Missing file name"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/uploads/request-url", "admin-token", strings.NewReader(tc.body))
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var env struct {
				Error string `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, tc.wantMsg, env.Error)
		})
	}
}

func TestServe_NotFound(t *testing.T) {
	s := newTestServer(t, Options{})

	for _, target := range []string{
		PublicPath + "missing.png",
		LegacyPath + "missing.png",
		PublicPath + ".tmp",
		PublicPath,
		PublicPath + "a/b.png",
	} {
		rec := s.do(http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}
