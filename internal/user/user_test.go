package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samiti/portal/internal/logging"
	"github.com/samiti/portal/internal/middleware"
)

type memStore struct {
	byID  map[string]*User
	err   error
	calls []string
}

func newMemStore(users ...*User) *memStore {
	m := &memStore{byID: map[string]*User{}}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memStore) Create(_ context.Context, nu NewUser) (*User, error) {
	m.calls = append(m.calls, "create:"+nu.Email)
	for _, u := range m.byID {
		if u.Email == nu.Email {
			return nil, ErrAlreadyExists
		}
	}
	u := &User{ID: "id-" + nu.Email, Email: nu.Email, Name: nu.Name, Role: nu.Role, IsActive: true, PasswordHash: nu.PasswordHash}
	m.byID[u.ID] = u
	return u, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*User, error) {
	m.calls = append(m.calls, "email:"+email)
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func TestService_NormalizesEmail(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	u, err := svc.Create(ctx, NewUser{Email: "  Admin@Example.ORG ", Name: "A", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "admin@example.org", u.Email)

	got, err := svc.GetByEmail(ctx, "ADMIN@example.org")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Create(ctx, NewUser{Email: "admin@example.org"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = svc.GetByID(ctx, "missing")
	assert.True(t, svc.IsNotFound(err))
}

func TestHandler_GetMe(t *testing.T) {
	admin := &User{ID: "u1", Email: "a@example.org", Name: "Admin", Role: "admin", IsActive: true, PasswordHash: "secret-hash"}

	tests := []struct {
		name       string
		principal  *middleware.Principal
		storeErr   error
		wantStatus int
	}{
		{"no principal", nil, nil, http.StatusUnauthorized},
		{"found", &middleware.Principal{UserID: "u1"}, nil, http.StatusOK},
		{"deleted account", &middleware.Principal{UserID: "gone"}, nil, http.StatusNotFound},
		{"store failure", &middleware.Principal{UserID: "u1"}, errors.New("conn refused"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore(admin)
			store.err = tc.storeErr
			h := NewHandler(store, logging.Discard())

			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tc.principal != nil {
				req = req.WithContext(middleware.WithPrincipal(req.Context(), tc.principal))
			}
			rec := httptest.NewRecorder()
			h.GetMe(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus == http.StatusOK {
				assert.NotContains(t, rec.Body.String(), "secret-hash")
				var body struct {
					Data User `json:"data"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, "a@example.org", body.Data.Email)
			}
		})
	}
}
