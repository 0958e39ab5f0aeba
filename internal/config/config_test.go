package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("UPLOAD_DIR", "")
	t.Setenv("APP_ENV", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "5011", cfg.Port)
	assert.Equal(t, StorageLocal, cfg.StorageBackend)
	assert.Equal(t, 168*time.Hour, cfg.JWTTTL)
	assert.Equal(t, int64(0), cfg.UploadMaxBytes)
	assert.Equal(t, 30*time.Minute, cfg.UploadTimeout)
	assert.Empty(t, cfg.UploadDir)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("UPLOAD_DIR", "/srv/uploads")
	t.Setenv("UPLOAD_MAX_BYTES", "1048576")
	t.Setenv("STORAGE_BACKEND", "minio")
	t.Setenv("STORAGE_USE_SSL", "true")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/uploads", cfg.UploadDir)
	assert.Equal(t, int64(1<<20), cfg.UploadMaxBytes)
	assert.Equal(t, StorageMinio, cfg.StorageBackend)
	assert.True(t, cfg.StorageUseSSL)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestValidate(t *testing.T) {
	base := Config{StorageBackend: StorageLocal, JWTTTL: time.Hour, JWTSecret: "s", UploadTimeout: time.Minute}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"ok", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.StorageBackend = "ftp" }, true},
		{"negative limit", func(c *Config) { c.UploadMaxBytes = -1 }, true},
		{"zero ttl", func(c *Config) { c.JWTTTL = 0 }, true},
		{"zero upload timeout", func(c *Config) { c.UploadTimeout = 0 }, true},
		{"default secret in production", func(c *Config) {
			c.AppEnv = "production"
			c.JWTSecret = defaultJWTSecret
		}, true},
		{"default secret in development", func(c *Config) { c.JWTSecret = defaultJWTSecret }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestString_MasksSecrets(t *testing.T) {
	c := Config{
		StorageBackend:   StorageMinio,
		StorageSecretKey: "minio-secret",
		JWTSecret:        "jwt-secret",
	}
	s := c.String()
	assert.NotContains(t, s, "minio-secret")
	assert.NotContains(t, s, "jwt-secret")
	assert.Contains(t, s, "********")
}
