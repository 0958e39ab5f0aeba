package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
)

const tmpDirName = ".tmp"

// ResolveUploadDir returns the absolute upload directory and makes sure it
// exists. An empty override means "<cwd>/uploads".
func ResolveUploadDir(override string) (string, error) {
	dir := override
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, "uploads")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}
	return abs, nil
}

// LocalStorage implements Storage on the local filesystem. Objects live
// directly under dir; in-flight uploads are staged in dir/.tmp and renamed
// into place when complete.
type LocalStorage struct {
	dir    string
	tmpDir string
}

// NewLocalStorage prepares dir (already resolved) for uploads.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	tmp := filepath.Join(dir, tmpDirName)
	if err := os.MkdirAll(tmp, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", tmp, err)
	}
	return &LocalStorage{dir: dir, tmpDir: tmp}, nil
}

// Dir returns the directory objects are stored in.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// Put streams r into a staging file, then renames it to dir/key. A failed
// or cancelled copy removes the staging file and leaves any existing object
// untouched. An existing object under key is replaced.
func (s *LocalStorage) Put(ctx context.Context, key string, r io.Reader, _ string) (*Object, error) {
	if !ValidKey(key) {
		return nil, ErrInvalidKey
	}

	tmp, err := os.CreateTemp(s.tmpDir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	h := md5.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return nil, fmt.Errorf("chmod %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil {
		return nil, fmt.Errorf("rename %s: %w", key, err)
	}
	committed = true

	return &Object{
		Key:  key,
		Size: n,
		ETag: `"` + hex.EncodeToString(h.Sum(nil)) + `"`,
	}, nil
}

// Open returns the object stored under key.
func (s *LocalStorage) Open(_ context.Context, key string) (*File, error) {
	if !ValidKey(key) {
		return nil, ErrInvalidKey
	}

	f, err := os.Open(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, ErrNotFound
	}

	return &File{
		ReadSeekCloser: f,
		Size:           info.Size(),
		ModTime:        info.ModTime(),
		ContentType:    mime.TypeByExtension(filepath.Ext(key)),
	}, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
