package upload

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// allowedExt lists the extensions kept on generated keys. Anything else is
// dropped so callers cannot choose how stored files are interpreted.
var allowedExt = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".gif":  {},
	".svg":  {},
}

// maxExtLen caps how much of a declared extension is considered.
const maxExtLen = 10

// KeyGenerator mints storage keys of the form
// {unixMillis}-{uuid}{allowedExt}.
type KeyGenerator struct {
	now   func() time.Time
	newID func() string
}

// NewKeyGenerator returns a generator using the wall clock and random UUIDs.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{now: time.Now, newID: uuid.NewString}
}

// NewKey returns a fresh key for a file originally called name.
func (g *KeyGenerator) NewKey(name string) string {
	return strconv.FormatInt(g.now().UnixMilli(), 10) + "-" + g.newID() + SafeExt(name)
}

// SafeExt returns the lower-cased extension of name if it is allow-listed,
// otherwise "".
func SafeExt(name string) string {
	ext := filepath.Ext(name)
	if len(ext) > maxExtLen {
		ext = ext[:maxExtLen]
	}
	ext = strings.ToLower(ext)
	if _, ok := allowedExt[ext]; ok {
		return ext
	}
	return ""
}
