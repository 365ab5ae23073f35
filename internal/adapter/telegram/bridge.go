// Package telegram bridges the host platform's session token (Telegram
// WebApp initData) into the dashboard core.
package telegram

import (
	"errors"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/azimjon-95/totli-webapp/internal/ports"
)

// HeaderInitData carries the session token on every backend request
const HeaderInitData = "x-telegram-init-data"

// Source yields the raw token and whether the host supplied one
type Source interface {
	Lookup() (string, bool)
}

// SourceFunc adapts a function to Source
type SourceFunc func() (string, bool)

func (f SourceFunc) Lookup() (string, bool) {
	return f()
}

// EnvSource reads the token from an environment variable on every lookup
func EnvSource(name string) Source {
	return SourceFunc(func() (string, bool) {
		return os.LookupEnv(name)
	})
}

// FileSource re-reads the token file on every lookup. The host may create or
// remove the file at any time; a missing file means no session.
func FileSource(path string, log *zap.Logger) Source {
	return SourceFunc(func() (string, bool) {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Warn("Failed to read init data file", zap.String("path", path), zap.Error(err))
			}
			return "", false
		}
		return string(data), true
	})
}

// StaticSource always yields the same token
func StaticSource(token string) Source {
	return SourceFunc(func() (string, bool) {
		return token, token != ""
	})
}

// FirstOf consults sources in order and returns the first non-empty token
func FirstOf(sources ...Source) Source {
	return SourceFunc(func() (string, bool) {
		for _, s := range sources {
			if s == nil {
				continue
			}
			if token, ok := s.Lookup(); ok && strings.TrimSpace(token) != "" {
				return token, true
			}
		}
		return "", false
	})
}

// Bridge implements ports.AuthContext over a Source. It is the only place
// that checks for token presence; callers get a non-empty token or "".
type Bridge struct {
	source Source
}

var _ ports.AuthContext = (*Bridge)(nil)

func NewBridge(source Source) *Bridge {
	return &Bridge{source: source}
}

// CurrentToken returns the session token, or "" when none is available
func (b *Bridge) CurrentToken() string {
	if b == nil || b.source == nil {
		return ""
	}
	token, ok := b.source.Lookup()
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// IsAvailable reports whether a session token is currently present
func (b *Bridge) IsAvailable() bool {
	return b.CurrentToken() != ""
}
