package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	logx "announced/pkg/logx"
)

// Config configures the settings store.
//
// If Driver is empty, "file" is assumed.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is a durable (namespace, key) -> string map.
//
// Get never fails from the caller's point of view: lookup problems are
// logged by the driver and the default is returned. A missing key and an
// unreadable key are both "use the default" situations here.
type Store interface {
	Get(ctx context.Context, namespace, key, def string) string
	Set(ctx context.Context, namespace, key, value string) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown settings driver: " + driver)
	}
}

// GetJSONStrings reads a JSON string-array value.
//
// Returns (nil, false) when the key is absent/empty, and (nil, true) with a
// logged warning semantics left to the caller when the value is present but
// not valid JSON — mirroring "configured but broken" vs "not configured".
func GetJSONStrings(ctx context.Context, s Store, namespace, key string) ([]string, bool) {
	raw := strings.TrimSpace(s.Get(ctx, namespace, key, ""))
	if raw == "" {
		return nil, false
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, true
	}
	return out, true
}
