package store

import (
	"context"
	"errors"
	"strings"

	logx "hllstatus/pkg/logx"
)

// Backend loads and saves per-server documents.
type Backend interface {
	// Load returns the stored document for server, or an empty Raw when none
	// exists yet.
	Load(ctx context.Context, server string) (Raw, error)
	// Save overwrites the stored document for server.
	Save(ctx context.Context, server string, doc Document) error
	Close() error
}

// Open initializes the configured backend. An empty driver selects "file".
func Open(ctx context.Context, cfg Config, log logx.Logger) (Backend, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file", "toml":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	case "redis":
		return openRedis(ctx, cfg, log)
	case "none":
		return nil, ErrDisabled
	default:
		return nil, errors.New("unknown store driver: " + driver)
	}
}
