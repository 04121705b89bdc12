package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	logx "hllstatus/pkg/logx"
)

const tableName = "message_ids"

// fileStore keeps one TOML document per server:
//
//	[message_ids]
//	header = 1234
//	gamestate = 0
type fileStore struct {
	dir string
	log logx.Logger

	mu sync.Mutex
}

type fileDoc struct {
	MessageIDs map[string]int64 `toml:"message_ids"`
}

func openFile(cfg Config, log logx.Logger) (Backend, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("store.path is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileStore{dir: dir, log: log}, nil
}

func (s *fileStore) path(server string) string {
	return filepath.Join(s.dir, server+".toml")
}

func (s *fileStore) Load(_ context.Context, server string) (Raw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path(server))
	if errors.Is(err, os.ErrNotExist) {
		return Raw{}, nil
	}
	if err != nil {
		return nil, err
	}

	var top map[string]any
	if err := toml.Unmarshal(b, &top); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path(server), err)
	}
	for k := range top {
		if k != tableName {
			s.log.Warn("unknown table in message id document", logx.String("server", server), logx.String("table", k))
		}
	}
	table, ok := top[tableName].(map[string]any)
	if !ok {
		return Raw{}, nil
	}
	return Raw(table), nil
}

func (s *fileStore) Save(_ context.Context, server string, doc Document) error {
	ids := make(map[string]int64, len(doc))
	for k, v := range doc {
		ids[k] = int64(v)
	}
	b, err := toml.Marshal(fileDoc{MessageIDs: ids})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(server)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *fileStore) Close() error { return nil }
