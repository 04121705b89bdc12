package store

import (
	"context"
	"sync"

	logx "hllstatus/pkg/logx"
)

// Messages is one server's validated document, shared by all of that
// server's sections. Every Set rewrites the whole document.
type Messages struct {
	server  string
	backend Backend
	log     logx.Logger

	mu    sync.Mutex
	doc   Document
	dirty bool // last save failed
}

// LoadMessages loads and validates the document for server.
func LoadMessages(ctx context.Context, backend Backend, server string, keys []string, log logx.Logger) (*Messages, error) {
	raw, err := backend.Load(ctx, server)
	if err != nil {
		return nil, err
	}
	return &Messages{
		server:  server,
		backend: backend,
		log:     log,
		doc:     Validate(server, raw, keys, log),
	}, nil
}

func (m *Messages) Get(key string) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc[key]
}

// Set records h for key and saves the document before returning. The
// in-memory value is updated even if the save fails so the running process
// keeps editing the same message. An unchanged value is not saved again
// unless an earlier save failed.
func (m *Messages) Set(ctx context.Context, key string, h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.doc[key]; ok && cur == h && !m.dirty {
		return nil
	}
	m.doc[key] = h
	if err := m.backend.Save(ctx, m.server, m.doc.Clone()); err != nil {
		m.dirty = true
		return err
	}
	m.dirty = false
	return nil
}

// Snapshot returns a copy of the current document.
func (m *Messages) Snapshot() Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone()
}
