package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	yaml "go.yaml.in/yaml/v3"
)

// ErrNoServers is returned by LoadDir when the directory has no server files.
var ErrNoServers = errors.New("no server configuration files found")

// Extensions accepted for server files.
var Extensions = []string{".toml", ".yaml", ".yml", ".json"}

// IsServerFile reports whether name has a server config extension.
func IsServerFile(name string) bool {
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Parse reads, strictly decodes and validates one server file.
func Parse(path string) (*Server, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	srv, err := Decode(path, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := srv.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return srv, nil
}

// Decode strictly decodes data whose format is chosen by path's extension.
// Unknown fields are rejected.
func Decode(path string, data []byte) (*Server, error) {
	jb, _, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, err
	}

	var srv Server
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&srv); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	srv.ID = fileStem(path)
	srv.Path = path
	return &srv, nil
}

// LoadDir parses every server file in dir. Invalid files are reported in the
// returned error (joined) while valid ones are still returned, sorted by ID.
func LoadDir(dir string) ([]*Server, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var (
		out  []*Server
		errs []error
		seen = map[string]string{}
	)
	for _, e := range entries {
		if e.IsDir() || !IsServerFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		srv, err := Parse(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, dup := seen[srv.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: server id %q already defined by %s", e.Name(), srv.ID, prev))
			continue
		}
		seen[srv.ID] = e.Name()
		out = append(out, srv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if len(out) == 0 && len(errs) == 0 {
		return nil, ErrNoServers
	}
	return out, errors.Join(errs...)
}

// coerceToJSONBytes converts TOML and YAML to JSON so every format goes
// through the same strict JSON decoder.
//
// Returns (jsonBytes, format, err) where format is "json", "toml" or "yaml".
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var v map[string]any
		if err := toml.Unmarshal(data, &v); err != nil {
			return nil, "toml", fmt.Errorf("toml unmarshal: %w", err)
		}
		j, err := json.Marshal(normalize(v))
		if err != nil {
			return nil, "toml", fmt.Errorf("toml->json marshal: %w", err)
		}
		return j, "toml", nil
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
		}
		j, err := json.Marshal(normalize(v))
		if err != nil {
			return nil, "yaml", fmt.Errorf("yaml->json marshal: %w", err)
		}
		return j, "yaml", nil
	default:
		return data, "json", nil
	}
}

// normalize makes decoded TOML/YAML JSON-marshalable: map keys become strings
// and TOML local dates/times become strings.
func normalize(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalize(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalize(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	case []map[string]any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = normalize(x[i])
		}
		return out
	case toml.LocalDate, toml.LocalTime, toml.LocalDateTime:
		return fmt.Sprint(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return in
	}
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func hashServer(srv *Server) uint64 {
	if srv == nil {
		return 0
	}
	b, err := json.Marshal(srv)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
