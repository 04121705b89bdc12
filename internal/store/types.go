package store

import (
	"errors"
	"strconv"
	"time"
)

var ErrDisabled = errors.New("store disabled")

// Handle is an external message id. Discord snowflakes and Telegram message
// ids both fit in an int64.
type Handle int64

// NoMessage marks a section that has not been published yet.
const NoMessage Handle = 0

func (h Handle) String() string { return strconv.FormatInt(int64(h), 10) }

// IsSet reports whether h refers to a published message.
func (h Handle) IsSet() bool { return h != NoMessage }

// ParseHandle parses the decimal form produced by Handle.String.
func ParseHandle(s string) (Handle, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return NoMessage, err
	}
	return Handle(n), nil
}

// Section keys known to this version.
const (
	KeyHeader        = "header"
	KeyGamestate     = "gamestate"
	KeyRotationColor = "map_rotation_color"
	KeyRotationEmbed = "map_rotation_embed"
)

// SectionKeys lists every key a validated document carries, in display order.
var SectionKeys = []string{KeyHeader, KeyGamestate, KeyRotationColor, KeyRotationEmbed}

// Document maps section keys to handles for one server.
type Document map[string]Handle

func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Raw is a document as read from a backend, before validation. Values are
// whatever the backend decoded (int64 for well-formed handles).
type Raw map[string]any

// Config configures the backend.
//
// Driver values:
//   - "file" (default): Path is the directory holding <server>.toml files
//   - "sqlite": Path is the database file
//   - "redis": Addr/Password/DB select the server, Prefix namespaces keys
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	Addr     string
	Password string
	DB       int
	Prefix   string
}
