package store

import (
	"math"
	"strconv"
	"strings"

	logx "hllstatus/pkg/logx"
)

// Validate turns a loaded document into one that carries every key in keys.
// Each missing or unusable key is defaulted to NoMessage with exactly one
// warning; keys this version does not know are dropped with a warning.
func Validate(server string, raw Raw, keys []string, log logx.Logger) Document {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("server", server))

	known := make(map[string]struct{}, len(keys))
	doc := make(Document, len(keys))
	for _, key := range keys {
		known[key] = struct{}{}

		v, ok := raw[key]
		if !ok {
			log.Warn("message id missing, defaulting", logx.String("key", key))
			doc[key] = NoMessage
			continue
		}
		h, ok := toHandle(v)
		if !ok {
			log.Warn("message id invalid, defaulting", logx.String("key", key), logx.Any("value", v))
			doc[key] = NoMessage
			continue
		}
		doc[key] = h
	}

	for key := range raw {
		if _, ok := known[key]; !ok {
			log.Warn("unknown message id key ignored", logx.String("key", key))
		}
	}
	return doc
}

func toHandle(v any) (Handle, bool) {
	switch n := v.(type) {
	case int64:
		return Handle(n), n >= 0
	case int:
		return Handle(n), n >= 0
	case float64:
		if n < 0 || n != math.Trunc(n) || n > math.MaxInt64 {
			return NoMessage, false
		}
		return Handle(int64(n)), true
	case string:
		h, err := ParseHandle(strings.TrimSpace(n))
		return h, err == nil && h >= 0
	case nil:
		return NoMessage, true
	default:
		if s, ok := v.(interface{ String() string }); ok {
			if i, err := strconv.ParseInt(s.String(), 10, 64); err == nil && i >= 0 {
				return Handle(i), true
			}
		}
		return NoMessage, false
	}
}
