package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses an optional Go duration; "" is zero.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// RetryDelayDuration is api.retry_delay, zero when unset. Validate has
// already rejected malformed values.
func (a APIConfig) RetryDelayDuration() time.Duration {
	d, _ := ParseDurationField("api.retry_delay", a.RetryDelay)
	return d
}

// TimeoutDuration is api.timeout, 15s when unset.
func (a APIConfig) TimeoutDuration() time.Duration {
	d, _ := ParseDurationField("api.timeout", a.Timeout)
	if d <= 0 {
		return 15 * time.Second
	}
	return d
}
