package section

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind describes how a section's refresh schedule is expressed.
type Kind int

const (
	KindInterval Kind = iota
	KindCron
)

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule decides how long a section sleeps between cycles.
//
// Supported forms:
//   - Interval duration: "30s", "2m"
//   - Interval MM:SS: "01:30" (90 seconds)
//   - Cron (seconds optional): "*/30 * * * * *", "@every 1m", "0 */5 * * * *"
//
// Optional prefixes:
//   - "cron:" forces cron parsing
//   - "interval:" or "every:" forces interval parsing
type Schedule struct {
	Kind   Kind
	Every  time.Duration
	Cron   string
	Source string // "cron" | "duration" | "mmss" | "seconds"

	sched cron.Schedule
}

var reMMSS = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// Every returns a fixed interval schedule.
func Every(d time.Duration) Schedule {
	return Schedule{Kind: KindInterval, Every: d, Source: "seconds"}
}

// ParseSchedule parses a schedule string into either a cron expression or a
// fixed interval.
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(strings.TrimSpace(s[len("interval:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseInterval(strings.TrimSpace(s[len("every:"):]))
	}

	// Whitespace or a leading '@' means cron.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}
	if sch, err := parseInterval(s); err == nil {
		return sch, nil
	}
	return Schedule{}, fmt.Errorf(
		"invalid schedule %q (use cron like '*/30 * * * * *', MM:SS like '01:30', or duration like '45s')",
		raw,
	)
}

func parseCron(expr string) (Schedule, error) {
	if expr == "" {
		return Schedule{}, fmt.Errorf("cron schedule required after 'cron:'")
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	return Schedule{Kind: KindCron, Cron: expr, Source: "cron", sched: sched}, nil
}

func parseInterval(v string) (Schedule, error) {
	if v == "" {
		return Schedule{}, fmt.Errorf("interval required")
	}
	if m := reMMSS.FindStringSubmatch(v); m != nil {
		var mm, ss int
		_, _ = fmt.Sscanf(m[1], "%d", &mm)
		_, _ = fmt.Sscanf(m[2], "%d", &ss)
		if ss > 59 {
			return Schedule{}, fmt.Errorf("invalid seconds in %q", v)
		}
		d := time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second
		if d <= 0 {
			return Schedule{}, fmt.Errorf("interval must be > 0")
		}
		return Schedule{Kind: KindInterval, Every: d, Source: "mmss"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid interval %q (use MM:SS or Go duration like '45s'/'2m')", v)
	}
	if d <= 0 {
		return Schedule{}, fmt.Errorf("interval must be > 0")
	}
	return Schedule{Kind: KindInterval, Every: d, Source: "duration"}, nil
}

func (s Schedule) String() string {
	if s.Kind == KindCron {
		return "cron:" + s.Cron
	}
	return s.Every.String()
}

// Delay returns how long to sleep after a cycle that started at start and
// took elapsed. It is never negative.
func (s Schedule) Delay(start time.Time, elapsed time.Duration) time.Duration {
	if s.Kind == KindCron && s.sched != nil {
		next := s.sched.Next(start)
		return SleepFor(next.Sub(start), elapsed)
	}
	return SleepFor(s.Every, elapsed)
}

// SleepFor is max(0, interval-elapsed). A cycle that overran its interval
// starts the next one immediately; missed cycles are not replayed.
func SleepFor(interval, elapsed time.Duration) time.Duration {
	if elapsed >= interval {
		return 0
	}
	return interval - elapsed
}
