package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"hllstatus/internal/section"
)

// Validate checks a decoded server file. All problems are reported at once.
func (s *Server) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if err := checkHTTPURL(s.API.BaseServerURL); err != nil {
		add("api.base_server_url: %w", err)
	}
	if strings.TrimSpace(s.API.Username) == "" || s.API.Password == "" {
		add("api.username and api.password are required")
	}
	if s.API.Attempts < 0 {
		add("api.attempts must be >= 0")
	}
	if s.API.RatePerSec < 0 {
		add("api.rate_per_sec must be >= 0")
	}
	if _, err := ParseDurationField("api.retry_delay", s.API.RetryDelay); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("api.timeout", s.API.Timeout); err != nil {
		errs = append(errs, err)
	}

	if s.Discord.TimeBetweenRefreshes < 1 {
		add("discord.time_between_refreshes must be >= 1")
	}
	if s.Telegram != nil {
		if strings.TrimSpace(s.Telegram.Token) == "" || s.Telegram.ChatID == 0 {
			add("telegram.token and telegram.chat_id are required when [telegram] is set")
		}
	} else if _, _, err := ParseWebhookURL(s.Discord.WebhookURL); err != nil {
		add("discord.webhook_url: %w", err)
	}

	h := s.Display.Header
	if h.ServerName != ServerNameFull && h.ServerName != ServerNameShort {
		add("display.header.server_name must be %q or %q, got %q", ServerNameFull, ServerNameShort, h.ServerName)
	}
	if h.QuickConnectURL != "" {
		if u, err := url.Parse(h.QuickConnectURL); err != nil || u.Scheme == "" {
			add("display.header.quick_connect_url: invalid url %q", h.QuickConnectURL)
		}
	}
	if h.BattlemetricsURL != "" {
		if err := checkHTTPURL(h.BattlemetricsURL); err != nil {
			add("display.header.battlemetrics_url: %w", err)
		}
	}
	for _, e := range h.Embeds {
		if !slices.Contains(HeaderEmbeds, e.Value) {
			add("display.header.embeds: invalid value %q", e.Value)
		}
	}

	g := s.Display.Gamestate
	for _, e := range g.Embeds {
		if !slices.Contains(GamestateEmbeds, e.Value) {
			add("display.gamestate.embeds: invalid value %q", e.Value)
		}
		if e.Value == EmbedScore && g.ScoreFormat == "" {
			add("display.gamestate.score_format is required for a score embed")
		}
	}

	c := s.Display.MapRotation.Color
	for field, color := range map[string]string{
		"current_map_color": c.CurrentMapColor,
		"next_map_color":    c.NextMapColor,
		"other_map_color":   c.OtherMapColor,
	} {
		if !c.Enabled && color == "" {
			continue
		}
		if _, ok := ColorCodeBlocks[color]; !ok {
			add("display.map_rotation.color.%s: invalid color %q", field, color)
		}
	}
	if c.Enabled && c.DisplayLegend && len(c.Legend) != 3 {
		add("display.map_rotation.color.legend needs 3 entries (current, next, other), got %d", len(c.Legend))
	}

	for name, raw := range map[string]string{
		"display.header.schedule":             h.Schedule,
		"display.gamestate.schedule":          g.Schedule,
		"display.map_rotation.color.schedule": c.Schedule,
		"display.map_rotation.embed.schedule": s.Display.MapRotation.Embed.Schedule,
	} {
		if raw == "" {
			continue
		}
		if _, err := section.ParseSchedule(raw); err != nil {
			add("%s: %w", name, err)
		}
	}

	return errors.Join(errs...)
}

// Refresh returns the default interval between refreshes.
func (s *Server) Refresh() time.Duration {
	return time.Duration(s.Discord.TimeBetweenRefreshes) * time.Second
}

// ScheduleFor returns a section's schedule: its own schedule string when set,
// else the server's refresh interval.
func (s *Server) ScheduleFor(raw string) (section.Schedule, error) {
	if strings.TrimSpace(raw) == "" {
		return section.Every(s.Refresh()), nil
	}
	return section.ParseSchedule(raw)
}

// ParseWebhookURL extracts the id and token of a Discord webhook URL
// (https://discord.com/api/webhooks/<id>/<token>).
func ParseWebhookURL(raw string) (id, token string, err error) {
	if err := checkHTTPURL(raw); err != nil {
		return "", "", err
	}
	u, _ := url.Parse(raw)
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" {
			id, token = parts[i+1], parts[i+2]
			break
		}
	}
	if id == "" || token == "" {
		return "", "", fmt.Errorf("not a webhook url: %q", raw)
	}
	return id, token, nil
}

func checkHTTPURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("url required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}
