// Package discord publishes section content through a Discord webhook.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"hllstatus/internal/config"
	"hllstatus/internal/section"
	"hllstatus/internal/store"
	logx "hllstatus/pkg/logx"
)

// Discord limits.
const (
	maxContent    = 2000
	maxFieldValue = 1024
)

// Webhook is the part of *discordgo.Session used for publishing.
type Webhook interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	WebhookMessageEdit(webhookID, token, messageID string, data *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Publisher creates and edits messages of one webhook.
type Publisher struct {
	api       Webhook
	id, token string
	username  string
	avatarURL string
	log       logx.Logger
}

// NewSession returns a token-less REST session for webhook calls. Rate
// limited requests fail instead of sleeping so a cycle never stalls.
func NewSession(hc *http.Client) (*discordgo.Session, error) {
	s, err := discordgo.New("")
	if err != nil {
		return nil, err
	}
	if hc != nil {
		s.Client = hc
	}
	s.ShouldRetryOnRateLimit = false
	s.MaxRestRetries = 1
	return s, nil
}

// New builds a Publisher for cfg.WebhookURL.
func New(api Webhook, cfg config.DiscordConfig, log logx.Logger) (*Publisher, error) {
	id, token, err := config.ParseWebhookURL(cfg.WebhookURL)
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Publisher{
		api:       api,
		id:        id,
		token:     token,
		username:  cfg.Username,
		avatarURL: cfg.AvatarURL,
		log:       log.With(logx.String("publisher", "discord")),
	}, nil
}

func (p *Publisher) Create(ctx context.Context, c section.Content) (store.Handle, error) {
	params := &discordgo.WebhookParams{
		Content:   truncate(c.Text, maxContent),
		Username:  p.username,
		AvatarURL: p.avatarURL,
	}
	if e := toEmbed(c.Embed); e != nil {
		params.Embeds = []*discordgo.MessageEmbed{e}
	}

	msg, err := p.api.WebhookExecute(p.id, p.token, true, params, discordgo.WithContext(ctx))
	if err != nil {
		return store.NoMessage, mapError("create", err)
	}
	return parseHandle(msg)
}

// Edit replaces both text and embeds so stale parts of the previous content
// never linger.
func (p *Publisher) Edit(ctx context.Context, h store.Handle, c section.Content) (store.Handle, error) {
	content := truncate(c.Text, maxContent)
	embeds := []*discordgo.MessageEmbed{}
	if e := toEmbed(c.Embed); e != nil {
		embeds = append(embeds, e)
	}

	msg, err := p.api.WebhookMessageEdit(p.id, p.token, h.String(), &discordgo.WebhookEdit{
		Content: &content,
		Embeds:  &embeds,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return store.NoMessage, mapError("edit "+h.String(), err)
	}
	if msg == nil || msg.ID == "" {
		return h, nil
	}
	return parseHandle(msg)
}

func parseHandle(msg *discordgo.Message) (store.Handle, error) {
	if msg == nil {
		return store.NoMessage, errors.New("discord: webhook returned no message")
	}
	h, err := store.ParseHandle(msg.ID)
	if err != nil {
		return store.NoMessage, fmt.Errorf("discord: message id %q: %w", msg.ID, err)
	}
	return h, nil
}

// mapError turns discordgo failures into section errors.
func mapError(op string, err error) error {
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return fmt.Errorf("discord %s: %w: %w", op, section.ErrRateLimited, err)
	}
	var re *discordgo.RESTError
	if errors.As(err, &re) {
		if re.Message != nil && re.Message.Code == discordgo.ErrCodeUnknownMessage {
			return fmt.Errorf("discord %s: %w: %w", op, section.ErrNotFound, err)
		}
		if re.Response != nil {
			switch re.Response.StatusCode {
			case http.StatusNotFound:
				return fmt.Errorf("discord %s: %w: %w", op, section.ErrNotFound, err)
			case http.StatusTooManyRequests:
				return fmt.Errorf("discord %s: %w: %w", op, section.ErrRateLimited, err)
			}
		}
	}
	return fmt.Errorf("discord %s: %w", op, err)
}

func toEmbed(e *section.Embed) *discordgo.MessageEmbed {
	if e.Empty() {
		return nil
	}
	out := &discordgo.MessageEmbed{
		Type:        discordgo.EmbedTypeRich,
		Title:       e.Title,
		Description: e.Description,
		URL:         e.URL,
		Color:       e.Color,
	}
	if e.ImageURL != "" {
		out.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if !e.Timestamp.IsZero() {
		out.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  truncate(f.Value, maxFieldValue),
			Inline: f.Inline,
		})
	}
	return out
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxRunes-1]) + "…"
}
