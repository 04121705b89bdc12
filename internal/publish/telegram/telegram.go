// Package telegram publishes section content to a Telegram chat as HTML.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"

	tele "gopkg.in/telebot.v4"

	"hllstatus/internal/config"
	"hllstatus/internal/section"
	"hllstatus/internal/store"
	logx "hllstatus/pkg/logx"
)

const maxText = 4096

// Bot is the part of *tele.Bot used for publishing.
type Bot interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// NewBot returns an offline bot: no getMe on start and no polling.
// apiURL may be empty for the public Bot API.
func NewBot(token, apiURL string, hc *http.Client) (*tele.Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	return tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   token,
		Client:  hc,
		Offline: true,
	})
}

type Publisher struct {
	bot      Bot
	chat     *tele.Chat
	threadID int
	log      logx.Logger
}

func New(bot Bot, cfg config.TelegramConfig, log logx.Logger) *Publisher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Publisher{
		bot:      bot,
		chat:     &tele.Chat{ID: cfg.ChatID},
		threadID: cfg.ThreadID,
		log:      log.With(logx.String("publisher", "telegram")),
	}
}

func (p *Publisher) Create(ctx context.Context, c section.Content) (store.Handle, error) {
	if err := ctx.Err(); err != nil {
		return store.NoMessage, err
	}
	text, opts := p.render(c)
	opts.ThreadID = p.threadID

	msg, err := p.bot.Send(p.chat, text, opts)
	if err != nil {
		return store.NoMessage, mapError("create", err)
	}
	if msg == nil {
		return store.NoMessage, errors.New("telegram: send returned no message")
	}
	return store.Handle(msg.ID), nil
}

// Edit treats "message is not modified" as success: the chat already shows
// this content.
func (p *Publisher) Edit(ctx context.Context, h store.Handle, c section.Content) (store.Handle, error) {
	if err := ctx.Err(); err != nil {
		return store.NoMessage, err
	}
	text, opts := p.render(c)

	_, err := p.bot.Edit(&tele.Message{ID: int(h), Chat: p.chat}, text, opts)
	if err != nil {
		if notModified(err) {
			p.log.Trace("message unchanged", logx.Int64("handle", int64(h)))
			return h, nil
		}
		return store.NoMessage, mapError("edit "+h.String(), err)
	}
	return h, nil
}

func (p *Publisher) render(c section.Content) (string, *tele.SendOptions) {
	text, image := RenderHTML(c)
	return text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: image == "",
	}
}

func notModified(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}

func mapError(op string, err error) error {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return fmt.Errorf("telegram %s: %w: retry after %ds", op, section.ErrRateLimited, flood.RetryAfter)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "message to edit not found"), strings.Contains(msg, "message_id_invalid"):
		return fmt.Errorf("telegram %s: %w: %w", op, section.ErrNotFound, err)
	case strings.Contains(msg, "too many requests"), strings.Contains(msg, "retry after"):
		return fmt.Errorf("telegram %s: %w: %w", op, section.ErrRateLimited, err)
	}
	return fmt.Errorf("telegram %s: %w", op, err)
}

var codeBlockRe = regexp.MustCompile("(?s)```[A-Za-z]*\\n(.*?)\\n?```")

// RenderHTML renders content as Telegram HTML and returns the image URL it
// linked, if any. Discord code blocks become <pre> blocks.
func RenderHTML(c section.Content) (string, string) {
	var parts []string
	if t := strings.TrimSpace(c.Text); t != "" {
		parts = append(parts, textHTML(t))
	}

	image := ""
	if e := c.Embed; !e.Empty() {
		var b strings.Builder
		if e.ImageURL != "" {
			image = e.ImageURL
			// Invisible link so Telegram previews the map picture.
			b.WriteString(`<a href="` + html.EscapeString(e.ImageURL) + `">&#8203;</a>`)
		}
		if e.Title != "" {
			title := "<b>" + html.EscapeString(e.Title) + "</b>"
			if e.URL != "" {
				title = `<a href="` + html.EscapeString(e.URL) + `">` + title + "</a>"
			}
			b.WriteString(title + "\n")
		}
		if e.Description != "" {
			b.WriteString(html.EscapeString(e.Description) + "\n")
		}
		for _, f := range e.Fields {
			name := strings.TrimSpace(strings.ReplaceAll(f.Name, "​", ""))
			value := strings.ReplaceAll(f.Value, "​", "")
			switch {
			case name == "" && strings.TrimSpace(value) == "":
				b.WriteString("\n")
			case name == "":
				b.WriteString(html.EscapeString(value) + "\n")
			case f.Inline:
				b.WriteString("<b>" + html.EscapeString(name) + ":</b> " + html.EscapeString(value) + "\n")
			default:
				b.WriteString("<b>" + html.EscapeString(name) + "</b>\n" + html.EscapeString(value) + "\n")
			}
		}
		if e.Footer != "" || !e.Timestamp.IsZero() {
			footer := e.Footer
			if !e.Timestamp.IsZero() {
				ts := e.Timestamp.UTC().Format("2006-01-02 15:04 UTC")
				if footer != "" {
					footer += " • " + ts
				} else {
					footer = ts
				}
			}
			b.WriteString("<i>" + html.EscapeString(footer) + "</i>")
		}
		parts = append(parts, strings.TrimRight(b.String(), "\n"))
	}

	out := strings.Join(parts, "\n\n")
	if len([]rune(out)) > maxText {
		out = string([]rune(out)[:maxText])
	}
	return out, image
}

func textHTML(s string) string {
	var b strings.Builder
	last := 0
	for _, m := range codeBlockRe.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(html.EscapeString(s[last:m[0]]))
		b.WriteString("<pre>" + html.EscapeString(s[m[2]:m[3]]) + "</pre>")
		last = m[1]
	}
	b.WriteString(html.EscapeString(s[last:]))
	return b.String()
}
