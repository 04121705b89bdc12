package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"hllstatus/internal/config"
)

// LogSink forwards log lines to a Discord webhook. It satisfies logx.Sink.
type LogSink struct {
	api       Webhook
	id, token string
}

func NewLogSink(api Webhook, webhookURL string) (*LogSink, error) {
	id, token, err := config.ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	return &LogSink{api: api, id: id, token: token}, nil
}

func (s *LogSink) SendLog(ctx context.Context, text string) error {
	_, err := s.api.WebhookExecute(s.id, s.token, false, &discordgo.WebhookParams{
		Content: "```\n" + truncate(text, maxContent-8) + "\n```",
	}, discordgo.WithContext(ctx))
	if err != nil {
		return mapError("log", err)
	}
	return nil
}
