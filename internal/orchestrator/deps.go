package orchestrator

import (
	"context"
	"net/http"
	"time"

	"hllstatus/internal/config"
	"hllstatus/internal/eventbus"
	"hllstatus/internal/publish/discord"
	"hllstatus/internal/publish/telegram"
	"hllstatus/internal/section"
	"hllstatus/internal/store"
	logx "hllstatus/pkg/logx"
)

// PublisherFactory builds the messaging endpoint of one server.
type PublisherFactory func(ctx context.Context, srv *config.Server, log logx.Logger) (section.Publisher, error)

// LoggerFactory returns the logger of one server and a func that releases it.
type LoggerFactory func(server string) (logx.Logger, func())

type Deps struct {
	// HTTP is shared by every control API client. Its timeout is replaced
	// per server by api.timeout.
	HTTP *http.Client
	// Store holds message ids for servers without output.message_id_directory.
	Store      store.Backend
	Bus        eventbus.Bus
	Publishers PublisherFactory
	Loggers    LoggerFactory
	// StopTimeout bounds the wait for one server's sections to stop
	// (default 5s).
	StopTimeout time.Duration
}

// DefaultPublishers publishes to Telegram when [telegram] is configured and
// to the Discord webhook otherwise.
func DefaultPublishers(hc *http.Client) PublisherFactory {
	return func(_ context.Context, srv *config.Server, log logx.Logger) (section.Publisher, error) {
		if srv.Telegram != nil {
			bot, err := telegram.NewBot(srv.Telegram.Token, "", hc)
			if err != nil {
				return nil, err
			}
			return telegram.New(bot, *srv.Telegram, log), nil
		}
		sess, err := discord.NewSession(hc)
		if err != nil {
			return nil, err
		}
		return discord.New(sess, srv.Discord, log)
	}
}

// backendFor returns the store of srv and whether the caller owns it. A
// server with output.message_id_directory gets its own file backend there.
func (o *Orchestrator) backendFor(ctx context.Context, srv *config.Server, log logx.Logger) (store.Backend, bool, error) {
	dir := srv.Output.MessageIDDirectory
	if dir == "" {
		return o.deps.Store, false, nil
	}
	b, err := store.Open(ctx, store.Config{Driver: "file", Path: dir}, log)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}
