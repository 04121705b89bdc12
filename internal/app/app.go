package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"hllstatus/internal/config"
	"hllstatus/internal/eventbus"
	"hllstatus/internal/observability/debugsrv"
	"hllstatus/internal/orchestrator"
	"hllstatus/internal/publish/discord"
	"hllstatus/internal/runtime/supervisor"
	"hllstatus/internal/section"
	"hllstatus/internal/store"
	logx "hllstatus/pkg/logx"
)

// RootLogName is the file name stem of the process-wide log.
const RootLogName = "hllstatus"

type App struct {
	settings Settings

	log  logx.Logger
	logs *logx.Service
	sink logx.Sink

	hc    *http.Client
	bus   eventbus.Bus
	store store.Backend
	orch  *orchestrator.Orchestrator
	sd    *notifier

	sup *supervisor.Supervisor
}

// Option adjusts wiring, mostly for tests.
type Option func(*App, *orchestrator.Deps)

// WithPublishers replaces the Discord/Telegram publishers.
func WithPublishers(f orchestrator.PublisherFactory) Option {
	return func(_ *App, d *orchestrator.Deps) { d.Publishers = f }
}

// WithHTTPClient replaces the shared HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *App, d *orchestrator.Deps) {
		a.hc = hc
		d.HTTP = hc
	}
}

// New wires logging, the message store and the orchestrator. Directories
// must exist already (see EnsureDirs).
func New(ctx context.Context, s Settings, opts ...Option) (*App, error) {
	if s.StopTimeout <= 0 {
		s.StopTimeout = 10 * time.Second
	}
	a := &App{settings: s, hc: &http.Client{}, bus: eventbus.New()}
	deps := orchestrator.Deps{HTTP: a.hc}
	for _, o := range opts {
		if o != nil {
			o(a, &deps)
		}
	}

	if s.LogWebhookURL != "" {
		sess, err := discord.NewSession(a.hc)
		if err != nil {
			return nil, err
		}
		sink, err := discord.NewLogSink(sess, s.LogWebhookURL)
		if err != nil {
			return nil, fmt.Errorf("log webhook: %w", err)
		}
		a.sink = sink
	}
	a.logs, a.log = logx.New(a.logConfig(RootLogName), a.sink)
	a.log = a.log.With(logx.String("comp", "app"))

	sc, err := mapStoreConfig(s)
	if err != nil {
		return nil, err
	}
	a.store, err = store.Open(ctx, sc, a.log.With(logx.String("comp", "store")))
	switch {
	case errors.Is(err, store.ErrDisabled):
		a.log.Warn("message id store disabled; messages will be recreated after a restart")
		a.store = store.NewMemory()
	case err != nil:
		_ = a.logs.Close()
		return nil, fmt.Errorf("open message store: %w", err)
	default:
		a.log.Info("message id store ready", logx.String("driver", sc.Driver))
	}

	a.sd = newNotifier(s.SystemdNotify, a.log.With(logx.String("comp", "systemd")))

	deps.Store = a.store
	deps.Bus = a.bus
	deps.Loggers = a.serverLogger
	deps.StopTimeout = s.StopTimeout / 2
	a.orch = orchestrator.New(deps, a.log.With(logx.String("comp", "orchestrator")))
	return a, nil
}

func (a *App) logConfig(name string) logx.Config {
	return logx.Config{
		Level:   a.settings.LogLevel,
		Console: a.settings.LogConsole,
		File: logx.FileConfig{
			Enabled:  true,
			Path:     filepath.Join(a.settings.LogsDir, name+".log"),
			MaxBytes: a.settings.LogMaxBytes,
			Backups:  a.settings.LogBackups,
		},
		Sink: logx.SinkConfig{
			Enabled:    a.sink != nil,
			MinLevel:   a.settings.LogWebhookLevel,
			RatePerSec: 1,
		},
	}
}

// serverLogger gives each server its own <server>.log.
func (a *App) serverLogger(server string) (logx.Logger, func()) {
	svc, log := logx.New(a.logConfig(server), a.sink)
	return log.With(logx.String("server", server)), func() { _ = svc.Close() }
}

func (a *App) Logger() logx.Logger                      { return a.log }
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start loads the server files and starts publishing. Rejected files are
// logged and skipped; an empty config directory is not an error.
func (a *App) Start(ctx context.Context) error {
	servers, err := config.LoadDir(a.settings.ConfigDir)
	switch {
	case errors.Is(err, config.ErrNoServers):
	case err != nil && len(servers) == 0 && !hasConfigErrors(err):
		return fmt.Errorf("read config dir: %w", err)
	case err != nil:
		a.log.Error("some server configs were rejected", logx.Err(err))
	}

	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		eventbus.Consume(c, events, a.logEvent)
		return nil
	})

	watcher := config.NewWatcher(a.settings.ConfigDir, servers, a.log.With(logx.String("comp", "config")))
	a.sup.Go("config.watch", watcher.Watch)
	a.sup.Go("orchestrator", func(c context.Context) error {
		return a.orch.Run(c, servers, watcher.Changes())
	})

	select {
	case <-a.orch.Started():
	case <-a.sup.Context().Done():
		return a.sup.Err()
	}
	a.sd.Ready()
	a.sup.Go("systemd.watchdog", func(c context.Context) error {
		a.sd.Watchdog(c)
		return nil
	})

	if a.settings.DebugAddr != "" {
		dbg := debugsrv.New(debugsrv.Config{Addr: a.settings.DebugAddr, Token: a.settings.DebugToken}, a.status, a.log.With(logx.String("comp", "debug")))
		a.sup.GoRestart("debug.http", dbg.Serve, 500*time.Millisecond, 10*time.Second)
	}

	a.log.Info("app started",
		logx.Int("servers", len(servers)),
		logx.String("config_dir", a.settings.ConfigDir),
	)
	return nil
}

type sectionView struct {
	Server string `json:"server"`
	Key    string `json:"section"`
	State  string `json:"state"`
	Cycles uint64 `json:"cycles"`
	Handle string `json:"message_id,omitempty"`
}

type goroutineView struct {
	Name     string `json:"name"`
	Active   int    `json:"active"`
	Restarts uint64 `json:"restarts"`
	Panics   uint64 `json:"panics"`
	LastErr  string `json:"last_err,omitempty"`
}

type statusView struct {
	Servers    []string        `json:"servers"`
	Sections   []sectionView   `json:"sections"`
	Goroutines []goroutineView `json:"goroutines"`
}

// status is served at /status by the debug server.
func (a *App) status() any {
	v := statusView{Servers: a.orch.Running()}
	for _, st := range a.orch.Status() {
		sv := sectionView{Server: st.Server, Key: st.Key, State: st.State.String(), Cycles: st.Cycles}
		if st.Handle.IsSet() {
			sv.Handle = st.Handle.String()
		}
		v.Sections = append(v.Sections, sv)
	}
	for _, g := range a.sup.Snapshot() {
		v.Goroutines = append(v.Goroutines, goroutineView{
			Name:     g.Name,
			Active:   g.Active,
			Restarts: g.Restarts,
			Panics:   g.Panics,
			LastErr:  g.LastErr,
		})
	}
	return v
}

// hasConfigErrors reports whether err came from parsing server files rather
// than from reading the directory.
func hasConfigErrors(err error) bool {
	var joined interface{ Unwrap() []error }
	return errors.As(err, &joined)
}

// logEvent keeps section events at debug level; refreshes are frequent.
func (a *App) logEvent(e eventbus.Event) {
	fields := []logx.Field{logx.String("type", e.Type), logx.Time("time", e.Time)}
	if ev, ok := e.Data.(section.CycleEvent); ok {
		fields = append(fields,
			logx.String("server", ev.Server),
			logx.String("section", ev.Key),
			logx.String("outcome", ev.Outcome.String()),
			logx.Duration("took", ev.Duration),
		)
		if ev.Error != "" {
			fields = append(fields, logx.String("err", ev.Error))
		}
	}
	a.log.Debug("event", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	// Each step gets an upper bound so one component cannot stall the stop.
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	// Canceling the supervisor stops the orchestrator, which stops every
	// server's sections before Run returns.
	step("supervisor", a.settings.StopTimeout, func(c context.Context) error {
		err := a.sup.Stop(c)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}
