package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"hllstatus/internal/config"
	"hllstatus/internal/crcon"
	"hllstatus/internal/render"
	"hllstatus/internal/runtime/supervisor"
	"hllstatus/internal/section"
	"hllstatus/internal/store"
	logx "hllstatus/pkg/logx"
)

// Section loops restart after a panic within these bounds.
const (
	restartMin = time.Second
	restartMax = 30 * time.Second
)

type Orchestrator struct {
	deps Deps
	log  logx.Logger

	mu      sync.Mutex
	servers map[string]*running

	startedOnce sync.Once
	started     chan struct{}
}

// running is one started server.
type running struct {
	srv        *config.Server
	sup        *supervisor.Supervisor
	schedulers []*section.Scheduler
	messages   *store.Messages
	release    func()
}

func New(deps Deps, log logx.Logger) *Orchestrator {
	if log.IsZero() {
		log = logx.Nop()
	}
	if deps.HTTP == nil {
		deps.HTTP = &http.Client{}
	}
	if deps.Publishers == nil {
		deps.Publishers = DefaultPublishers(deps.HTTP)
	}
	if deps.Loggers == nil {
		deps.Loggers = func(server string) (logx.Logger, func()) {
			return log.With(logx.String("server", server)), func() {}
		}
	}
	if deps.StopTimeout <= 0 {
		deps.StopTimeout = 5 * time.Second
	}
	return &Orchestrator{deps: deps, log: log, servers: map[string]*running{}, started: make(chan struct{})}
}

// Started is closed once Run has attempted every initial server.
func (o *Orchestrator) Started() <-chan struct{} { return o.started }

// Run starts servers and applies changes until ctx ends, then stops every
// server. A server that fails to start is logged and skipped; the others
// keep running. With no servers the process idles and waits for changes.
func (o *Orchestrator) Run(ctx context.Context, servers []*config.Server, changes <-chan config.Change) error {
	if len(servers) == 0 {
		o.log.Warn("no servers configured; waiting for config files")
	}
	for _, srv := range servers {
		if err := o.Start(ctx, srv); err != nil {
			o.log.Error("server not started", logx.String("server", srv.ID), logx.Err(err))
		}
	}
	o.startedOnce.Do(func() { close(o.started) })

	for {
		select {
		case <-ctx.Done():
			o.StopAll()
			return nil
		case c, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			o.apply(ctx, c)
		}
	}
}

func (o *Orchestrator) apply(ctx context.Context, c config.Change) {
	switch c.Kind {
	case config.ChangeRemoved:
		if o.Stop(c.ID) {
			o.log.Info("server removed", logx.String("server", c.ID))
		}
	case config.ChangeUpdated:
		o.mu.Lock()
		prev := o.servers[c.ID]
		o.mu.Unlock()

		if prev != nil {
			changed, attrs := config.SummarizeChange(prev.srv, c.Server)
			fields := append([]logx.Field{logx.String("server", c.ID), logx.String("changed", strings.Join(changed, ","))}, attrs...)
			o.log.Info("server config changed; restarting its sections", fields...)
			o.Stop(c.ID)
		} else {
			o.log.Info("server added", logx.String("server", c.ID))
		}
		if err := o.Start(ctx, c.Server); err != nil {
			o.log.Error("server not started", logx.String("server", c.ID), logx.Err(err))
		}
	}
}

// Start wires and launches one server. It replaces nothing: the caller stops
// a previous instance first.
func (o *Orchestrator) Start(ctx context.Context, srv *config.Server) error {
	o.mu.Lock()
	_, exists := o.servers[srv.ID]
	o.mu.Unlock()
	if exists {
		return fmt.Errorf("server %q already running", srv.ID)
	}

	log, release := o.deps.Loggers(srv.ID)
	ok := false
	defer func() {
		if !ok {
			release()
		}
	}()

	queries := NewQueries(o.deps.HTTP, srv, log)

	backend, owned, err := o.backendFor(ctx, srv, log)
	if err != nil {
		return fmt.Errorf("message store: %w", err)
	}
	if owned {
		prevRelease := release
		release = func() {
			_ = backend.Close()
			prevRelease()
		}
	}
	msgs, err := store.LoadMessages(ctx, backend, srv.DocumentID(), store.SectionKeys, log.With(logx.String("comp", "store")))
	if err != nil {
		return fmt.Errorf("load message ids: %w", err)
	}

	pub, err := o.deps.Publishers(ctx, srv, log)
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}

	r := render.New(queries, srv.Display, log.With(logx.String("comp", "render")))
	sections, err := render.Sections(srv, r)
	if err != nil {
		return err
	}

	run := &running{
		srv:      srv,
		sup:      supervisor.New(ctx, supervisor.WithLogger(log)),
		messages: msgs,
		release:  release,
	}
	for _, sec := range sections {
		sch := section.New(srv.ID, sec, pub, msgs, log, section.WithBus(o.deps.Bus))
		run.schedulers = append(run.schedulers, sch)
		run.sup.GoRestart(srv.ID+"."+sec.Key, sch.Run, restartMin, restartMax)
	}

	o.mu.Lock()
	o.servers[srv.ID] = run
	o.mu.Unlock()
	ok = true

	if len(sections) == 0 {
		log.Warn("server has no enabled sections")
	}
	log.Info("server started", logx.Int("sections", len(sections)), logx.String("base_url", queries.Session().BaseURL))
	return nil
}

// NewQueries builds the control API client of srv on a copy of hc that
// carries the server's request timeout.
func NewQueries(hc *http.Client, srv *config.Server, log logx.Logger) crcon.Queries {
	c := *hc
	c.Timeout = srv.API.TimeoutDuration()
	client := crcon.NewClient(&c, crcon.Config{
		Attempts:   srv.API.Attempts,
		RetryDelay: srv.API.RetryDelayDuration(),
		RatePerSec: srv.API.RatePerSec,
	}, log.With(logx.String("comp", "crcon")))
	return crcon.NewQueries(client, crcon.NewSession(srv.ID, srv.API.BaseServerURL, srv.API.Username, srv.API.Password))
}

// Stop cancels one server's sections and waits for them. It reports whether
// the server was running.
func (o *Orchestrator) Stop(id string) bool {
	o.mu.Lock()
	run := o.servers[id]
	delete(o.servers, id)
	o.mu.Unlock()
	if run == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.deps.StopTimeout)
	defer cancel()
	if err := run.sup.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		o.log.Warn("server stop incomplete", logx.String("server", id), logx.Err(err))
	}
	run.release()
	return true
}

// StopAll stops every running server concurrently.
func (o *Orchestrator) StopAll() {
	var wg sync.WaitGroup
	for _, id := range o.Running() {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			o.Stop(id)
		}(id)
	}
	wg.Wait()
}

// Running returns the ids of running servers, sorted.
func (o *Orchestrator) Running() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.servers))
	for id := range o.servers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SectionStatus describes one running section.
type SectionStatus struct {
	Server string
	Key    string
	State  section.State
	Cycles uint64
	Handle store.Handle
}

// Status returns the state of every running section, ordered by server.
func (o *Orchestrator) Status() []SectionStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []SectionStatus
	for id, run := range o.servers {
		for _, sch := range run.schedulers {
			out = append(out, SectionStatus{
				Server: id,
				Key:    sch.Key(),
				State:  sch.State(),
				Cycles: sch.Cycles(),
				Handle: run.messages.Get(sch.Key()),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Server != out[j].Server {
			return out[i].Server < out[j].Server
		}
		return out[i].Key < out[j].Key
	})
	return out
}
