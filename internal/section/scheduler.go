package section

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"hllstatus/internal/eventbus"
	"hllstatus/internal/store"
	logx "hllstatus/pkg/logx"
)

// State is the scheduler's position in its cycle.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateRendering
	StatePublishing
	StatePersisting
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateRendering:
		return "rendering"
	case StatePublishing:
		return "publishing"
	case StatePersisting:
		return "persisting"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Outcome summarizes one cycle.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeCreated
	OutcomeEdited
	OutcomeRateLimited
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeEdited:
		return "edited"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Event types published on the bus after each cycle.
const (
	EventPublished = "section.published"
	EventSkipped   = "section.skipped"
	EventFailed    = "section.failed"
)

// CycleEvent is the Data of every section event.
type CycleEvent struct {
	Server   string
	Key      string
	Outcome  Outcome
	Handle   store.Handle
	Duration time.Duration
	Error    string
}

// Section is one independently refreshed unit of published content.
type Section struct {
	Key      string
	Schedule Schedule
	Builder  Builder
}

// Scheduler drives one (server, section) pair until its context ends.
type Scheduler struct {
	server string
	sec    Section
	pub    Publisher
	rec    Recorder
	log    logx.Logger
	bus    eventbus.Bus

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	state  atomic.Int32
	cycles atomic.Uint64
}

type Option func(*Scheduler)

// WithBus publishes a CycleEvent after every cycle.
func WithBus(b eventbus.Bus) Option { return func(s *Scheduler) { s.bus = b } }

// WithClock replaces the clock and the end-of-cycle sleep.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

func New(server string, sec Section, pub Publisher, rec Recorder, log logx.Logger, opts ...Option) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{
		server: server,
		sec:    sec,
		pub:    pub,
		rec:    rec,
		log:    log.With(logx.String("section", sec.Key)),
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	return s
}

func (s *Scheduler) Key() string    { return s.sec.Key }
func (s *Scheduler) State() State   { return State(s.state.Load()) }
func (s *Scheduler) Cycles() uint64 { return s.cycles.Load() }

func (s *Scheduler) setState(st State) { s.state.Store(int32(st)) }

// Run repeats cycles until ctx is canceled and then returns ctx.Err().
// A failed cycle never ends the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.setState(StateStopped)
	s.log.Info("section scheduler started", logx.String("schedule", s.sec.Schedule.String()))

	for {
		start := s.now()
		_, _ = s.RunOnce(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}

		elapsed := s.now().Sub(start)
		d := s.sec.Schedule.Delay(start, elapsed)
		s.setState(StateSleeping)
		s.log.Trace("section sleeping", logx.Duration("elapsed", elapsed), logx.Duration("sleep", d))
		if err := s.sleep(ctx, d); err != nil {
			return err
		}
	}
}

// RunOnce performs a single fetch, publish, persist cycle.
func (s *Scheduler) RunOnce(ctx context.Context) (Outcome, error) {
	start := s.now()
	s.cycles.Add(1)

	outcome, h, err := s.cycle(ctx)

	ev := CycleEvent{
		Server:   s.server,
		Key:      s.sec.Key,
		Outcome:  outcome,
		Handle:   h,
		Duration: s.now().Sub(start),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	switch outcome {
	case OutcomeCreated, OutcomeEdited:
		eventbus.Emit(s.bus, EventPublished, ev)
	case OutcomeFailed:
		eventbus.Emit(s.bus, EventFailed, ev)
	default:
		eventbus.Emit(s.bus, EventSkipped, ev)
	}
	return outcome, err
}

func (s *Scheduler) cycle(ctx context.Context) (Outcome, store.Handle, error) {
	s.setState(StateFetching)
	content, err := s.sec.Builder.Build(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeSkipped, store.NoMessage, ctx.Err()
		}
		s.log.Warn("section not refreshed this cycle", logx.Err(err))
		return OutcomeSkipped, store.NoMessage, err
	}

	s.setState(StateRendering)
	if content.Empty() {
		s.log.Debug("section produced no content")
		return OutcomeSkipped, store.NoMessage, nil
	}
	if err := ctx.Err(); err != nil {
		return OutcomeSkipped, store.NoMessage, err
	}

	s.setState(StatePublishing)
	prev := s.rec.Get(s.sec.Key)
	outcome := OutcomeEdited
	var h store.Handle

	if prev.IsSet() {
		h, err = s.pub.Edit(ctx, prev, content)
		if errors.Is(err, ErrNotFound) {
			s.log.Warn("previous message is gone, creating a new one", logx.Int64("handle", int64(prev)))
			prev = store.NoMessage
		}
	}
	if !prev.IsSet() {
		outcome = OutcomeCreated
		h, err = s.pub.Create(ctx, content)
		if err != nil && s.rec.Get(s.sec.Key).IsSet() {
			// The stored handle is known to be gone; forget it so the next
			// cycle creates instead of editing again.
			if serr := s.rec.Set(ctx, s.sec.Key, store.NoMessage); serr != nil {
				s.log.Error("failed to clear message id", logx.Err(serr))
			}
		}
	}

	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			s.log.Warn("rate limited, skipping this cycle", logx.Err(err))
			return OutcomeRateLimited, store.NoMessage, err
		}
		if ctx.Err() != nil {
			return OutcomeSkipped, store.NoMessage, ctx.Err()
		}
		s.log.Error("publish failed", logx.Err(err))
		return OutcomeFailed, store.NoMessage, err
	}

	s.setState(StatePersisting)
	if err := s.rec.Set(ctx, s.sec.Key, h); err != nil {
		// The message is live; only durability across restarts is lost.
		s.log.Error("failed to save message id", logx.Int64("handle", int64(h)), logx.Err(err))
	}
	s.log.Debug("section published", logx.String("outcome", outcome.String()), logx.Int64("handle", int64(h)))
	return outcome, h, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
