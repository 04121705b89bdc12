package section

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"hllstatus/internal/eventbus"
	"hllstatus/internal/store"
	logx "hllstatus/pkg/logx"
)

type fakePublisher struct {
	mu      sync.Mutex
	next    store.Handle
	editErr error
	makeErr error
	creates int
	edits   []store.Handle
	last    Content
}

func (p *fakePublisher) Create(_ context.Context, c Content) (store.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creates++
	if p.makeErr != nil {
		return store.NoMessage, p.makeErr
	}
	p.next++
	p.last = c
	return p.next, nil
}

func (p *fakePublisher) Edit(_ context.Context, h store.Handle, c Content) (store.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.edits = append(p.edits, h)
	if p.editErr != nil {
		return store.NoMessage, p.editErr
	}
	p.last = c
	return h, nil
}

type memRecorder struct {
	mu    sync.Mutex
	ids   map[string]store.Handle
	saves int
}

func newMemRecorder() *memRecorder { return &memRecorder{ids: map[string]store.Handle{}} }

func (r *memRecorder) Get(key string) store.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids[key]
}

func (r *memRecorder) Set(_ context.Context, key string, h store.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[key] = h
	r.saves++
	return nil
}

func textBuilder(s string) Builder {
	return BuilderFunc(func(context.Context) (Content, error) { return Content{Text: s}, nil })
}

func newTestScheduler(b Builder, pub Publisher, rec Recorder, opts ...Option) *Scheduler {
	return New("alpha", Section{Key: store.KeyGamestate, Schedule: Every(10 * time.Second), Builder: b}, pub, rec, logx.Nop(), opts...)
}

func TestSleepForNeverNegative(t *testing.T) {
	t.Parallel()
	cases := []struct {
		interval, elapsed, want time.Duration
	}{
		{10 * time.Second, 3 * time.Second, 7 * time.Second},
		{10 * time.Second, 10 * time.Second, 0},
		{10 * time.Second, 25 * time.Second, 0},
		{0, time.Second, 0},
	}
	for _, tc := range cases {
		if got := SleepFor(tc.interval, tc.elapsed); got != tc.want {
			t.Fatalf("SleepFor(%v,%v)=%v want %v", tc.interval, tc.elapsed, got, tc.want)
		}
	}
}

func TestCreateThenEdit(t *testing.T) {
	t.Parallel()
	pub := &fakePublisher{}
	rec := newMemRecorder()
	s := newTestScheduler(textBuilder("hello"), pub, rec)

	out, err := s.RunOnce(context.Background())
	if err != nil || out != OutcomeCreated {
		t.Fatalf("first cycle: %v %v", out, err)
	}
	out, err = s.RunOnce(context.Background())
	if err != nil || out != OutcomeEdited {
		t.Fatalf("second cycle: %v %v", out, err)
	}
	if pub.creates != 1 || len(pub.edits) != 1 || pub.edits[0] != 1 {
		t.Fatalf("creates=%d edits=%v", pub.creates, pub.edits)
	}
	if rec.Get(store.KeyGamestate) != 1 {
		t.Fatalf("handle not persisted: %v", rec.Get(store.KeyGamestate))
	}
}

func TestNotFoundFallsThroughToCreate(t *testing.T) {
	t.Parallel()
	pub := &fakePublisher{next: 40, editErr: fmt.Errorf("edit 7: %w", ErrNotFound)}
	rec := newMemRecorder()
	rec.ids[store.KeyGamestate] = 7
	s := newTestScheduler(textBuilder("hello"), pub, rec)

	out, err := s.RunOnce(context.Background())
	if err != nil || out != OutcomeCreated {
		t.Fatalf("RunOnce=%v,%v", out, err)
	}
	if pub.creates != 1 {
		t.Fatalf("expected a create after not found, got %d", pub.creates)
	}
	if got := rec.Get(store.KeyGamestate); got != 41 {
		t.Fatalf("persisted handle=%v want 41", got)
	}
}

func TestNotFoundWithFailedCreateForgetsHandle(t *testing.T) {
	t.Parallel()
	pub := &fakePublisher{editErr: ErrNotFound, makeErr: errors.New("webhook down")}
	rec := newMemRecorder()
	rec.ids[store.KeyGamestate] = 7
	s := newTestScheduler(textBuilder("hello"), pub, rec)

	out, err := s.RunOnce(context.Background())
	if err == nil || out != OutcomeFailed {
		t.Fatalf("RunOnce=%v,%v", out, err)
	}
	if got := rec.Get(store.KeyGamestate); got != store.NoMessage {
		t.Fatalf("stale handle kept: %v", got)
	}
}

func TestRateLimitedSkipsWithoutPersisting(t *testing.T) {
	t.Parallel()
	pub := &fakePublisher{editErr: fmt.Errorf("retry after 2s: %w", ErrRateLimited)}
	rec := newMemRecorder()
	rec.ids[store.KeyGamestate] = 7
	s := newTestScheduler(textBuilder("hello"), pub, rec)

	out, err := s.RunOnce(context.Background())
	if !errors.Is(err, ErrRateLimited) || out != OutcomeRateLimited {
		t.Fatalf("RunOnce=%v,%v", out, err)
	}
	if rec.saves != 0 || rec.Get(store.KeyGamestate) != 7 || pub.creates != 0 {
		t.Fatalf("rate limited cycle mutated state: saves=%d handle=%v creates=%d", rec.saves, rec.Get(store.KeyGamestate), pub.creates)
	}
}

func TestEmptyContentOrBuilderErrorSkips(t *testing.T) {
	t.Parallel()
	builders := []Builder{
		textBuilder("   "),
		BuilderFunc(func(context.Context) (Content, error) { return Content{Embed: &Embed{}}, nil }),
		BuilderFunc(func(context.Context) (Content, error) { return Content{}, errors.New("no result") }),
	}
	for i, b := range builders {
		pub := &fakePublisher{}
		rec := newMemRecorder()
		out, _ := newTestScheduler(b, pub, rec).RunOnce(context.Background())
		if out != OutcomeSkipped || pub.creates != 0 || len(pub.edits) != 0 || rec.saves != 0 {
			t.Fatalf("builder %d: out=%v creates=%d edits=%d saves=%d", i, out, pub.creates, len(pub.edits), rec.saves)
		}
	}
}

func TestRunCompensatesForProcessingTime(t *testing.T) {
	t.Parallel()
	var (
		mu     sync.Mutex
		now    = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		sleeps []time.Duration
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	work := []time.Duration{3 * time.Second, 12 * time.Second, 10 * time.Second}
	cycle := 0
	b := BuilderFunc(func(context.Context) (Content, error) {
		advance(work[cycle])
		cycle++
		return Content{Text: "x"}, nil
	})
	sleep := func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		advance(d)
		if len(sleeps) == len(work) {
			cancel()
			return context.Canceled
		}
		return nil
	}

	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	s := newTestScheduler(b, &fakePublisher{}, newMemRecorder(), WithClock(clock, sleep), WithBus(bus))
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}

	want := []time.Duration{7 * time.Second, 0, 0}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Fatalf("sleep[%d]=%v want %v (all %v)", i, sleeps[i], want[i], sleeps)
		}
	}
	if s.State() != StateStopped || s.Cycles() != 3 {
		t.Fatalf("state=%v cycles=%d", s.State(), s.Cycles())
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	first := <-events
	if first.Type != EventPublished || first.Data.(CycleEvent).Outcome != OutcomeCreated {
		t.Fatalf("unexpected first event %+v", first)
	}
}

func TestCronScheduleDelay(t *testing.T) {
	t.Parallel()
	sch, err := ParseSchedule("*/10 * * * * *")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	start := time.Date(2024, 1, 1, 12, 0, 3, 0, time.UTC)
	if got := sch.Delay(start, 2*time.Second); got != 5*time.Second {
		t.Fatalf("Delay=%v want 5s", got)
	}
	if got := sch.Delay(start, 9*time.Second); got != 0 {
		t.Fatalf("overrun Delay=%v want 0", got)
	}
}

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw    string
		kind   Kind
		source string
		every  time.Duration
	}{
		{raw: "45s", kind: KindInterval, source: "duration", every: 45 * time.Second},
		{raw: "every:2m", kind: KindInterval, source: "duration", every: 2 * time.Minute},
		{raw: "01:30", kind: KindInterval, source: "mmss", every: 90 * time.Second},
		{raw: "@every 1m", kind: KindCron, source: "cron"},
		{raw: "cron:0 */5 * * * *", kind: KindCron, source: "cron"},
	}
	for _, tt := range tests {
		got, err := ParseSchedule(tt.raw)
		if err != nil {
			t.Fatalf("ParseSchedule(%q): %v", tt.raw, err)
		}
		if got.Kind != tt.kind || got.Source != tt.source || (tt.kind == KindInterval && got.Every != tt.every) {
			t.Fatalf("ParseSchedule(%q)=%+v", tt.raw, got)
		}
	}
	for _, bad := range []string{"", "soon", "0s", "cron:", "cron:not a cron", "01:75"} {
		if _, err := ParseSchedule(bad); err == nil {
			t.Fatalf("ParseSchedule(%q) should fail", bad)
		}
	}
}
