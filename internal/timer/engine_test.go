package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"timetracker/internal/core"
	"timetracker/internal/store"
	"timetracker/internal/store/memory"
	"timetracker/internal/testutil"
)

func newFixture(t *testing.T) (*memory.Store, *testutil.StubClock, []core.Task) {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	if _, err := s.CreateClient(ctx, core.Client{ID: "c1", Name: "Acme"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateProject(ctx, core.Project{ID: "p1", ClientID: "c1", Name: "Website", IsActive: true}); err != nil {
		t.Fatal(err)
	}
	var tasks []core.Task
	for _, id := range []string{"t1", "t2"} {
		tk, err := s.CreateTask(ctx, core.Task{ID: id, ProjectID: "p1", Name: id})
		if err != nil {
			t.Fatal(err)
		}
		tasks = append(tasks, tk)
	}
	return s, testutil.FixedClock(), tasks
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.EntryEvent
	err    error
}

func (p *recordingPublisher) PublishEntryEvent(_ context.Context, ev core.EntryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) kinds() []core.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []core.EventKind
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

func countActive(t *testing.T, s *memory.Store) int {
	t.Helper()
	all, err := s.ListEntryDetails(context.Background(), store.EntryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, d := range all {
		if d.Entry.Active() {
			n++
		}
	}
	return n
}

func TestStartStopsPreviousEntry(t *testing.T) {
	ctx := context.Background()
	s, clock, tasks := newFixture(t)
	pub := &recordingPublisher{}
	eng := NewEngine(s, clock, testutil.NewStubIDGenerator(), WithPublisher(pub))

	a, err := eng.Start(ctx, tasks[0].ID, "first")
	if err != nil {
		t.Fatalf("start A: %v", err)
	}
	clock.Advance(90 * time.Minute)
	b, err := eng.Start(ctx, tasks[1].ID, "")
	if err != nil {
		t.Fatalf("start B: %v", err)
	}

	prev, err := s.GetEntry(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if prev.End == nil || prev.End.After(b.Start) {
		t.Fatalf("A should end at or before B starts: end=%v start=%v", prev.End, b.Start)
	}
	if prev.Seconds() != 5400 {
		t.Errorf("A duration = %ds, want 5400", prev.Seconds())
	}
	if n := countActive(t, s); n != 1 {
		t.Errorf("active entries = %d, want 1", n)
	}
	if cur, ok := eng.Active(); !ok || cur.ID != b.ID {
		t.Errorf("engine active = %+v, want %s", cur, b.ID)
	}

	want := []core.EventKind{core.EntryStarted, core.EntryStopped, core.EntryStarted}
	got := pub.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSingleActiveAcrossSequence(t *testing.T) {
	ctx := context.Background()
	s, clock, tasks := newFixture(t)
	eng := NewEngine(s, clock, testutil.NewStubIDGenerator())

	steps := []string{"start:t1", "start:t2", "stop", "stop", "start:t1", "start:t1", "stop", "start:t2"}
	for i, step := range steps {
		clock.Advance(time.Minute)
		var err error
		switch step {
		case "stop":
			_, _, err = eng.Stop(ctx)
		case "start:t1":
			_, err = eng.Start(ctx, tasks[0].ID, "")
		case "start:t2":
			_, err = eng.Start(ctx, tasks[1].ID, "")
		}
		if err != nil {
			t.Fatalf("step %d (%s): %v", i, step, err)
		}
		if n := countActive(t, s); n > 1 {
			t.Fatalf("step %d (%s): %d active entries", i, step, n)
		}
	}
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	s, clock, _ := newFixture(t)
	pub := &recordingPublisher{}
	eng := NewEngine(s, clock, testutil.NewStubIDGenerator(), WithPublisher(pub))

	_, stopped, err := eng.Stop(context.Background())
	if err != nil || stopped {
		t.Fatalf("Stop on idle engine = %v, %v", stopped, err)
	}
	if len(pub.kinds()) != 0 {
		t.Errorf("idle stop should not publish")
	}
}

func TestStartUnknownTask(t *testing.T) {
	s, clock, _ := newFixture(t)
	eng := NewEngine(s, clock, testutil.NewStubIDGenerator())

	if _, err := eng.Start(context.Background(), "missing", ""); !errors.Is(err, core.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if _, err := eng.Start(context.Background(), " ", ""); !errors.Is(err, core.ErrEmptyID) {
		t.Fatalf("expected ErrEmptyID, got %v", err)
	}
	if _, ok := eng.Active(); ok {
		t.Errorf("engine should stay idle")
	}
}

// failingStore rejects writes after a configurable point.
type failingStore struct {
	Store
	failInsert error
	failUpdate error
}

func (f *failingStore) InsertEntry(ctx context.Context, e core.TimeEntry) (core.TimeEntry, error) {
	if f.failInsert != nil {
		return core.TimeEntry{}, f.failInsert
	}
	return f.Store.InsertEntry(ctx, e)
}

func (f *failingStore) UpdateEntry(ctx context.Context, e core.TimeEntry) error {
	if f.failUpdate != nil {
		return f.failUpdate
	}
	return f.Store.UpdateEntry(ctx, e)
}

func TestGatewayFailureLeavesLocalStateUnchanged(t *testing.T) {
	ctx := context.Background()
	s, clock, tasks := newFixture(t)
	fs := &failingStore{Store: s}
	eng := NewEngine(fs, clock, testutil.NewStubIDGenerator())

	a, err := eng.Start(ctx, tasks[0].ID, "")
	if err != nil {
		t.Fatal(err)
	}

	fs.failUpdate = errors.New("gateway down")
	if _, _, err := eng.Stop(ctx); err == nil {
		t.Fatal("expected stop to fail")
	}
	if cur, ok := eng.Active(); !ok || cur.ID != a.ID {
		t.Fatalf("active entry changed after failed stop: %+v", cur)
	}

	fs.failUpdate = nil
	fs.failInsert = errors.New("gateway down")
	if _, err := eng.Start(ctx, tasks[1].ID, ""); err == nil {
		t.Fatal("expected start to fail")
	}
	// The stop of A was confirmed, the insert of B was not.
	if _, ok := eng.Active(); ok {
		t.Errorf("engine should be idle after confirmed stop and failed insert")
	}
}

func TestConflictTriggersResync(t *testing.T) {
	ctx := context.Background()
	s, clock, tasks := newFixture(t)
	eng := NewEngine(s, clock, testutil.NewStubIDGenerator())
	other := &racingStore{Store: s, task: tasks[1].ID, clock: clock}
	eng.store = other

	_, err := eng.Start(ctx, tasks[0].ID, "")
	if !errors.Is(err, core.ErrActiveEntryExists) {
		t.Fatalf("expected ErrActiveEntryExists, got %v", err)
	}
	cur, ok := eng.Active()
	if !ok || cur.ID != "other" {
		t.Fatalf("engine should adopt the winning entry, got %+v", cur)
	}
}

// racingStore slips in a competing running entry just before the insert.
type racingStore struct {
	Store
	task  string
	clock core.Clock
	done  bool
}

func (r *racingStore) InsertEntry(ctx context.Context, e core.TimeEntry) (core.TimeEntry, error) {
	if !r.done {
		r.done = true
		if _, err := r.Store.InsertEntry(ctx, core.TimeEntry{ID: "other", TaskID: r.task, Start: r.clock.Now()}); err != nil {
			return core.TimeEntry{}, err
		}
	}
	return r.Store.InsertEntry(ctx, e)
}

func TestElapsedAndResync(t *testing.T) {
	ctx := context.Background()
	s, clock, tasks := newFixture(t)
	if _, err := s.InsertEntry(ctx, core.TimeEntry{ID: "e1", TaskID: tasks[0].ID, Start: clock.Now()}); err != nil {
		t.Fatal(err)
	}
	eng := NewEngine(s, clock, testutil.NewStubIDGenerator())
	if eng.Elapsed() != 0 {
		t.Fatalf("Elapsed before resync should be zero")
	}
	if err := eng.Resync(ctx); err != nil {
		t.Fatal(err)
	}
	clock.Advance(75 * time.Second)
	if got := eng.Elapsed(); got != 75*time.Second {
		t.Errorf("Elapsed = %v, want 75s", got)
	}
	if got := core.FormatClock(eng.Elapsed()); got != "00:01:15" {
		t.Errorf("FormatClock = %s", got)
	}
}

func TestWatchFollowsActiveEntry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, clock, tasks := newFixture(t)
	eng := NewEngine(s, clock, testutil.NewStubIDGenerator())

	ticks := make(chan Tick, 16)
	idle := make(chan struct{}, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.Watch(ctx, time.Hour, func(tk Tick, ok bool) {
			if ok {
				ticks <- tk
			} else {
				idle <- struct{}{}
			}
		})
	}()

	waitIdle := func() {
		select {
		case <-idle:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for idle callback")
		}
	}
	waitIdle()

	a, err := eng.Start(ctx, tasks[0].ID, "")
	if err != nil {
		t.Fatal(err)
	}
	select {
	case tk := <-ticks:
		if tk.Entry.ID != a.ID {
			t.Errorf("tick for %s, want %s", tk.Entry.ID, a.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
	}

	if _, _, err := eng.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	waitIdle()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
