package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"timetracker/internal/core"
	"timetracker/internal/testutil"
)

func TestEntries_Day(t *testing.T) {
	ctx := context.Background()
	s := fixture(t)
	for _, e := range []core.TimeEntry{
		{ID: "early", TaskID: "t1", Start: testutil.At(8, 0), End: testutil.AtPtr(9, 30)},
		{ID: "late", TaskID: "t2", Start: testutil.At(13, 0), End: testutil.AtPtr(13, 15)},
		{ID: "running", TaskID: "t1", Start: testutil.At(14, 0)},
		{ID: "yesterday", TaskID: "t1", Start: testutil.At(9, 0).AddDate(0, 0, -1), End: testutil.AtPtr(10, 0)},
	} {
		if _, err := s.InsertEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	svc := NewEntries(s, testutil.FixedClock())

	day, err := svc.Day(ctx, testutil.At(12, 0))
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, d := range day.Entries {
		ids = append(ids, d.Entry.ID)
	}
	if want := []string{"late", "early"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
	if day.Seconds != 6300 || day.Hours() != "1.75" {
		t.Errorf("total = %d (%s), want 6300 (1.75)", day.Seconds, day.Hours())
	}
}

func TestEntries_UpdateClearingEnd(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected while another entry runs", func(t *testing.T) {
		s := fixture(t)
		_, _ = s.InsertEntry(ctx, core.TimeEntry{ID: "done", TaskID: "t1", Start: testutil.At(8, 0), End: testutil.AtPtr(9, 0)})
		_, _ = s.InsertEntry(ctx, core.TimeEntry{ID: "running", TaskID: "t2", Start: testutil.At(9, 0)})
		svc := NewEntries(s, testutil.FixedClock())

		_, err := svc.Update(ctx, EntryEdit{ID: "done", Start: testutil.At(8, 0)})
		if !errors.Is(err, core.ErrActiveEntryExists) {
			t.Fatalf("err = %v, want ErrActiveEntryExists", err)
		}
		cur, _ := s.GetEntry(ctx, "done")
		if cur.End == nil {
			t.Error("entry should be unchanged")
		}
	})

	t.Run("allowed when nothing runs", func(t *testing.T) {
		s := fixture(t)
		_, _ = s.InsertEntry(ctx, core.TimeEntry{ID: "done", TaskID: "t1", Start: testutil.At(8, 0), End: testutil.AtPtr(9, 0)})
		timer := &countingResyncer{}
		pub := &recordingPublisher{}
		svc := NewEntries(s, testutil.FixedClock(), WithEntriesTimer(timer), WithEntriesPublisher(pub))

		got, err := svc.Update(ctx, EntryEdit{ID: "done", Start: testutil.At(8, 0), Notes: "resumed"})
		if err != nil {
			t.Fatal(err)
		}
		if !got.Active() || got.NotesText() != "resumed" {
			t.Errorf("got = %+v", got)
		}
		if timer.n != 1 {
			t.Errorf("resyncs = %d, want 1", timer.n)
		}
		if k := pub.kinds(); len(k) != 1 || k[0] != core.EntryUpdated {
			t.Errorf("events = %v", k)
		}
	})
}

func TestEntries_UpdateValidation(t *testing.T) {
	ctx := context.Background()
	s := fixture(t)
	_, _ = s.InsertEntry(ctx, core.TimeEntry{ID: "e1", TaskID: "t1", Start: testutil.At(8, 0), End: testutil.AtPtr(9, 0)})
	inv := &countingInvalidator{}
	timer := &countingResyncer{}
	svc := NewEntries(s, testutil.FixedClock(), WithEntriesInvalidator(inv), WithEntriesTimer(timer))

	tests := []struct {
		name string
		edit EntryEdit
		want error
	}{
		{"end before start", EntryEdit{ID: "e1", Start: testutil.At(9, 0), End: testutil.AtPtr(8, 0)}, ErrEndBeforeStart},
		{"missing id", EntryEdit{Start: testutil.At(9, 0)}, core.ErrEmptyID},
		{"unknown entry", EntryEdit{ID: "nope", Start: testutil.At(9, 0), End: testutil.AtPtr(10, 0)}, core.ErrEntryNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Update(ctx, tt.edit); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if inv.n != 0 {
		t.Error("failed edits must not invalidate reports")
	}

	got, err := svc.Update(ctx, EntryEdit{ID: "e1", Start: testutil.At(8, 30), End: testutil.AtPtr(9, 45), Notes: ""})
	if err != nil {
		t.Fatal(err)
	}
	if got.Seconds() != 4500 || got.Notes != nil {
		t.Errorf("got = %+v", got)
	}
	if inv.n != 1 {
		t.Errorf("invalidations = %d, want 1", inv.n)
	}
	if timer.n != 0 {
		t.Error("editing a completed entry should not resync the timer")
	}
}

func TestEntries_Delete(t *testing.T) {
	ctx := context.Background()
	s := fixture(t)
	_, _ = s.InsertEntry(ctx, core.TimeEntry{ID: "run", TaskID: "t1", Start: testutil.At(8, 0)})
	timer := &countingResyncer{}
	pub := &recordingPublisher{}
	svc := NewEntries(s, testutil.FixedClock(), WithEntriesTimer(timer), WithEntriesPublisher(pub))

	if err := svc.Delete(ctx, "run"); err != nil {
		t.Fatal(err)
	}
	if timer.n != 1 {
		t.Errorf("resyncs = %d, want 1", timer.n)
	}
	if k := pub.kinds(); len(k) != 1 || k[0] != core.EntryDeleted {
		t.Errorf("events = %v", k)
	}
	if !pub.events[0].At.Equal(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("event time = %v", pub.events[0].At)
	}
	if err := svc.Delete(ctx, "run"); !errors.Is(err, core.ErrEntryNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestEntries_PublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	s := fixture(t)
	_, _ = s.InsertEntry(ctx, core.TimeEntry{ID: "e1", TaskID: "t1", Start: testutil.At(8, 0), End: testutil.AtPtr(9, 0)})
	pub := &recordingPublisher{err: errors.New("circuit breaker is open")}
	svc := NewEntries(s, testutil.FixedClock(), WithEntriesPublisher(pub))

	if err := svc.Delete(ctx, "e1"); err != nil {
		t.Errorf("Delete err = %v", err)
	}
}
