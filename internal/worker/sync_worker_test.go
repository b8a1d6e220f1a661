package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"timetracker/internal/amqp"
	"timetracker/internal/core"
	"timetracker/internal/report"
	"timetracker/internal/sheets"
	sheetsmem "timetracker/internal/sheets/memory"
	"timetracker/internal/store/memory"
	"timetracker/internal/testutil"
)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	if _, err := s.CreateClient(ctx, core.Client{ID: "c1", Name: "Acme"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateProject(ctx, core.Project{ID: "p1", ClientID: "c1", Name: "Website", IsActive: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateTask(ctx, core.Task{ID: "t1", ProjectID: "p1", Name: "Design"}); err != nil {
		t.Fatal(err)
	}
	return s
}

func message(kind core.EventKind, id string) *amqp.EntryEventMessage {
	return &amqp.EntryEventMessage{Kind: kind, EntryID: id, OccurredAt: testutil.At(10, 0)}
}

func TestHandleEntryEvent_MirrorsCompletedEntry(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	mirror := sheetsmem.New()
	w := NewSyncWorker(s, mirror, time.UTC, nil)

	if _, err := s.InsertEntry(ctx, core.TimeEntry{
		ID: "e1", TaskID: "t1", Start: testutil.At(9, 0), End: testutil.AtPtr(10, 30), Notes: core.StringPtr("kickoff"),
	}); err != nil {
		t.Fatal(err)
	}

	if err := w.HandleEntryEvent(ctx, message(core.EntryStopped, "e1")); err != nil {
		t.Fatalf("HandleEntryEvent: %v", err)
	}

	row, ok := mirror.Get("e1")
	if !ok {
		t.Fatal("entry not mirrored")
	}
	want := sheets.EntryRow{
		EntryID: "e1", Client: "Acme", Project: "Website", Task: "Design",
		Start: "2025-01-15 09:00", End: "2025-01-15 10:30", Hours: "1.50", Notes: "kickoff",
	}
	if row != want {
		t.Errorf("row = %+v, want %+v", row, want)
	}
}

func TestHandleEntryEvent_RemovesRunningAndDeleted(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	mirror := sheetsmem.New()
	w := NewSyncWorker(s, mirror, time.UTC, nil)

	_ = mirror.UpsertEntry(ctx, sheets.EntryRow{EntryID: "e1"})
	_ = mirror.UpsertEntry(ctx, sheets.EntryRow{EntryID: "gone"})
	if _, err := s.InsertEntry(ctx, core.TimeEntry{ID: "e1", TaskID: "t1", Start: testutil.At(9, 0)}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		msg  *amqp.EntryEventMessage
	}{
		{"reopened entry", message(core.EntryUpdated, "e1")},
		{"deleted before delivery", message(core.EntryStopped, "gone")},
		{"delete event", message(core.EntryDeleted, "never-mirrored")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := w.HandleEntryEvent(ctx, tt.msg); err != nil {
				t.Fatalf("HandleEntryEvent: %v", err)
			}
			if _, ok := mirror.Get(tt.msg.EntryID); ok {
				t.Errorf("%s should not be mirrored", tt.msg.EntryID)
			}
		})
	}
}

type failingMirror struct{ sheets.EntryMirror }

func (failingMirror) UpsertEntry(context.Context, sheets.EntryRow) error {
	return errors.New("quota exceeded")
}

func TestHandleEntryEvent_MirrorErrorIsReturned(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	if _, err := s.InsertEntry(ctx, core.TimeEntry{ID: "e1", TaskID: "t1", Start: testutil.At(9, 0), End: testutil.AtPtr(9, 15)}); err != nil {
		t.Fatal(err)
	}
	w := NewSyncWorker(s, failingMirror{}, time.UTC, nil)
	if err := w.HandleEntryEvent(ctx, message(core.EntryStopped, "e1")); err == nil {
		t.Error("expected the mirror error so the message is requeued")
	}
}

func TestStartupSync(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	mirror := sheetsmem.New()
	w := NewSyncWorker(s, mirror, time.UTC, nil)

	entries := []core.TimeEntry{
		{ID: "e1", TaskID: "t1", Start: testutil.At(8, 0), End: testutil.AtPtr(9, 0)},
		{ID: "e2", TaskID: "t1", Start: testutil.At(9, 0), End: testutil.AtPtr(9, 45)},
		{ID: "e3", TaskID: "t1", Start: testutil.At(10, 0)},
	}
	for _, e := range entries {
		if _, err := s.InsertEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	synced, failed, err := w.StartupSync(ctx, report.MonthWindow(2025, time.January, time.UTC))
	if err != nil {
		t.Fatalf("StartupSync: %v", err)
	}
	if synced != 2 || failed != 0 {
		t.Errorf("synced=%d failed=%d, want 2/0", synced, failed)
	}
	rows := mirror.Rows()
	if len(rows) != 2 || rows[0].EntryID != "e1" || rows[1].Hours != "0.75" {
		t.Errorf("rows = %+v", rows)
	}
}
