package core

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClientValidate(t *testing.T) {
	if err := (Client{Name: "Acme"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, name := range []string{"", "   ", "\t"} {
		if err := (Client{Name: name}).Validate(); !errors.Is(err, ErrEmptyName) {
			t.Fatalf("name %q: expected ErrEmptyName, got %v", name, err)
		}
	}
}

func TestProjectAndTaskValidate(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"project ok", Project{ClientID: "c1", Name: "Website"}.Validate(), nil},
		{"project no client", Project{Name: "Website"}.Validate(), ErrEmptyID},
		{"project no name", Project{ClientID: "c1"}.Validate(), ErrEmptyName},
		{"task ok", Task{ProjectID: "p1", Name: "Design"}.Validate(), nil},
		{"task no project", Task{Name: "Design"}.Validate(), ErrEmptyID},
		{"task no name", Task{ProjectID: "p1", Name: " "}.Validate(), ErrEmptyName},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.want) {
				t.Fatalf("got %v, want %v", tc.err, tc.want)
			}
		})
	}
}

func TestTimeEntryDuration(t *testing.T) {
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	running := TimeEntry{TaskID: "t1", Start: start}
	if !running.Active() || running.Seconds() != 0 {
		t.Fatalf("running entry: active=%v seconds=%d", running.Active(), running.Seconds())
	}

	same := TimeEntry{TaskID: "t1", Start: start, End: TimePtr(start)}
	if same.Active() || same.Seconds() != 0 {
		t.Fatalf("zero-length entry: active=%v seconds=%d", same.Active(), same.Seconds())
	}

	done := TimeEntry{TaskID: "t1", Start: start, End: TimePtr(start.Add(90*time.Minute + 500*time.Millisecond))}
	if done.Seconds() != 5400 {
		t.Fatalf("expected 5400 seconds, got %d", done.Seconds())
	}

	if err := (TimeEntry{Start: start}).Validate(); !errors.Is(err, ErrEmptyID) {
		t.Fatalf("expected ErrEmptyID, got %v", err)
	}
	if err := (TimeEntry{TaskID: "t1"}).Validate(); err == nil {
		t.Fatalf("expected error for zero start")
	}
}

func TestStringPtr(t *testing.T) {
	if StringPtr("  ") != nil {
		t.Fatalf("blank string should map to nil")
	}
	if p := StringPtr("note"); p == nil || *p != "note" {
		t.Fatalf("unexpected pointer %v", p)
	}
	e := TimeEntry{Notes: StringPtr("x")}
	if e.NotesText() != "x" || (TimeEntry{}).NotesText() != "" {
		t.Fatalf("NotesText mismatch")
	}
}

func TestIsNotFound(t *testing.T) {
	for _, err := range []error{ErrNotFound, ErrTaskNotFound, fmt.Errorf("get: %w", ErrEntryNotFound)} {
		if !IsNotFound(err) {
			t.Fatalf("expected %v to be not-found", err)
		}
	}
	if IsNotFound(ErrActiveEntryExists) {
		t.Fatalf("conflict is not a not-found error")
	}
}

func TestEntryDetailLink(t *testing.T) {
	task := &Task{ID: "t1", Name: "Design"}
	project := &Project{ID: "p1", Name: "Website"}
	client := &Client{ID: "c1", Name: "Acme"}

	cases := []struct {
		d         EntryDetail
		want      LinkStatus
		groupable bool
	}{
		{EntryDetail{Task: task, Project: project, Client: client}, Linked, true},
		{EntryDetail{Task: task, Project: project}, MissingClient, true},
		{EntryDetail{Task: task}, MissingProject, false},
		{EntryDetail{}, MissingTask, false},
	}
	for _, tc := range cases {
		if got := tc.d.Link(); got != tc.want {
			t.Fatalf("Link() = %v, want %v", got, tc.want)
		}
		if got := tc.d.HasTaskAndProject(); got != tc.groupable {
			t.Fatalf("%v: HasTaskAndProject() = %v", tc.want, got)
		}
	}

	empty := EntryDetail{}
	if empty.TaskName() != "" || empty.ProjectName() != "" || empty.ClientName() != "" {
		t.Fatalf("missing links should yield empty names")
	}
	if LabelOr("") != UnknownLabel || LabelOr("Acme") != "Acme" {
		t.Fatalf("LabelOr mismatch")
	}
}
