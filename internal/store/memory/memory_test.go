package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"timetracker/internal/core"
	"timetracker/internal/store"
	"timetracker/internal/testutil"
)

func seeded(t *testing.T) (*Store, core.Client, core.Project, core.Task) {
	t.Helper()
	ctx := context.Background()
	s := New()
	c, err := s.CreateClient(ctx, core.Client{ID: "c1", Name: "Acme"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	p, err := s.CreateProject(ctx, core.Project{ID: "p1", ClientID: c.ID, Name: "Website", IsActive: true})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	tk, err := s.CreateTask(ctx, core.Task{ID: "t1", ProjectID: p.ID, Name: "Design"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return s, c, p, tk
}

func TestReferentialChecks(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.CreateProject(ctx, core.Project{ID: "p1", ClientID: "nope", Name: "X"}); !errors.Is(err, core.ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
	if _, err := s.CreateTask(ctx, core.Task{ID: "t1", ProjectID: "nope", Name: "X"}); !errors.Is(err, core.ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
	if _, err := s.InsertEntry(ctx, core.TimeEntry{ID: "e1", TaskID: "nope", Start: testutil.At(9, 0)}); !errors.Is(err, core.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if _, err := s.CreateClient(ctx, core.Client{ID: "c1", Name: " "}); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestDuplicateIDsRejected(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.CreateClient(ctx, core.Client{ID: "c1", Name: "Acme"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateProject(ctx, core.Project{ID: "p1", ClientID: "c1", Name: "Website"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateTask(ctx, core.Task{ID: "t1", ProjectID: "p1", Name: "Design"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertEntry(ctx, core.TimeEntry{ID: "e1", TaskID: "t1", Start: testutil.At(9, 0), End: testutil.AtPtr(10, 0)}); err != nil {
		t.Fatal(err)
	}

	tests := map[string]func() error{
		"client": func() error {
			_, err := s.CreateClient(ctx, core.Client{ID: "c1", Name: "Other"})
			return err
		},
		"project": func() error {
			_, err := s.CreateProject(ctx, core.Project{ID: "p1", ClientID: "c1", Name: "Other"})
			return err
		},
		"task": func() error {
			_, err := s.CreateTask(ctx, core.Task{ID: "t1", ProjectID: "p1", Name: "Other"})
			return err
		},
		"entry": func() error {
			_, err := s.InsertEntry(ctx, core.TimeEntry{ID: "e1", TaskID: "t1", Start: testutil.At(11, 0), End: testutil.AtPtr(12, 0)})
			return err
		},
	}
	for name, create := range tests {
		t.Run(name, func(t *testing.T) {
			if err := create(); !errors.Is(err, core.ErrDuplicateID) {
				t.Errorf("err = %v, want ErrDuplicateID", err)
			}
		})
	}

	details, err := s.ListEntryDetails(ctx, store.EntryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(details) != 1 || !details[0].Entry.Start.Equal(testutil.At(9, 0)) {
		t.Errorf("original entry should be untouched, got %+v", details)
	}
}

func TestSingleActiveEntry(t *testing.T) {
	ctx := context.Background()
	s, _, _, tk := seeded(t)

	if _, err := s.InsertEntry(ctx, core.TimeEntry{ID: "e1", TaskID: tk.ID, Start: testutil.At(9, 0)}); err != nil {
		t.Fatalf("insert first: %v", err)
	}
	if _, err := s.InsertEntry(ctx, core.TimeEntry{ID: "e2", TaskID: tk.ID, Start: testutil.At(9, 5)}); !errors.Is(err, core.ErrActiveEntryExists) {
		t.Fatalf("expected ErrActiveEntryExists, got %v", err)
	}
	// Completed entries are never blocked.
	if _, err := s.InsertEntry(ctx, core.TimeEntry{ID: "e3", TaskID: tk.ID, Start: testutil.At(7, 0), End: testutil.AtPtr(8, 0)}); err != nil {
		t.Fatalf("insert completed: %v", err)
	}
	// Reopening e3 while e1 runs is rejected.
	if err := s.UpdateEntry(ctx, core.TimeEntry{ID: "e3", Start: testutil.At(7, 0)}); !errors.Is(err, core.ErrActiveEntryExists) {
		t.Fatalf("expected ErrActiveEntryExists on reopen, got %v", err)
	}

	active, err := s.ActiveEntry(ctx)
	if err != nil || active == nil || active.ID != "e1" {
		t.Fatalf("unexpected active entry %+v err=%v", active, err)
	}
}

func TestListEntryDetailsFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s, _, _, tk := seeded(t)
	entries := []core.TimeEntry{
		{ID: "a", TaskID: tk.ID, Start: testutil.At(9, 0), End: testutil.AtPtr(10, 0)},
		{ID: "b", TaskID: tk.ID, Start: testutil.At(11, 0), End: testutil.AtPtr(11, 30)},
		{ID: "c", TaskID: tk.ID, Start: testutil.At(13, 0)},
		{ID: "d", TaskID: tk.ID, Start: testutil.At(23, 59), End: testutil.AtPtr(23, 59)},
	}
	for _, e := range entries {
		if _, err := s.InsertEntry(ctx, e); err != nil {
			t.Fatalf("insert %s: %v", e.ID, err)
		}
	}

	got, err := s.ListEntryDetails(ctx, store.EntryFilter{
		From:          testutil.At(9, 0),
		To:            testutil.At(23, 0),
		CompletedOnly: true,
		Newest:        true,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Entry.ID != "b" || got[1].Entry.ID != "a" {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if got[0].Link() != core.Linked || got[0].Client.Name != "Acme" {
		t.Fatalf("expected linked detail, got %+v", got[0])
	}
}

func TestDeleteClientCascades(t *testing.T) {
	ctx := context.Background()
	s, c, p, tk := seeded(t)
	if _, err := s.InsertEntry(ctx, core.TimeEntry{ID: "e1", TaskID: tk.ID, Start: testutil.At(9, 0), End: testutil.AtPtr(9, 30)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.DeleteClient(ctx, c.ID); err != nil {
		t.Fatalf("delete client: %v", err)
	}
	if _, err := s.GetProject(ctx, p.ID); !errors.Is(err, core.ErrProjectNotFound) {
		t.Fatalf("project should be gone, got %v", err)
	}
	if _, err := s.GetTask(ctx, tk.ID); !errors.Is(err, core.ErrTaskNotFound) {
		t.Fatalf("task should be gone, got %v", err)
	}
	if _, err := s.GetEntry(ctx, "e1"); !errors.Is(err, core.ErrEntryNotFound) {
		t.Fatalf("entry should be gone, got %v", err)
	}
}

func TestProjectsFilterAndToggle(t *testing.T) {
	ctx := context.Background()
	s, c, p, _ := seeded(t)
	if _, err := s.CreateProject(ctx, core.Project{ID: "p2", ClientID: c.ID, Name: "App", IsActive: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetProjectActive(ctx, p.ID, false); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	active, _ := s.ListProjects(ctx, store.ProjectFilter{ActiveOnly: true})
	if len(active) != 1 || active[0].Name != "App" {
		t.Fatalf("unexpected active projects: %+v", active)
	}
	all, _ := s.ListProjects(ctx, store.ProjectFilter{ClientID: c.ID})
	if len(all) != 2 || all[0].Name != "App" || all[1].Name != "Website" {
		t.Fatalf("expected name order, got %+v", all)
	}
}

func TestNewFromFileSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	ids := testutil.NewStubIDGenerator()
	clock := testutil.FixedClock()

	s := NewFromFile(filepath.Join(dir, "missing.txt"), ids, clock)
	if cs, _ := s.ListClients(context.Background()); len(cs) != 0 {
		t.Fatalf("expected empty store when file is missing")
	}

	content := "# catalog\nAcme / Website / Design\nAcme / Website / Design\nacme / App\n\nGlobex\n"
	path := filepath.Join(dir, "seed_catalog.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s = NewFromFile(path, ids, clock)
	ctx := context.Background()
	clients, _ := s.ListClients(ctx)
	if len(clients) != 2 || clients[0].Name != "Acme" || clients[1].Name != "Globex" {
		t.Fatalf("unexpected clients: %+v", clients)
	}
	projects, _ := s.ListProjects(ctx, store.ProjectFilter{ClientID: clients[0].ID})
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %+v", projects)
	}
	if !clients[0].CreatedAt.Equal(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("created_at should come from the clock, got %v", clients[0].CreatedAt)
	}
}
