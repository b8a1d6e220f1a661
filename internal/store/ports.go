// Package store defines the persistence gateway ports for the four record collections.
package store

import (
	"context"
	"time"

	"timetracker/internal/core"
)

// Ports for outbound persistence adapters.
type (
	ClientStore interface {
		CreateClient(ctx context.Context, c core.Client) (core.Client, error)
		GetClient(ctx context.Context, id string) (core.Client, error)
		// ListClients returns all clients ordered by name.
		ListClients(ctx context.Context) ([]core.Client, error)
		// DeleteClient removes the client and everything it owns.
		DeleteClient(ctx context.Context, id string) error
	}

	ProjectStore interface {
		CreateProject(ctx context.Context, p core.Project) (core.Project, error)
		GetProject(ctx context.Context, id string) (core.Project, error)
		// ListProjects returns projects ordered by name.
		ListProjects(ctx context.Context, f ProjectFilter) ([]core.Project, error)
		SetProjectActive(ctx context.Context, id string, active bool) error
		DeleteProject(ctx context.Context, id string) error
	}

	TaskStore interface {
		CreateTask(ctx context.Context, t core.Task) (core.Task, error)
		GetTask(ctx context.Context, id string) (core.Task, error)
		// ListTasks returns the tasks of a project ordered by name.
		ListTasks(ctx context.Context, projectID string) ([]core.Task, error)
		DeleteTask(ctx context.Context, id string) error
	}

	EntryStore interface {
		// InsertEntry fails with core.ErrActiveEntryExists when e is running and
		// another running entry already exists.
		InsertEntry(ctx context.Context, e core.TimeEntry) (core.TimeEntry, error)
		GetEntry(ctx context.Context, id string) (core.TimeEntry, error)
		// ActiveEntry returns the running entry, or nil when none is running.
		ActiveEntry(ctx context.Context) (*core.TimeEntry, error)
		// UpdateEntry rewrites start, end and notes of an existing entry.
		UpdateEntry(ctx context.Context, e core.TimeEntry) error
		DeleteEntry(ctx context.Context, id string) error
		ListEntryDetails(ctx context.Context, f EntryFilter) ([]core.EntryDetail, error)
		GetEntryDetail(ctx context.Context, id string) (core.EntryDetail, error)
		// EntryRevision changes whenever an entry is inserted, updated or removed,
		// including by another process sharing the database.
		EntryRevision(ctx context.Context) (Revision, error)
	}

	// Store is the full gateway used by the application.
	Store interface {
		ClientStore
		ProjectStore
		TaskStore
		EntryStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// Revision is a cheap fingerprint of the time entry collection. Entries
// catches cascaded deletes, Writes every direct write.
type Revision struct {
	Entries int64
	Writes  int64
}

// ProjectFilter narrows ListProjects. Zero value lists everything.
type ProjectFilter struct {
	ClientID   string
	ActiveOnly bool
}

// EntryFilter selects entries whose start time lies in [From, To], both inclusive.
// Zero From/To leave that side open.
type EntryFilter struct {
	From          time.Time
	To            time.Time
	CompletedOnly bool
	// Newest orders by start time descending instead of ascending.
	Newest bool
}

// Matches reports whether e passes the filter.
func (f EntryFilter) Matches(e core.TimeEntry) bool {
	if !f.From.IsZero() && e.Start.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Start.After(f.To) {
		return false
	}
	if f.CompletedOnly && e.End == nil {
		return false
	}
	return true
}
