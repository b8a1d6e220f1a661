package testutil

import (
	"time"

	"timetracker/internal/core"
)

// Detail builds a fully linked EntryDetail. An empty end leaves the entry running.
func Detail(id, client, project, task string, start time.Time, end *time.Time, notes string) core.EntryDetail {
	c := &core.Client{ID: "client-" + client, Name: client}
	p := &core.Project{ID: "project-" + client + "-" + project, ClientID: c.ID, Name: project, IsActive: true}
	tk := &core.Task{ID: "task-" + client + "-" + project + "-" + task, ProjectID: p.ID, Name: task}
	return core.EntryDetail{
		Entry: core.TimeEntry{
			ID:     id,
			TaskID: tk.ID,
			Start:  start,
			End:    end,
			Notes:  core.StringPtr(notes),
		},
		Task:    tk,
		Project: p,
		Client:  c,
	}
}

// At returns a UTC instant on 2025-01-15 at hh:mm.
func At(hh, mm int) time.Time {
	return time.Date(2025, 1, 15, hh, mm, 0, 0, time.UTC)
}

// AtPtr is At returning a pointer.
func AtPtr(hh, mm int) *time.Time {
	t := At(hh, mm)
	return &t
}
