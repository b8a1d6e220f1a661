package http

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"

	"timetracker/internal/core"
	applog "timetracker/internal/log"
	"timetracker/internal/store"
)

// timerView feeds the timer card: the running entry, or the start form.
type timerView struct {
	Running bool
	Detail  core.EntryDetail
	Elapsed string
	// StartedAtMs lets the browser tick the clock without polling.
	StartedAtMs int64

	Projects        []core.Project
	SelectedProject string
	Tasks           []core.Task
}

func (s *Server) loadTimerView(ctx context.Context, projectID string) (timerView, error) {
	var v timerView
	if err := s.timer.Resync(ctx); err != nil {
		return v, err
	}
	if entry, ok := s.timer.Active(); ok {
		v.Running = true
		v.Elapsed = core.FormatClock(s.timer.Elapsed())
		v.StartedAtMs = entry.Start.UnixMilli()
		d, err := s.entries.Get(ctx, entry.ID)
		switch {
		case err == nil:
			v.Detail = d
		case core.IsNotFound(err):
			v.Detail = core.EntryDetail{Entry: entry}
		default:
			return v, err
		}
	}

	projects, err := s.catalog.Projects(ctx, store.ProjectFilter{ActiveOnly: true})
	if err != nil {
		return v, err
	}
	v.Projects = projects
	v.SelectedProject = pickProject(projects, projectID)
	if v.SelectedProject != "" {
		tasks, err := s.catalog.Tasks(ctx, v.SelectedProject)
		if err != nil {
			return v, err
		}
		v.Tasks = tasks
	}
	return v, nil
}

// pickProject keeps the requested project when it is offered, else the first one.
func pickProject(projects []core.Project, want string) string {
	for _, p := range projects {
		if p.ID == want {
			return want
		}
	}
	if len(projects) > 0 {
		return projects[0].ID
	}
	return ""
}

func (s *Server) handleTimerPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	v, err := s.loadTimerView(r.Context(), r.URL.Query().Get("project_id"))
	if err != nil {
		s.writeError(w, r, err, "load_timer")
		return
	}
	s.render(w, r, "timer", v, nil)
}

// handleTaskOptions returns the <option> list for a project's tasks.
func (s *Server) handleTaskOptions(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	projectID := strings.TrimSpace(r.URL.Query().Get("project_id"))
	var tasks []core.Task
	if projectID != "" {
		var err error
		tasks, err = s.catalog.Tasks(r.Context(), projectID)
		if err != nil {
			s.writeError(w, r, err, "list_tasks")
			return
		}
	}
	s.render(w, r, "task_options", tasks, nil)
}

// handleStartTimer starts task_id, or the task named task_name under
// project_id, creating that task when the project has none by that name.
func (s *Server) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	body, resp := ParseBodyOrFail(r)
	if resp != nil {
		resp.Write(w)
		return
	}

	ctx := r.Context()
	taskID := body.Get("task_id")
	projectID := body.Get("project_id")
	if taskID == "" {
		taskName := body.Get("task_name")
		if projectID == "" {
			UnprocessableEntityError("Choose a project first").Write(w)
			return
		}
		if taskName == "" {
			UnprocessableEntityError("Pick a task or type a new task name").Write(w)
			return
		}
		task, err := s.catalog.EnsureTask(ctx, projectID, taskName)
		if err != nil {
			s.writeError(w, r, err, applog.OpStart)
			return
		}
		taskID = task.ID
	}

	entry, err := s.timer.Start(ctx, taskID, body.Get("notes"))
	if err != nil {
		s.writeError(w, r, err, applog.OpStart)
		return
	}
	atomic.AddInt64(&s.appMetrics.timersStarted, 1)
	s.structured.LogEntryChange(ctx, applog.OpStart, entry.ID, entry.Start, entry.End)

	v, err := s.loadTimerView(ctx, projectID)
	if err != nil {
		s.writeError(w, r, err, "load_timer")
		return
	}
	s.render(w, r, "timer", v, NewHTMXResponse().
		TriggerEntriesChanged(entry.Start.In(s.loc).Format(DateLayout)).
		TriggerSuccessNotification("Timer started"))
}

func (s *Server) handleStopTimer(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	entry, stopped, err := s.timer.Stop(ctx)
	if err != nil {
		s.writeError(w, r, err, applog.OpStop)
		return
	}

	b := NewHTMXResponse()
	if stopped {
		atomic.AddInt64(&s.appMetrics.timersStopped, 1)
		s.structured.LogEntryChange(ctx, applog.OpStop, entry.ID, entry.Start, entry.End)
		b.TriggerEntriesChanged(entry.Start.In(s.loc).Format(DateLayout)).
			TriggerSuccessNotification("Timer stopped: " + core.FormatHM(entry.Duration()))
	} else {
		b.TriggerInfoNotification("No timer was running")
	}

	v, err := s.loadTimerView(ctx, "")
	if err != nil {
		s.writeError(w, r, err, "load_timer")
		return
	}
	s.render(w, r, "timer", v, b)
}
