package http

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"timetracker/internal/core"
	applog "timetracker/internal/log"
	"timetracker/internal/services"
)

// dayView feeds the day entry list with its navigation.
type dayView struct {
	Day     time.Time
	Date    string
	Prev    string
	Next    string
	IsToday bool
	Entries []core.EntryDetail
	Total   string
	Hours   string
}

func (s *Server) loadDayView(ctx context.Context, day time.Time) (dayView, error) {
	sum, err := s.entries.Day(ctx, day)
	if err != nil {
		return dayView{}, err
	}
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	return dayView{
		Day:     sum.Day,
		Date:    sum.Day.Format(DateLayout),
		Prev:    sum.Day.AddDate(0, 0, -1).Format(DateLayout),
		Next:    sum.Day.AddDate(0, 0, 1).Format(DateLayout),
		IsToday: !sum.Day.Before(today),
		Entries: sum.Entries,
		Total:   core.FormatHM(time.Duration(sum.Seconds) * time.Second),
		Hours:   sum.Hours(),
	}, nil
}

func (s *Server) handleEntriesPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	v, err := s.loadDayView(r.Context(), ParseDayParam(r.URL.Query(), s.now()))
	if err != nil {
		s.writeError(w, r, err, "load_day")
		return
	}
	s.render(w, r, "entries", v, nil)
}

func (s *Server) handleEditEntryForm(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	d, err := s.entries.Get(r.Context(), strings.TrimSpace(r.URL.Query().Get("id")))
	if err != nil {
		s.writeError(w, r, err, applog.OpRead)
		return
	}
	s.render(w, r, "entry_edit", d, nil)
}

// handleUpdateEntry rewrites start_time, end_time and notes. An empty
// end_time reopens the entry as the running one.
func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	body, resp := ParseBodyOrFail(r)
	if resp != nil {
		resp.Write(w)
		return
	}

	start, err := ParseDateTimeLocal(body.Get("start_time"), s.loc)
	if err != nil {
		UnprocessableEntityError("Invalid start time").Write(w)
		return
	}
	edit := services.EntryEdit{
		ID:    body.Get("id"),
		Start: start,
		Notes: body.Get("notes"),
	}
	if v := body.Get("end_time"); v != "" {
		end, err := ParseDateTimeLocal(v, s.loc)
		if err != nil {
			UnprocessableEntityError("Invalid end time").Write(w)
			return
		}
		edit.End = &end
	}

	ctx := r.Context()
	updated, err := s.entries.Update(ctx, edit)
	if err != nil {
		s.writeError(w, r, err, applog.OpUpdate)
		return
	}
	atomic.AddInt64(&s.appMetrics.entriesUpdated, 1)
	s.structured.LogEntryChange(ctx, applog.OpUpdate, updated.ID, updated.Start, updated.End)

	NewHTMXResponse().
		TriggerEntriesChanged(updated.Start.In(s.loc).Format(DateLayout)).
		TriggerTimerChanged().
		TriggerModalClose().
		TriggerSuccessNotification("Entry updated").
		Write(w)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost, http.MethodDelete); resp != nil {
		resp.Write(w)
		return
	}
	body, resp := ParseBodyOrFail(r)
	if resp != nil {
		resp.Write(w)
		return
	}
	id := body.Get("id")
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("id"))
	}

	ctx := r.Context()
	if err := s.entries.Delete(ctx, id); err != nil {
		s.writeError(w, r, err, applog.OpDelete)
		return
	}
	atomic.AddInt64(&s.appMetrics.entriesDeleted, 1)
	applog.FromContext(ctx).InfoContext(ctx, "Entry deleted via web",
		applog.FieldEntryID, id,
		applog.FieldOperation, applog.OpDelete)

	b := NewHTMXResponse().TriggerTimerChanged().TriggerSuccessNotification("Entry deleted")
	if date := body.Get("date"); date != "" {
		b.TriggerEntriesChanged(date)
	}
	b.Write(w)
}
