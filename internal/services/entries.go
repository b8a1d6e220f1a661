package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timetracker/internal/core"
	applog "timetracker/internal/log"
	"timetracker/internal/report"
	"timetracker/internal/store"
)

// EntryStore is the part of the gateway holding time entries.
type EntryStore interface {
	GetEntry(ctx context.Context, id string) (core.TimeEntry, error)
	ActiveEntry(ctx context.Context) (*core.TimeEntry, error)
	UpdateEntry(ctx context.Context, e core.TimeEntry) error
	DeleteEntry(ctx context.Context, id string) error
	ListEntryDetails(ctx context.Context, f store.EntryFilter) ([]core.EntryDetail, error)
	GetEntryDetail(ctx context.Context, id string) (core.EntryDetail, error)
}

// Entries edits and deletes recorded time entries.
type Entries struct {
	store   EntryStore
	clock   core.Clock
	pub     core.EventPublisher
	reports Invalidator
	timer   Resyncer
	logger  *applog.Logger
}

type EntriesOption func(*Entries)

func WithEntriesPublisher(p core.EventPublisher) EntriesOption {
	return func(e *Entries) { e.pub = p }
}

func WithEntriesInvalidator(inv Invalidator) EntriesOption {
	return func(e *Entries) { e.reports = inv }
}

func WithEntriesTimer(r Resyncer) EntriesOption {
	return func(e *Entries) { e.timer = r }
}

func WithEntriesLogger(l *applog.Logger) EntriesOption {
	return func(e *Entries) { e.logger = l.WithComponent(applog.ComponentEntries) }
}

func NewEntries(st EntryStore, clock core.Clock, opts ...EntriesOption) *Entries {
	e := &Entries{store: st, clock: clock, logger: applog.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DaySummary is the entry list for one calendar day.
type DaySummary struct {
	Day     time.Time
	Entries []core.EntryDetail
	Seconds int64
}

// Hours is the day total to two decimals.
func (d DaySummary) Hours() string {
	return core.FormatHours(d.Seconds, 2)
}

// Day lists the completed entries started on day, newest first. The running
// entry belongs to the timer card.
func (s *Entries) Day(ctx context.Context, day time.Time) (DaySummary, error) {
	w := report.DayWindow(day)
	f := w.CompletedFilter()
	f.Newest = true
	details, err := s.store.ListEntryDetails(ctx, f)
	if err != nil {
		return DaySummary{}, fmt.Errorf("list day entries: %w", err)
	}
	sum := DaySummary{Day: w.From, Entries: details}
	for _, d := range details {
		sum.Seconds += d.Entry.Seconds()
	}
	return sum, nil
}

func (s *Entries) Get(ctx context.Context, id string) (core.EntryDetail, error) {
	if id == "" {
		return core.EntryDetail{}, core.ErrEmptyID
	}
	return s.store.GetEntryDetail(ctx, id)
}

// EntryEdit is the editable part of a time entry. A nil End reopens the entry.
type EntryEdit struct {
	ID    string
	Start time.Time
	End   *time.Time
	Notes string
}

// ErrEndBeforeStart is returned when an edit would produce a negative duration.
var ErrEndBeforeStart = errors.New("end time is before start time")

// Update rewrites start, end and notes. Clearing the end time makes the entry
// the running one, which fails with core.ErrActiveEntryExists while another
// entry is running.
func (s *Entries) Update(ctx context.Context, edit EntryEdit) (core.TimeEntry, error) {
	if edit.ID == "" {
		return core.TimeEntry{}, core.ErrEmptyID
	}
	if edit.End != nil && edit.End.Before(edit.Start) {
		return core.TimeEntry{}, ErrEndBeforeStart
	}

	cur, err := s.store.GetEntry(ctx, edit.ID)
	if err != nil {
		return core.TimeEntry{}, err
	}
	if edit.End == nil && cur.End != nil {
		active, err := s.store.ActiveEntry(ctx)
		if err != nil {
			return core.TimeEntry{}, fmt.Errorf("load active entry: %w", err)
		}
		if active != nil && active.ID != edit.ID {
			return core.TimeEntry{}, core.ErrActiveEntryExists
		}
	}

	updated := cur
	updated.Start = edit.Start
	updated.End = edit.End
	updated.Notes = core.StringPtr(edit.Notes)
	if err := s.store.UpdateEntry(ctx, updated); err != nil {
		return core.TimeEntry{}, err
	}

	s.logger.InfoContext(ctx, "Entry updated",
		applog.NewFields().WithOperation(applog.OpUpdate).WithEntry(updated.ID, updated.Start, updated.End).ToSlice()...)
	s.changed(ctx, core.EntryUpdated, updated.ID, cur.Active() || updated.Active())
	return updated, nil
}

func (s *Entries) Delete(ctx context.Context, id string) error {
	if id == "" {
		return core.ErrEmptyID
	}
	cur, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteEntry(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Entry deleted", applog.FieldEntryID, id, applog.FieldOperation, applog.OpDelete)
	s.changed(ctx, core.EntryDeleted, id, cur.Active())
	return nil
}

// changed runs the follow-ups of a successful write. Failures here are
// logged only; the write itself already happened.
func (s *Entries) changed(ctx context.Context, kind core.EventKind, id string, touchedActive bool) {
	if s.reports != nil {
		s.reports.Invalidate()
	}
	if touchedActive && s.timer != nil {
		if err := s.timer.Resync(ctx); err != nil {
			s.logger.WarnContext(ctx, "Timer resync failed", applog.FieldError, err)
		}
	}
	if s.pub != nil {
		ev := core.EntryEvent{Kind: kind, EntryID: id, At: s.clock.Now()}
		if err := s.pub.PublishEntryEvent(ctx, ev); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish entry event",
				applog.FieldEvent, string(kind),
				applog.FieldEntryID, id,
				applog.FieldError, err)
		}
	}
}
