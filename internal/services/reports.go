package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"timetracker/internal/cache"
	"timetracker/internal/core"
	applog "timetracker/internal/log"
	"timetracker/internal/report"
	"timetracker/internal/store"
)

// ReportStore lists joined entries for a window.
type ReportStore interface {
	ListEntryDetails(ctx context.Context, f store.EntryFilter) ([]core.EntryDetail, error)
	EntryRevision(ctx context.Context) (store.Revision, error)
}

// CachedMonthly is a monthly summary with the gateway revision it was built from.
type CachedMonthly struct {
	Summary  report.MonthlySummary
	Revision store.Revision
}

// Reports builds flat reports, monthly summaries and CSV exports. A cached
// monthly summary is served only while the gateway revision is unchanged, so
// writes from other processes sharing the database are picked up.
type Reports struct {
	store   ReportStore
	loc     *time.Location
	monthly cache.Cache[CachedMonthly]
	logger  *applog.Logger
}

var (
	_ Invalidator         = (*Reports)(nil)
	_ core.EventPublisher = (*Reports)(nil)
)

type ReportsOption func(*Reports)

// WithMonthlyCache replaces the default 64 entry, five minute LRU cache.
func WithMonthlyCache(c cache.Cache[CachedMonthly]) ReportsOption {
	return func(r *Reports) { r.monthly = c }
}

func WithReportsLogger(l *applog.Logger) ReportsOption {
	return func(r *Reports) { r.logger = l.WithComponent(applog.ComponentReports) }
}

func NewReports(st ReportStore, loc *time.Location, opts ...ReportsOption) *Reports {
	if loc == nil {
		loc = time.Local
	}
	r := &Reports{
		store:  st,
		loc:    loc,
		logger: applog.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.monthly == nil {
		r.monthly = cache.NewLRUCache[CachedMonthly](64, 5*time.Minute)
	}
	return r
}

// Location is the zone reports are computed in.
func (r *Reports) Location() *time.Location {
	return r.loc
}

// Range builds the flat report for the inclusive yyyy-mm-dd range.
func (r *Reports) Range(ctx context.Context, startDate, endDate string) (report.FlatReport, report.Window, error) {
	w, err := report.DateRange(startDate, endDate, r.loc)
	if err != nil {
		return report.FlatReport{}, report.Window{}, err
	}
	details, err := r.store.ListEntryDetails(ctx, w.CompletedFilter())
	if err != nil {
		return report.FlatReport{}, w, fmt.Errorf("list entries: %w", err)
	}
	rep := report.Flat(details, w)
	if rep.Skipped > 0 {
		r.logger.DebugContext(ctx, "Entries without task or project left out of report",
			applog.FieldCount, rep.Skipped,
			applog.FieldStart, startDate,
			applog.FieldEnd, endDate)
	}
	return rep, w, nil
}

// Monthly returns the per client/project summary for one calendar month.
func (r *Reports) Monthly(ctx context.Context, year int, month time.Month) (report.MonthlySummary, error) {
	if year < 1 || month < time.January || month > time.December {
		return report.MonthlySummary{}, fmt.Errorf("%w: %d-%02d", core.ErrInvalidRange, year, int(month))
	}
	rev, err := r.store.EntryRevision(ctx)
	if err != nil {
		return report.MonthlySummary{}, err
	}
	key := fmt.Sprintf("%04d-%02d", year, int(month))
	if cached, ok := r.monthly.Get(key); ok {
		if cached.Revision == rev {
			return cached.Summary, nil
		}
		r.logger.DebugContext(ctx, "Monthly summary stale, entries changed elsewhere",
			applog.FieldYear, year,
			applog.FieldMonth, int(month))
	}

	w := report.MonthWindow(year, month, r.loc)
	details, err := r.store.ListEntryDetails(ctx, w.CompletedFilter())
	if err != nil {
		return report.MonthlySummary{}, fmt.Errorf("list entries: %w", err)
	}
	sum := report.Monthly(details, w)
	r.monthly.Set(key, CachedMonthly{Summary: sum, Revision: rev})
	r.logger.DebugContext(ctx, "Monthly summary computed",
		applog.FieldYear, year,
		applog.FieldMonth, int(month),
		applog.FieldCount, len(sum.Bars))
	return sum, nil
}

// ExportCSV writes the completed entries of the range, newest first, and
// returns the download file name.
func (r *Reports) ExportCSV(ctx context.Context, out io.Writer, startDate, endDate string) (string, error) {
	w, err := report.DateRange(startDate, endDate, r.loc)
	if err != nil {
		return "", err
	}
	f := w.CompletedFilter()
	f.Newest = true
	details, err := r.store.ListEntryDetails(ctx, f)
	if err != nil {
		return "", fmt.Errorf("list entries: %w", err)
	}
	if err := report.WriteCSV(out, details, r.loc); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	r.logger.InfoContext(ctx, "CSV exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldCount, len(details),
		applog.FieldStart, startDate,
		applog.FieldEnd, endDate)
	return report.Filename(startDate, endDate), nil
}

// Invalidate drops every cached monthly summary.
func (r *Reports) Invalidate() {
	if n := r.monthly.Purge(); n > 0 {
		r.logger.Debug("Monthly summaries invalidated", applog.FieldCount, n)
	}
}

// PublishEntryEvent invalidates the cache when an entry stops, changes or goes away.
// Starting an entry does not change any completed total.
func (r *Reports) PublishEntryEvent(_ context.Context, ev core.EntryEvent) error {
	if ev.Kind != core.EntryStarted {
		r.Invalidate()
	}
	return nil
}
