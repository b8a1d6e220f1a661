package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timetracker/internal/amqp"
	"timetracker/internal/core"
	applog "timetracker/internal/log"
	"timetracker/internal/report"
	"timetracker/internal/sheets"
	"timetracker/internal/store"
)

// EntryReader is the slice of the gateway the worker needs.
type EntryReader interface {
	GetEntryDetail(ctx context.Context, id string) (core.EntryDetail, error)
	ListEntryDetails(ctx context.Context, f store.EntryFilter) ([]core.EntryDetail, error)
}

// SyncWorker mirrors completed time entries into a spreadsheet.
type SyncWorker struct {
	entries EntryReader
	mirror  sheets.EntryMirror
	loc     *time.Location
	logger  *applog.Logger
}

func NewSyncWorker(entries EntryReader, mirror sheets.EntryMirror, loc *time.Location, logger *applog.Logger) *SyncWorker {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &SyncWorker{
		entries: entries,
		mirror:  mirror,
		loc:     loc,
		logger:  logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleEntryEvent is the AMQP handler. A returned error requeues the message.
func (w *SyncWorker) HandleEntryEvent(ctx context.Context, msg *amqp.EntryEventMessage) error {
	w.logger.InfoContext(ctx, "Processing entry event",
		applog.FieldEvent, string(msg.Kind),
		applog.FieldEntryID, msg.EntryID)

	if msg.Kind == core.EntryDeleted {
		return w.remove(ctx, msg.EntryID)
	}

	d, err := w.entries.GetEntryDetail(ctx, msg.EntryID)
	if errors.Is(err, core.ErrEntryNotFound) {
		// Deleted after the event was published.
		return w.remove(ctx, msg.EntryID)
	}
	if err != nil {
		return fmt.Errorf("get entry %s: %w", msg.EntryID, err)
	}
	if d.Entry.Active() {
		// Running entries are not mirrored; an edit may have reopened a mirrored one.
		return w.remove(ctx, msg.EntryID)
	}
	return w.upsert(ctx, d)
}

// StartupSync mirrors every completed entry in w, covering events lost while
// the worker was down. Individual failures are logged and counted.
func (w *SyncWorker) StartupSync(ctx context.Context, win report.Window) (synced, failed int, err error) {
	details, err := w.entries.ListEntryDetails(ctx, win.CompletedFilter())
	if err != nil {
		return 0, 0, fmt.Errorf("list entries for startup sync: %w", err)
	}
	for _, d := range details {
		if err := ctx.Err(); err != nil {
			return synced, failed, err
		}
		if err := w.upsert(ctx, d); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror entry during startup",
				applog.FieldEntryID, d.Entry.ID,
				applog.FieldError, err)
			failed++
			continue
		}
		synced++
	}
	w.logger.InfoContext(ctx, "Startup sync completed",
		applog.FieldCount, len(details),
		"synced", synced,
		"errors", failed,
		"window", win.String())
	return synced, failed, nil
}

func (w *SyncWorker) upsert(ctx context.Context, d core.EntryDetail) error {
	row := sheets.RowFromDetail(d, w.loc)
	if err := w.mirror.UpsertEntry(ctx, row); err != nil {
		return fmt.Errorf("mirror entry %s: %w", d.Entry.ID, err)
	}
	w.logger.InfoContext(ctx, "Mirrored entry",
		applog.FieldEntryID, d.Entry.ID,
		"hours", row.Hours)
	return nil
}

func (w *SyncWorker) remove(ctx context.Context, id string) error {
	if err := w.mirror.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("remove mirrored entry %s: %w", id, err)
	}
	w.logger.InfoContext(ctx, "Removed mirrored entry", applog.FieldEntryID, id)
	return nil
}
