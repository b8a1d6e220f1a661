package sheets

import (
	"context"
	"time"

	"timetracker/internal/core"
	"timetracker/internal/report"
)

// Header is the first row of the mirror sheet. Column A holds the entry id.
var Header = []any{"Entry ID", "Client", "Project", "Task", "Start Time", "End Time", "Duration (Hours)", "Notes"}

// EntryRow is one mirrored time entry, already formatted for a spreadsheet.
type EntryRow struct {
	EntryID string
	Client  string
	Project string
	Task    string
	Start   string
	End     string
	Hours   string
	Notes   string
}

// Ports for outbound adapters.
type (
	// EntryMirror keeps a copy of completed entries keyed by entry id.
	EntryMirror interface {
		UpsertEntry(ctx context.Context, row EntryRow) error
		DeleteEntry(ctx context.Context, entryID string) error
	}
)

// RowFromDetail formats d the same way the CSV export does.
func RowFromDetail(d core.EntryDetail, loc *time.Location) EntryRow {
	if loc == nil {
		loc = time.Local
	}
	row := EntryRow{
		EntryID: d.Entry.ID,
		Client:  core.LabelOr(d.ClientName()),
		Project: core.LabelOr(d.ProjectName()),
		Task:    core.LabelOr(d.TaskName()),
		Start:   d.Entry.Start.In(loc).Format(report.CSVTimeLayout),
		Hours:   core.FormatHours(d.Entry.Seconds(), 2),
		Notes:   d.Entry.NotesText(),
	}
	if d.Entry.End != nil {
		row.End = d.Entry.End.In(loc).Format(report.CSVTimeLayout)
	}
	return row
}

// Values returns the row in column order.
func (r EntryRow) Values() []any {
	return []any{r.EntryID, r.Client, r.Project, r.Task, r.Start, r.End, r.Hours, r.Notes}
}
