package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"timetracker/internal/core"
)

// CSVHeader is the fixed first line of every export.
const CSVHeader = "Client,Project,Task,Start Time,End Time,Duration (Hours),Notes"

// CSVTimeLayout formats start and end columns.
const CSVTimeLayout = "2006-01-02 15:04"

// Filename names the export for the literal start and end date strings.
func Filename(startDate, endDate string) string {
	return fmt.Sprintf("time_report_%s_to_%s.csv", startDate, endDate)
}

// WriteCSV writes one row per entry in the given order, times rendered in loc.
// Rows are separated by "\n" with no trailing newline. Notes are always quoted;
// name columns are quoted only when they contain a delimiter.
func WriteCSV(w io.Writer, entries []core.EntryDetail, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, CSVHeader)
	for _, d := range entries {
		lines = append(lines, csvRow(d, loc))
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

func csvRow(d core.EntryDetail, loc *time.Location) string {
	end := ""
	if d.Entry.End != nil {
		end = d.Entry.End.In(loc).Format(CSVTimeLayout)
	}
	fields := []string{
		escapeField(d.ClientName()),
		escapeField(d.ProjectName()),
		escapeField(d.TaskName()),
		d.Entry.Start.In(loc).Format(CSVTimeLayout),
		end,
		core.FormatHours(d.Entry.Seconds(), 2),
		quote(d.Entry.NotesText()),
	}
	return strings.Join(fields, ",")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func escapeField(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return quote(s)
	}
	return s
}
