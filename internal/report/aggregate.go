package report

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"timetracker/internal/core"
)

type (
	// TaskTotal sums the completed entries of one task.
	TaskTotal struct {
		TaskID  string
		Name    string
		Seconds int64
		Entries int
	}

	// ProjectTotal sums its tasks. ClientName is "" when the client link is broken.
	ProjectTotal struct {
		ProjectID  string
		Name       string
		ClientName string
		Seconds    int64
		Tasks      []TaskTotal
	}

	// FlatReport is the project/task grouping of a window.
	FlatReport struct {
		Projects []ProjectTotal
		Seconds  int64
		Entries  int
		// Skipped counts entries left out because they were running,
		// outside the window or missing their task or project.
		Skipped int
	}
)

func (t TaskTotal) Hours() string    { return core.FormatHours(t.Seconds, 2) }
func (p ProjectTotal) Hours() string { return core.FormatHours(p.Seconds, 2) }
func (r FlatReport) Hours() string   { return core.FormatHours(r.Seconds, 2) }

// Empty reports whether no entry contributed to the report.
func (r FlatReport) Empty() bool { return len(r.Projects) == 0 }

// Flat groups completed entries starting inside w by project, then by task.
// Projects and tasks are ordered by name, case-insensitively, with ids breaking
// ties so the output does not depend on input order.
func Flat(entries []core.EntryDetail, w Window) FlatReport {
	var rep FlatReport
	projects := map[string]*ProjectTotal{}
	tasks := map[string]map[string]*TaskTotal{}

	for _, d := range entries {
		if d.Entry.Active() || !w.Contains(d.Entry.Start) {
			rep.Skipped++
			continue
		}
		switch d.Link() {
		case core.MissingTask, core.MissingProject:
			rep.Skipped++
			continue
		case core.Linked, core.MissingClient:
		}

		p, ok := projects[d.Project.ID]
		if !ok {
			p = &ProjectTotal{ProjectID: d.Project.ID, Name: d.Project.Name, ClientName: d.ClientName()}
			projects[d.Project.ID] = p
			tasks[d.Project.ID] = map[string]*TaskTotal{}
		}
		t, ok := tasks[d.Project.ID][d.Task.ID]
		if !ok {
			t = &TaskTotal{TaskID: d.Task.ID, Name: d.Task.Name}
			tasks[d.Project.ID][d.Task.ID] = t
		}

		sec := d.Entry.Seconds()
		t.Seconds += sec
		t.Entries++
		p.Seconds += sec
		rep.Seconds += sec
		rep.Entries++
	}

	col := collate.New(language.Und, collate.IgnoreCase)
	for id, p := range projects {
		for _, t := range tasks[id] {
			p.Tasks = append(p.Tasks, *t)
		}
		sort.Slice(p.Tasks, func(i, j int) bool {
			return byName(col, p.Tasks[i].Name, p.Tasks[j].Name, p.Tasks[i].TaskID, p.Tasks[j].TaskID)
		})
		rep.Projects = append(rep.Projects, *p)
	}
	sort.Slice(rep.Projects, func(i, j int) bool {
		a, b := rep.Projects[i], rep.Projects[j]
		return byName(col, a.Name, b.Name, a.ProjectID, b.ProjectID)
	})
	return rep
}

func byName(col *collate.Collator, a, b, idA, idB string) bool {
	if c := col.CompareString(a, b); c != 0 {
		return c < 0
	}
	return idA < idB
}
