package report

import (
	"fmt"
	"sort"
	"unicode/utf16"

	"timetracker/internal/core"
)

// Bar is one "Client - Project" group of the monthly summary.
type Bar struct {
	Label   string
	Client  string
	Project string
	Seconds int64
	Color   string
	// Width is Seconds relative to the largest group, in percent.
	Width float64
	// Link is the worst link status among the entries in the group.
	Link core.LinkStatus
}

func (b Bar) Hours() string { return core.FormatHours(b.Seconds, 1) }

// MonthlySummary holds the bars ordered by seconds, largest first.
type MonthlySummary struct {
	Window  Window
	Bars    []Bar
	Seconds int64
	// Max is the largest group total, never below 1.
	Max int64
}

func (m MonthlySummary) Hours() string { return core.FormatHours(m.Seconds, 1) }

// Monthly sums completed entries starting inside w per client and project.
// Entries with a broken link are kept under UnknownLabel for the missing names.
func Monthly(entries []core.EntryDetail, w Window) MonthlySummary {
	sum := MonthlySummary{Window: w}
	groups := map[string]*Bar{}

	for _, d := range entries {
		if d.Entry.Active() || !w.Contains(d.Entry.Start) {
			continue
		}
		client, project := groupNames(d)
		label := client + " - " + project
		b, ok := groups[label]
		if !ok {
			b = &Bar{Label: label, Client: client, Project: project, Color: Color(project)}
			groups[label] = b
		}
		if l := d.Link(); l > b.Link {
			b.Link = l
		}
		b.Seconds += d.Entry.Seconds()
		sum.Seconds += d.Entry.Seconds()
	}

	for _, b := range groups {
		sum.Bars = append(sum.Bars, *b)
		if b.Seconds > sum.Max {
			sum.Max = b.Seconds
		}
	}
	// Floor at one second so an all-zero month does not divide by zero.
	if sum.Max < 1 {
		sum.Max = 1
	}
	for i := range sum.Bars {
		sum.Bars[i].Width = float64(sum.Bars[i].Seconds) / float64(sum.Max) * 100
	}
	sort.Slice(sum.Bars, func(i, j int) bool {
		if sum.Bars[i].Seconds != sum.Bars[j].Seconds {
			return sum.Bars[i].Seconds > sum.Bars[j].Seconds
		}
		return sum.Bars[i].Label < sum.Bars[j].Label
	})
	return sum
}

func groupNames(d core.EntryDetail) (client, project string) {
	switch d.Link() {
	case core.MissingTask, core.MissingProject:
		return core.UnknownLabel, core.UnknownLabel
	case core.MissingClient:
		return core.UnknownLabel, core.LabelOr(d.Project.Name)
	default:
		return core.LabelOr(d.Client.Name), core.LabelOr(d.Project.Name)
	}
}

// Color derives a stable "#RRGGBB" code from name. The hash runs over UTF-16
// code units with 32-bit wrap-around and keeps the low 24 bits.
func Color(name string) string {
	var h uint32
	for _, c := range utf16.Encode([]rune(name)) {
		h = uint32(c) + (h << 5) - h
	}
	return fmt.Sprintf("#%06X", h&0xFFFFFF)
}
