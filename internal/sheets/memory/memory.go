package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"timetracker/internal/sheets"
)

// Mirror keeps mirrored rows in memory. The worker uses it when no
// spreadsheet is configured.
type Mirror struct {
	mu   sync.Mutex
	rows map[string]sheets.EntryRow
}

var _ sheets.EntryMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{rows: make(map[string]sheets.EntryRow)}
}

func (m *Mirror) UpsertEntry(_ context.Context, row sheets.EntryRow) error {
	if strings.TrimSpace(row.EntryID) == "" {
		return errors.New("entry row has no id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[row.EntryID] = row
	return nil
}

func (m *Mirror) DeleteEntry(_ context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, entryID)
	return nil
}

// Get returns the mirrored row for entryID.
func (m *Mirror) Get(entryID string) (sheets.EntryRow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[entryID]
	return row, ok
}

// Rows returns all rows ordered by start time, then id.
func (m *Mirror) Rows() []sheets.EntryRow {
	m.mu.Lock()
	out := make([]sheets.EntryRow, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].EntryID < out[j].EntryID
	})
	return out
}
