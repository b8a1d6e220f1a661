package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"timetracker/internal/core"
	"timetracker/internal/store"
)

// Store keeps all four collections in memory. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	clients  []core.Client
	projects []core.Project
	tasks    []core.Task
	entries  []core.TimeEntry
	writes   int64
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// NewFromFile seeds the catalog from lines shaped "Client / Project / Task".
// Blank lines and lines starting with '#' are skipped. A missing file yields an empty store.
func NewFromFile(path string, ids core.IDGenerator, clock core.Clock) *Store {
	s := New()
	for _, line := range readLines(path) {
		parts := strings.Split(line, "/")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) == 0 || parts[0] == "" {
			continue
		}
		now := clock.Now()
		c := s.findOrAddClient(parts[0], ids, now)
		if len(parts) < 2 || parts[1] == "" {
			continue
		}
		p := s.findOrAddProject(c.ID, parts[1], ids, now)
		if len(parts) < 3 || parts[2] == "" {
			continue
		}
		s.findOrAddTask(p.ID, parts[2], ids, now)
	}
	return s
}

func (s *Store) findOrAddClient(name string, ids core.IDGenerator, now time.Time) core.Client {
	for _, c := range s.clients {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	c := core.Client{ID: ids.New(), Name: name, CreatedAt: now}
	s.clients = append(s.clients, c)
	return c
}

func (s *Store) findOrAddProject(clientID, name string, ids core.IDGenerator, now time.Time) core.Project {
	for _, p := range s.projects {
		if p.ClientID == clientID && strings.EqualFold(p.Name, name) {
			return p
		}
	}
	p := core.Project{ID: ids.New(), ClientID: clientID, Name: name, IsActive: true, CreatedAt: now}
	s.projects = append(s.projects, p)
	return p
}

func (s *Store) findOrAddTask(projectID, name string, ids core.IDGenerator, now time.Time) core.Task {
	for _, t := range s.tasks {
		if t.ProjectID == projectID && strings.EqualFold(t.Name, name) {
			return t
		}
	}
	t := core.Task{ID: ids.New(), ProjectID: projectID, Name: name, CreatedAt: now}
	s.tasks = append(s.tasks, t)
	return t
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Clients

func (s *Store) CreateClient(_ context.Context, c core.Client) (core.Client, error) {
	if err := c.Validate(); err != nil {
		return core.Client{}, err
	}
	if c.ID == "" {
		return core.Client{}, core.ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clientIndex(c.ID) >= 0 {
		return core.Client{}, fmt.Errorf("client %s: %w", c.ID, core.ErrDuplicateID)
	}
	s.clients = append(s.clients, c)
	return c, nil
}

func (s *Store) GetClient(_ context.Context, id string) (core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.clientIndex(id); i >= 0 {
		return s.clients[i], nil
	}
	return core.Client{}, core.ErrClientNotFound
}

func (s *Store) ListClients(_ context.Context) ([]core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Client(nil), s.clients...)
	sort.Slice(out, func(i, j int) bool { return byName(out[i].Name, out[j].Name, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) DeleteClient(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.clientIndex(id)
	if i < 0 {
		return core.ErrClientNotFound
	}
	s.clients = append(s.clients[:i], s.clients[i+1:]...)
	for _, p := range s.projectsOf(id) {
		s.deleteProjectLocked(p)
	}
	return nil
}

// Projects

func (s *Store) CreateProject(_ context.Context, p core.Project) (core.Project, error) {
	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}
	if p.ID == "" {
		return core.Project{}, core.ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clientIndex(p.ClientID) < 0 {
		return core.Project{}, core.ErrClientNotFound
	}
	if s.projectIndex(p.ID) >= 0 {
		return core.Project{}, fmt.Errorf("project %s: %w", p.ID, core.ErrDuplicateID)
	}
	s.projects = append(s.projects, p)
	return p, nil
}

func (s *Store) GetProject(_ context.Context, id string) (core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.projectIndex(id); i >= 0 {
		return s.projects[i], nil
	}
	return core.Project{}, core.ErrProjectNotFound
}

func (s *Store) ListProjects(_ context.Context, f store.ProjectFilter) ([]core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Project
	for _, p := range s.projects {
		if f.ClientID != "" && p.ClientID != f.ClientID {
			continue
		}
		if f.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return byName(out[i].Name, out[j].Name, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) SetProjectActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.projectIndex(id)
	if i < 0 {
		return core.ErrProjectNotFound
	}
	s.projects[i].IsActive = active
	return nil
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.projectIndex(id) < 0 {
		return core.ErrProjectNotFound
	}
	s.deleteProjectLocked(id)
	return nil
}

// Tasks

func (s *Store) CreateTask(_ context.Context, t core.Task) (core.Task, error) {
	if err := t.Validate(); err != nil {
		return core.Task{}, err
	}
	if t.ID == "" {
		return core.Task{}, core.ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.projectIndex(t.ProjectID) < 0 {
		return core.Task{}, core.ErrProjectNotFound
	}
	if s.taskIndex(t.ID) >= 0 {
		return core.Task{}, fmt.Errorf("task %s: %w", t.ID, core.ErrDuplicateID)
	}
	s.tasks = append(s.tasks, t)
	return t, nil
}

func (s *Store) GetTask(_ context.Context, id string) (core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.taskIndex(id); i >= 0 {
		return s.tasks[i], nil
	}
	return core.Task{}, core.ErrTaskNotFound
}

func (s *Store) ListTasks(_ context.Context, projectID string) ([]core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Task
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return byName(out[i].Name, out[j].Name, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taskIndex(id) < 0 {
		return core.ErrTaskNotFound
	}
	s.deleteTaskLocked(id)
	return nil
}

// Entries

func (s *Store) InsertEntry(_ context.Context, e core.TimeEntry) (core.TimeEntry, error) {
	if err := e.Validate(); err != nil {
		return core.TimeEntry{}, err
	}
	if e.ID == "" {
		return core.TimeEntry{}, core.ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taskIndex(e.TaskID) < 0 {
		return core.TimeEntry{}, core.ErrTaskNotFound
	}
	if s.entryIndex(e.ID) >= 0 {
		return core.TimeEntry{}, fmt.Errorf("time entry %s: %w", e.ID, core.ErrDuplicateID)
	}
	if e.Active() && s.activeIndex() >= 0 {
		return core.TimeEntry{}, core.ErrActiveEntryExists
	}
	s.entries = append(s.entries, e)
	s.writes++
	return e, nil
}

func (s *Store) GetEntry(_ context.Context, id string) (core.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.entryIndex(id); i >= 0 {
		return s.entries[i], nil
	}
	return core.TimeEntry{}, core.ErrEntryNotFound
}

func (s *Store) ActiveEntry(_ context.Context) (*core.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.activeIndex()
	if i < 0 {
		return nil, nil
	}
	e := s.entries[i]
	return &e, nil
}

func (s *Store) UpdateEntry(_ context.Context, e core.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.entryIndex(e.ID)
	if i < 0 {
		return core.ErrEntryNotFound
	}
	if e.Active() {
		if a := s.activeIndex(); a >= 0 && a != i {
			return core.ErrActiveEntryExists
		}
	}
	cur := &s.entries[i]
	cur.Start = e.Start
	cur.End = e.End
	cur.Notes = e.Notes
	s.writes++
	return nil
}

func (s *Store) DeleteEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.entryIndex(id)
	if i < 0 {
		return core.ErrEntryNotFound
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	s.writes++
	return nil
}

func (s *Store) EntryRevision(context.Context) (store.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.Revision{Entries: int64(len(s.entries)), Writes: s.writes}, nil
}

func (s *Store) ListEntryDetails(_ context.Context, f store.EntryFilter) ([]core.EntryDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.EntryDetail
	for _, e := range s.entries {
		if f.Matches(e) {
			out = append(out, s.detailLocked(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Entry, out[j].Entry
		if !a.Start.Equal(b.Start) {
			if f.Newest {
				return a.Start.After(b.Start)
			}
			return a.Start.Before(b.Start)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) GetEntryDetail(_ context.Context, id string) (core.EntryDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.entryIndex(id)
	if i < 0 {
		return core.EntryDetail{}, core.ErrEntryNotFound
	}
	return s.detailLocked(s.entries[i]), nil
}

// detailLocked resolves the task/project/client chain, leaving broken links nil.
func (s *Store) detailLocked(e core.TimeEntry) core.EntryDetail {
	d := core.EntryDetail{Entry: e}
	ti := s.taskIndex(e.TaskID)
	if ti < 0 {
		return d
	}
	t := s.tasks[ti]
	d.Task = &t
	pi := s.projectIndex(t.ProjectID)
	if pi < 0 {
		return d
	}
	p := s.projects[pi]
	d.Project = &p
	if ci := s.clientIndex(p.ClientID); ci >= 0 {
		c := s.clients[ci]
		d.Client = &c
	}
	return d
}

func (s *Store) deleteProjectLocked(id string) {
	if i := s.projectIndex(id); i >= 0 {
		s.projects = append(s.projects[:i], s.projects[i+1:]...)
	}
	var taskIDs []string
	for _, t := range s.tasks {
		if t.ProjectID == id {
			taskIDs = append(taskIDs, t.ID)
		}
	}
	for _, tid := range taskIDs {
		s.deleteTaskLocked(tid)
	}
}

func (s *Store) deleteTaskLocked(id string) {
	if i := s.taskIndex(id); i >= 0 {
		s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	}
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.TaskID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) != len(s.entries) {
		s.writes++
	}
	s.entries = kept
}

func (s *Store) projectsOf(clientID string) []string {
	var ids []string
	for _, p := range s.projects {
		if p.ClientID == clientID {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// byName matches the SQL gateways' ORDER BY LOWER(name), id.
func byName(a, b, idA, idB string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return idA < idB
}

func (s *Store) clientIndex(id string) int {
	for i, c := range s.clients {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) projectIndex(id string) int {
	for i, p := range s.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) taskIndex(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) entryIndex(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) activeIndex() int {
	for i, e := range s.entries {
		if e.Active() {
			return i
		}
	}
	return -1
}

// String summarises the store contents for debug logging.
func (s *Store) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("memory(clients=%d projects=%d tasks=%d entries=%d)",
		len(s.clients), len(s.projects), len(s.tasks), len(s.entries))
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
