package core

import (
	"errors"
	"strings"
	"time"
)

// UnknownLabel is shown in place of a name whose record is no longer linked.
const UnknownLabel = "Unknown"

type (
	Client struct {
		ID        string
		Name      string
		CreatedAt time.Time
	}

	Project struct {
		ID        string
		ClientID  string
		Name      string
		IsActive  bool
		CreatedAt time.Time
	}

	Task struct {
		ID        string
		ProjectID string
		Name      string
		CreatedAt time.Time
	}

	// TimeEntry is one interval of work on a task. A nil End marks the running timer.
	TimeEntry struct {
		ID        string
		TaskID    string
		Start     time.Time
		End       *time.Time
		Notes     *string
		CreatedAt time.Time
	}
)

var (
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyID           = errors.New("empty id")
	ErrNotFound          = errors.New("not found")
	ErrClientNotFound    = errors.New("client not found")
	ErrProjectNotFound   = errors.New("project not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrEntryNotFound     = errors.New("time entry not found")
	ErrActiveEntryExists = errors.New("another time entry is already running")
	ErrDuplicateID       = errors.New("duplicate id")
	ErrInvalidRange      = errors.New("invalid date range")
)

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}

func (c Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.ClientID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ProjectID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (e TimeEntry) Validate() error {
	if strings.TrimSpace(e.TaskID) == "" {
		return ErrEmptyID
	}
	if e.Start.IsZero() {
		return errors.New("start time cannot be zero")
	}
	return nil
}

// Active reports whether the entry is the running timer.
func (e TimeEntry) Active() bool {
	return e.End == nil
}

// Duration is End-Start for completed entries and zero for the running one.
func (e TimeEntry) Duration() time.Duration {
	if e.End == nil {
		return 0
	}
	return e.End.Sub(e.Start)
}

// Seconds truncates Duration to whole seconds.
func (e TimeEntry) Seconds() int64 {
	return int64(e.Duration() / time.Second)
}

// NotesText returns the notes or an empty string.
func (e TimeEntry) NotesText() string {
	if e.Notes == nil {
		return ""
	}
	return *e.Notes
}

// StringPtr returns nil for blank strings so optional columns stay NULL.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time {
	return &t
}
