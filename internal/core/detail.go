package core

// LinkStatus describes how far an entry's task/project/client chain resolves.
type LinkStatus int

const (
	Linked LinkStatus = iota
	MissingTask
	MissingProject
	MissingClient
)

func (s LinkStatus) String() string {
	switch s {
	case Linked:
		return "linked"
	case MissingTask:
		return "missing_task"
	case MissingProject:
		return "missing_project"
	case MissingClient:
		return "missing_client"
	default:
		return "unknown"
	}
}

// EntryDetail is a time entry joined with its task, project and client.
// Any of the pointers may be nil when the referenced record no longer exists.
type EntryDetail struct {
	Entry   TimeEntry
	Task    *Task
	Project *Project
	Client  *Client
}

// Link returns the first broken link in the chain, or Linked.
func (d EntryDetail) Link() LinkStatus {
	switch {
	case d.Task == nil:
		return MissingTask
	case d.Project == nil:
		return MissingProject
	case d.Client == nil:
		return MissingClient
	default:
		return Linked
	}
}

// HasTaskAndProject reports whether the entry can be placed in a project/task group.
func (d EntryDetail) HasTaskAndProject() bool {
	s := d.Link()
	return s == Linked || s == MissingClient
}

// TaskName returns the task name, or "" when the task is missing.
func (d EntryDetail) TaskName() string {
	if d.Task == nil {
		return ""
	}
	return d.Task.Name
}

// ProjectName returns the project name, or "" when the project is missing.
func (d EntryDetail) ProjectName() string {
	if d.Project == nil {
		return ""
	}
	return d.Project.Name
}

// ClientName returns the client name, or "" when the client is missing.
func (d EntryDetail) ClientName() string {
	if d.Client == nil {
		return ""
	}
	return d.Client.Name
}

// LabelOr returns name, or UnknownLabel when it is empty.
func LabelOr(name string) string {
	if name == "" {
		return UnknownLabel
	}
	return name
}
