package http

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"timetracker/internal/core"
	applog "timetracker/internal/log"
	"timetracker/internal/services"
)

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// errorResponse maps a service error onto the status and message shown to the user.
func errorResponse(err error) *HTMXResponseBuilder {
	switch {
	case errors.Is(err, core.ErrActiveEntryExists):
		return ConflictError("Another timer is already running")
	case errors.Is(err, core.ErrDuplicateID):
		return ConflictError("A record with this id already exists")
	case core.IsNotFound(err):
		return NotFoundError(notFoundMessage(err))
	case errors.Is(err, core.ErrEmptyName):
		return UnprocessableEntityError("Name is required")
	case errors.Is(err, core.ErrEmptyID):
		return UnprocessableEntityError("Missing id")
	case errors.Is(err, core.ErrInvalidRange):
		return UnprocessableEntityError("Invalid date range")
	case errors.Is(err, services.ErrEndBeforeStart):
		return UnprocessableEntityError("End time must not be before start time")
	default:
		return InternalServerError("Something went wrong, please retry")
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrClientNotFound):
		return "Client not found"
	case errors.Is(err, core.ErrProjectNotFound):
		return "Project not found"
	case errors.Is(err, core.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, core.ErrEntryNotFound):
		return "Time entry not found"
	default:
		return "Not found"
	}
}

// writeError logs server-side failures and writes the mapped error fragment.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	resp := errorResponse(err)
	if resp.statusCode >= http.StatusInternalServerError {
		s.structured.LogError(r.Context(), "Request failed", err, operation, applog.ErrorTypeInternal,
			applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, ""))
	} else {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
			applog.FieldOperation, operation,
			applog.FieldError, err,
			applog.FieldStatusCode, resp.statusCode)
	}
	resp.Write(w)
}

// templateFuncs renders times in loc.
func templateFuncs(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"hhmm":      func(t time.Time) string { return t.In(loc).Format("15:04") },
		"datetime":  func(t time.Time) string { return t.In(loc).Format("2006-01-02 15:04") },
		"dtlocal":   func(t time.Time) string { return FormatDateTimeLocal(t, loc) },
		"day":       func(t time.Time) string { return t.In(loc).Format(DateLayout) },
		"longDay":   func(t time.Time) string { return t.In(loc).Format("Monday, January 2, 2006") },
		"hm":        func(e core.TimeEntry) string { return core.FormatHM(e.Duration()) },
		"clock":     core.FormatClock,
		"label":     core.LabelOr,
		"percent":   func(f float64) string { return strconv.FormatFloat(f, 'f', 1, 64) },
		"monthName": func(m time.Month) string { return m.String() },
		"endHHMM": func(t *time.Time) string {
			if t == nil {
				return "now"
			}
			return t.In(loc).Format("15:04")
		},
		"dtlocalPtr": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return FormatDateTimeLocal(*t, loc)
		},
	}
}
