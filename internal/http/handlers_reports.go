package http

import (
	"bytes"
	"net/http"
	"strconv"
	"sync/atomic"

	applog "timetracker/internal/log"
	"timetracker/internal/report"
)

type reportsPage struct {
	Nav    string
	Start  string
	End    string
	Report report.FlatReport
	Error  string
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	start, end := ReportRange(r.URL.Query(), s.now())
	page := reportsPage{Nav: "reports", Start: start, End: end}

	rep, _, err := s.reports.Range(r.Context(), start, end)
	if err != nil {
		resp := errorResponse(err)
		if resp.statusCode >= http.StatusInternalServerError {
			s.writeError(w, r, err, applog.OpRead)
			return
		}
		page.Error = "Invalid date range"
		s.render(w, r, "reports.html", page, NewHTMXResponse().Status(http.StatusUnprocessableEntity))
		return
	}
	page.Report = rep
	s.render(w, r, "reports.html", page, nil)
}

// handleExportCSV streams the completed entries of the range as an attachment.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	start, end := ReportRange(r.URL.Query(), s.now())

	// Buffer so a late failure can still become an error page.
	var buf bytes.Buffer
	filename, err := s.reports.ExportCSV(r.Context(), &buf, start, end)
	if err != nil {
		s.writeError(w, r, err, applog.OpExport)
		return
	}
	atomic.AddInt64(&s.appMetrics.exports, 1)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type visualsPage struct {
	Nav     string
	Month   MonthParams
	Prev    MonthParams
	Next    MonthParams
	Summary report.MonthlySummary
}

// handleVisuals renders the monthly "Client / Project" bars.
func (s *Server) handleVisuals(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	m := ParseMonthParams(r.URL.Query(), s.now())
	sum, err := s.reports.Monthly(r.Context(), m.Year, m.Month)
	if err != nil {
		s.writeError(w, r, err, applog.OpRead)
		return
	}
	s.render(w, r, "visuals.html", visualsPage{
		Nav:     "visuals",
		Month:   m,
		Prev:    m.Prev(),
		Next:    m.Next(),
		Summary: sum,
	}, nil)
}
