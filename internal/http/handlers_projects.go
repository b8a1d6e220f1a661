package http

import (
	"net/http"
	"strconv"

	applog "timetracker/internal/log"
	"timetracker/internal/services"
)

type projectsPage struct {
	Nav     string
	Clients []services.ClientProjects
}

// handleProjects renders the project manager on GET and creates a project on POST.
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		tree, err := s.catalog.Tree(r.Context())
		if err != nil {
			s.writeError(w, r, err, applog.OpList)
			return
		}
		page := projectsPage{Nav: "projects", Clients: tree}
		name := "projects.html"
		if r.Header.Get("HX-Request") == "true" {
			name = "project_list"
		}
		s.render(w, r, name, page, nil)
	case http.MethodPost:
		s.handleCreateProject(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	body, resp := ParseBodyOrFail(r)
	if resp != nil {
		resp.Write(w)
		return
	}
	p, err := s.catalog.CreateProject(r.Context(), body.Get("client_id"), body.Get("name"))
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}
	s.catalogChanged(w, r, "Project "+p.Name+" added")
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	body, resp := ParseBodyOrFail(r)
	if resp != nil {
		resp.Write(w)
		return
	}
	c, err := s.catalog.CreateClient(r.Context(), body.Get("name"))
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}
	s.catalogChanged(w, r, "Client "+c.Name+" added")
}

// handleDeleteClient removes a client with its projects, tasks and entries.
func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost, http.MethodDelete); resp != nil {
		resp.Write(w)
		return
	}
	body, resp := ParseBodyOrFail(r)
	if resp != nil {
		resp.Write(w)
		return
	}
	if err := s.catalog.DeleteClient(r.Context(), body.Get("id")); err != nil {
		s.writeError(w, r, err, applog.OpDelete)
		return
	}
	s.catalogChanged(w, r, "Client deleted")
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost, http.MethodDelete); resp != nil {
		resp.Write(w)
		return
	}
	body, resp := ParseBodyOrFail(r)
	if resp != nil {
		resp.Write(w)
		return
	}
	if err := s.catalog.DeleteProject(r.Context(), body.Get("id")); err != nil {
		s.writeError(w, r, err, applog.OpDelete)
		return
	}
	s.catalogChanged(w, r, "Project deleted")
}

// handleSetProjectActive toggles whether a project is offered by the timer.
func (s *Server) handleSetProjectActive(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	body, resp := ParseBodyOrFail(r)
	if resp != nil {
		resp.Write(w)
		return
	}
	active, err := strconv.ParseBool(body.Get("active"))
	if err != nil {
		UnprocessableEntityError("active must be true or false").Write(w)
		return
	}
	if err := s.catalog.SetProjectActive(r.Context(), body.Get("id"), active); err != nil {
		s.writeError(w, r, err, applog.OpUpdate)
		return
	}
	msg := "Project archived"
	if active {
		msg = "Project reactivated"
	}
	s.catalogChanged(w, r, msg)
}

// catalogChanged answers a catalog mutation with the refreshed project list.
func (s *Server) catalogChanged(w http.ResponseWriter, r *http.Request, msg string) {
	tree, err := s.catalog.Tree(r.Context())
	if err != nil {
		s.writeError(w, r, err, applog.OpList)
		return
	}
	s.render(w, r, "project_list", projectsPage{Nav: "projects", Clients: tree}, NewHTMXResponse().
		TriggerCatalogChanged().
		TriggerFormReset().
		TriggerSuccessNotification(msg))
}
