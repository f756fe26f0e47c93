package http

import (
	"net/http"
	"net/url"

	"forum/internal/core"
)

func (s *Server) handleListNotices(w http.ResponseWriter, r *http.Request) {
	notices, err := s.svc.Board.ListNotices(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(notices).Write(w)
}

func (s *Server) handleCreateNotice(w http.ResponseWriter, r *http.Request) {
	var n core.Notice
	if err := decodeJSON(w, r, &n, false); err != nil {
		writeError(w, r, err)
		return
	}
	n.Title = sanitizeInput(n.Title)
	n.Author = sanitizeInput(n.Author)

	created, err := s.svc.Board.CreateNotice(r.Context(), n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Created("/api/notices/" + url.PathEscape(created.ID)).JSON(created).Write(w)
}

func (s *Server) handleUpdateNotice(w http.ResponseWriter, r *http.Request) {
	var n core.Notice
	if err := decodeJSON(w, r, &n, false); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.svc.Board.UpdateNotice(r.Context(), pathID(r), n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(updated).Write(w)
}

func (s *Server) handleDeleteNotice(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Board.DeleteNotice(r.Context(), pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.Board.ListProjects(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(projects).Write(w)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var p core.ProjectUpdate
	if err := decodeJSON(w, r, &p, false); err != nil {
		writeError(w, r, err)
		return
	}
	p.Title = sanitizeInput(p.Title)

	created, err := s.svc.Board.CreateProject(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Created("/api/projects/" + url.PathEscape(created.ID)).JSON(created).Write(w)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var p core.ProjectUpdate
	if err := decodeJSON(w, r, &p, false); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.svc.Board.UpdateProject(r.Context(), pathID(r), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(updated).Write(w)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Board.DeleteProject(r.Context(), pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
