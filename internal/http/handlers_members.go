package http

import (
	"net/http"
	"net/url"

	"forum/internal/core"
	"forum/internal/services"
)

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.svc.Directory.ListMembers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(members).Write(w)
}

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var in services.NewMember
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeError(w, r, err)
		return
	}
	in.ID = sanitizeInput(in.ID)
	in.Name = sanitizeInput(in.Name)

	m, err := s.svc.Directory.CreateMember(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Created("/api/members/" + url.PathEscape(m.ID)).JSON(m).Write(w)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Directory.GetMember(r.Context(), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(m).Write(w)
}

// handleUpdateMember applies a partial update. Aggregate fields are admin overrides.
func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	var patch core.MemberPatch
	if err := decodeJSON(w, r, &patch, false); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Directory.UpdateMember(r.Context(), pathID(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(m).Write(w)
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Directory.DeleteMember(r.Context(), pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
