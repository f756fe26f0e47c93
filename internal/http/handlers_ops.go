package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"

	"forum/internal/assistant"
	"forum/internal/core"
	"forum/internal/log"
	"forum/internal/services"
	"forum/internal/sheets"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Directory.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(sum).Write(w)
}

type auditResponse struct {
	Members      int                `json:"members"`
	DriftMembers int                `json:"driftMembers"`
	Reports      []core.DriftReport `json:"reports"`
}

func (s *Server) handleAuditAll(w http.ResponseWriter, r *http.Request) {
	reports, err := s.svc.Auditor.AuditAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := auditResponse{Members: len(reports), Reports: reports}
	if resp.Reports == nil {
		resp.Reports = []core.DriftReport{}
	}
	for _, rep := range reports {
		if !rep.Consistent() {
			resp.DriftMembers++
		}
	}
	NewResponse().JSON(resp).Write(w)
}

func (s *Server) handleAuditMember(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Auditor.AuditMember(r.Context(), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(rep).Write(w)
}

// handleImportSheets accepts an optional body overriding the configured spreadsheet and range.
func (s *Server) handleImportSheets(w http.ResponseWriter, r *http.Request) {
	if s.svc.Importer == nil {
		writeError(w, r, fmt.Errorf("%w: import disabled", sheets.ErrNotConfigured))
		return
	}
	var req services.ImportRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	req.SpreadsheetID = sanitizeInput(req.SpreadsheetID)
	req.Range = sanitizeInput(req.Range)

	report, err := s.svc.Importer.ImportMembers(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(report).Write(w)
}

func newOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// handleGoogleAuthURL starts the consent flow. The state is remembered for a short while.
func (s *Server) handleGoogleAuthURL(w http.ResponseWriter, r *http.Request) {
	if s.svc.Consent == nil || !s.svc.Consent.ConsentEnabled() {
		writeError(w, r, fmt.Errorf("%w: OAuth client not configured", sheets.ErrNotConfigured))
		return
	}
	state, err := newOAuthState()
	if err != nil {
		writeError(w, r, fmt.Errorf("generate oauth state: %w", err))
		return
	}
	authURL, err := s.svc.Consent.AuthCodeURL(state)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.oauthStates.Set(state, struct{}{})
	NewResponse().JSON(map[string]string{"url": authURL}).Write(w)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.svc.Consent == nil || !s.svc.Consent.ConsentEnabled() {
		writeError(w, r, fmt.Errorf("%w: OAuth client not configured", sheets.ErrNotConfigured))
		return
	}
	q := r.URL.Query()
	if msg := q.Get("error"); msg != "" {
		BadRequestError("authorization denied: " + sanitizeInput(msg)).Write(w)
		return
	}
	state := q.Get("state")
	if _, ok := s.oauthStates.Get(state); !ok || state == "" {
		BadRequestError("unknown or expired state").Write(w)
		return
	}
	s.oauthStates.Delete(state)

	code := q.Get("code")
	if code == "" {
		BadRequestError("missing authorization code").Write(w)
		return
	}
	if err := s.svc.Consent.Exchange(r.Context(), code); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentSheets).ErrorContext(r.Context(),
			"OAuth exchange failed", log.FieldError, err)
		ErrorResponse(http.StatusBadGateway, log.ErrorTypeNetwork, "token exchange failed").Write(w)
		return
	}
	NewResponse().JSON(map[string]string{"status": "connected"}).Write(w)
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	if s.svc.Assistant == nil {
		writeError(w, r, assistant.ErrUnavailable)
		return
	}
	var q assistant.Question
	if err := decodeJSON(w, r, &q, false); err != nil {
		writeError(w, r, err)
		return
	}
	ans, err := s.svc.Assistant.Ask(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(ans).Write(w)
}
