package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"smartfinance/internal/analysis"
	applog "smartfinance/internal/log"
	"smartfinance/internal/services"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	writeJSON(w, http.StatusOK, newDashboardView(s.ledger.Dashboard(r.Context(), sid)))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.ledger.AddTransaction(r.Context(), sid, p.FormInput())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to add transaction",
			applog.FieldSessionID, sid, applog.FieldError, err)
		s.writeError(w, r, http.StatusInternalServerError, "could not add transaction")
		return
	}

	status := http.StatusCreated
	if res.Ignored {
		status = http.StatusOK
	}
	writeJSON(w, status, newAddResultView(res))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	id := mux.Vars(r)["id"]

	found, err := s.ledger.DeleteTransaction(r.Context(), sid, id)
	switch {
	case err != nil:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to delete transaction",
			applog.FieldSessionID, sid, applog.FieldTransactionID, id, applog.FieldError, err)
		s.writeError(w, r, http.StatusInternalServerError, "could not delete transaction")
	case !found:
		s.writeError(w, r, http.StatusNotFound, "transaction not found")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	id := mux.Vars(r)["id"]

	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	necessary, err := p.Bool("necessary")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "necessary must be true or false")
		return
	}

	err = s.ledger.SubmitFeedback(r.Context(), sid, id, necessary, p.Get("reason"))
	switch {
	case errors.Is(err, services.ErrTransactionNotFound):
		s.writeError(w, r, http.StatusNotFound, "transaction not found")
	case err != nil:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to submit feedback",
			applog.FieldTransactionID, id, applog.FieldError, err)
		s.writeError(w, r, http.StatusInternalServerError, "could not submit feedback")
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "expected multipart form with a csv file")
		return
	}
	f, hdr, err := r.FormFile("csv")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "missing csv file")
		return
	}
	defer f.Close()

	res, err := s.ledger.ImportStatement(r.Context(), sid, hdr.Filename, f)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Statement import failed",
			applog.FieldSessionID, sid, applog.FieldOperation, applog.OpImport, applog.FieldError, err)
		if errors.Is(err, analysis.ErrNotConfigured) {
			s.writeError(w, r, http.StatusServiceUnavailable, "analysis service not configured")
			return
		}
		s.writeError(w, r, http.StatusBadGateway, "analysis service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, newImportView(res))
}

func (s *Server) handleSelectCategory(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(p.Get("name"))
	if name == "" {
		s.writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	st := s.ledger.SelectCategory(r.Context(), sid, name)
	writeJSON(w, http.StatusOK, map[string]string{"selectedCategory": st.Selected})
}
