package http

import (
	"errors"
	"io"
	"net/http"

	"smartfinance/internal/guard"
	applog "smartfinance/internal/log"
)

const maxFrameBytes = 5 << 20

func (s *Server) handleGuardStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newGuardView(s.guard))
}

// handleGuardArm sets the armed flag from "armed", or toggles when absent.
func (s *Server) handleGuardArm(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if !p.Has("armed") {
		s.guard.Toggle()
	} else {
		armed, err := p.Bool("armed")
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "armed must be true or false")
			return
		}
		if armed {
			s.guard.Arm()
		} else {
			s.guard.Disarm()
		}
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Guard state changed", "armed", s.guard.Armed())
	writeJSON(w, http.StatusOK, newGuardView(s.guard))
}

func (s *Server) handleGuardFrame(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFrameBytes)
	if err := r.ParseMultipartForm(maxFrameBytes); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "no file provided")
		return
	}
	f, hdr, err := r.FormFile("frame")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "no file provided")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "could not read frame")
		return
	}

	ev, recorded, err := s.guard.SubmitFrame(r.Context(), guard.Frame{Name: hdr.Filename, Data: data})
	switch {
	case errors.Is(err, guard.ErrDisarmed):
		s.writeError(w, r, http.StatusConflict, "guard is disarmed")
		return
	case errors.Is(err, guard.ErrEmptyFrame):
		s.writeError(w, r, http.StatusBadRequest, "no file provided")
		return
	case err != nil:
		applog.FromContext(r.Context()).WithComponent(applog.ComponentGuard).ErrorContext(r.Context(), "Frame analysis failed", applog.FieldError, err)
		s.writeError(w, r, http.StatusBadGateway, "frame analysis failed")
		return
	}

	if !recorded {
		writeJSON(w, http.StatusOK, frameView{Alert: false, Summary: guard.NoThreat})
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentGuard).InfoContext(r.Context(), "Guard event recorded",
		"event_id", ev.ID, "message", ev.Message)
	writeJSON(w, http.StatusOK, frameView{Alert: true, Summary: ev.Message, Event: &ev})
}
