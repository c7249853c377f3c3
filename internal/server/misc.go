package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/abhisek/conjugar/internal/auth"
	"github.com/abhisek/conjugar/internal/tense"
)

var validate = validator.New()

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

type readinessCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type readinessResponse struct {
	Status string                    `json:"status"`
	Checks map[string]readinessCheck `json:"checks"`
}

func (s *Server) handleTenses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, tense.All())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON in request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	id, err := s.auth.Authenticate(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Contraseña incorrecta")
		return
	case errors.Is(err, auth.ErrUsernameRequired), errors.Is(err, auth.ErrUsernameTooLong):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	case err != nil:
		s.log.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "login failed")
		return
	}
	s.log.Info("user logged in", "username", id.Username)
	writeJSON(w, http.StatusOK, id)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "conjugar"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := readinessResponse{Status: "ready", Checks: map[string]readinessCheck{}}
	status := http.StatusOK
	if err := s.sets.Ping(ctx); err != nil {
		resp.Checks["store"] = readinessCheck{Status: "failed", Message: err.Error()}
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	} else {
		resp.Checks["store"] = readinessCheck{Status: "ok"}
	}
	writeJSON(w, status, resp)
}
