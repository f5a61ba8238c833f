package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lexiguard/lexiguard/internal/agent"
	"github.com/lexiguard/lexiguard/internal/service"
	"github.com/lexiguard/lexiguard/pkg/log"
)

const (
	maxBodyBytes    = 1 << 20
	operationalText = "LexiGuard AI API is operational."
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
}

type chatRequest struct {
	Query   string        `json:"query" validate:"required,max=32768"`
	History []historyTurn `json:"history" validate:"max=100,dive"`
}

type historyTurn struct {
	Role    string `json:"role" validate:"max=32"`
	Content string `json:"content" validate:"max=32768"`
}

type chatResponse struct {
	Answer string `json:"answer"`
	Status string `json:"status"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": operationalText,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	history := make([]agent.Turn, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, agent.Turn{Role: turn.Role, Content: turn.Content})
	}

	result, err := s.backend.Ask(r.Context(), history, req.Query)
	if err != nil {
		status := service.HTTPStatus(err)
		log.Error("Chat request %s failed: status=%d err=%v", RequestID(r.Context()), status, err)
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Answer: result.Answer,
		Status: "success",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	health, err := s.backend.Health(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"error":  err.Error(),
			"health": health,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"health": health,
	})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " is too long"
	default:
		return fe.Field() + " is invalid"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
