package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"gameday-live-service/internal/app"
	"gameday-live-service/internal/domain"
)

// OperatorHandler exposes the operator control surface: drop, lock, resolve,
// and game clock transitions. The authoring UI calling these is out of scope;
// the contract is three lifecycle commands plus the quarter/status advance.
type OperatorHandler struct {
	service *app.LiveService
}

func NewOperatorHandler(service *app.LiveService) *OperatorHandler {
	return &OperatorHandler{service: service}
}

// Register mounts the operator endpoints on the mux.
func (h *OperatorHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/operator/drop", h.handleDrop)
	mux.HandleFunc("/operator/lock", h.handleLock)
	mux.HandleFunc("/operator/resolve", h.handleResolve)
	mux.HandleFunc("/operator/quarter", h.handleQuarter)
	mux.HandleFunc("/operator/status", h.handleStatus)
}

type lifecycleRequest struct {
	EventID         string `json:"eventId"`
	QuestionID      string `json:"questionId"`
	CorrectOptionID string `json:"correctOptionId"`
}

type clockRequest struct {
	EventID string `json:"eventId"`
	Quarter string `json:"quarter"`
	Status  string `json:"status"`
}

func (h *OperatorHandler) handleDrop(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeLifecycle(w, r)
	if !ok {
		return
	}
	writeCommandResult(w, h.service.Drop(r.Context(), req.EventID, req.QuestionID))
}

func (h *OperatorHandler) handleLock(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeLifecycle(w, r)
	if !ok {
		return
	}
	writeCommandResult(w, h.service.Lock(r.Context(), req.EventID, req.QuestionID))
}

func (h *OperatorHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeLifecycle(w, r)
	if !ok {
		return
	}
	if req.CorrectOptionID == "" {
		http.Error(w, "missing correctOptionId", http.StatusBadRequest)
		return
	}
	writeCommandResult(w, h.service.Resolve(r.Context(), req.EventID, req.QuestionID, req.CorrectOptionID))
}

func (h *OperatorHandler) handleQuarter(w http.ResponseWriter, r *http.Request) {
	var req clockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.EventID == "" || req.Quarter == "" {
		http.Error(w, "missing eventId or quarter", http.StatusBadRequest)
		return
	}
	writeCommandResult(w, h.service.SetQuarter(r.Context(), req.EventID, domain.Quarter(req.Quarter)))
}

func (h *OperatorHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req clockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.EventID == "" || req.Status == "" {
		http.Error(w, "missing eventId or status", http.StatusBadRequest)
		return
	}
	writeCommandResult(w, h.service.SetStatus(r.Context(), req.EventID, domain.GameStatus(req.Status)))
}

func decodeLifecycle(w http.ResponseWriter, r *http.Request) (lifecycleRequest, bool) {
	var req lifecycleRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	if req.EventID == "" || req.QuestionID == "" {
		http.Error(w, "missing eventId or questionId", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeCommandResult translates command outcomes: conflicts are operator
// error against authoritative content, not-founds are client mistakes,
// everything else is a routine 200.
func writeCommandResult(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	case errors.Is(err, domain.ErrResolutionConflict):
		log.Printf("operator command rejected: %v", err)
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrEventNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrOptionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
