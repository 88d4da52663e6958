package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"gameday-live-service/internal/app"
	"gameday-live-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.LiveService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.LiveService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// refusedPayload tells the UI why an answer was not admitted so it can show
// "too late" or "already answered" instead of a generic error.
type refusedPayload struct {
	QuestionID string `json:"questionId"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// refusalCode maps the engine's admission errors onto stable UI codes.
// An empty code means the error is not a routine refusal.
func refusalCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrWindowExpired):
		return "too_late"
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return "already_answered"
	case errors.Is(err, domain.ErrQuestionNotOpen):
		return "not_open"
	case errors.Is(err, domain.ErrOptionNotFound):
		return "unknown_option"
	case errors.Is(err, domain.ErrQuestionNotFound):
		return "unknown_question"
	}
	return ""
}

// ServeWS upgrades HTTP requests to websockets and wires them into the live
// question use cases: snapshot on join, answers inbound, snapshots pushed on
// every lifecycle change.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	userID := r.URL.Query().Get("userId")
	if eventID == "" || userID == "" {
		http.Error(w, "missing eventId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	joined, err := h.service.Join(r.Context(), eventID, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), eventID, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	defer h.service.Leave(r.Context(), eventID, userID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "snapshot", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: joined}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			snap, err := h.service.SubmitAnswer(r.Context(), eventID, userID, payload.QuestionID, payload.OptionID)
			if err != nil {
				if code := refusalCode(err); code != "" {
					send <- outboundMessage[any]{Type: "refused", Payload: refusedPayload{
						QuestionID: payload.QuestionID,
						Code:       code,
						Message:    err.Error(),
					}}
					continue
				}
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "snapshot", Payload: snap}
		case "reset":
			if err := h.service.Reset(r.Context(), eventID, userID); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
