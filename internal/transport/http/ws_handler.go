package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-gateway/internal/app"
	"quiz-gateway/internal/domain"
	"quiz-gateway/internal/identity"
)

// wsHandler is the live attempt channel: the shell sends control messages
// (start/select/advance/submit/abandon/dismissTimeUp/retryAutoSubmit) and
// receives
// snapshot, review and error events.
type wsHandler struct {
	attempts *app.AttemptService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func newWSHandler(attempts *app.AttemptService, log *zap.Logger) *wsHandler {
	return &wsHandler{
		attempts: attempts,
		log:      log,
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

type startPayload struct {
	QuizID string `json:"quizId"`
}

type selectPayload struct {
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

func (h *wsHandler) serve(w http.ResponseWriter, r *http.Request, claims identity.Claims) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	userID := claims.UserID
	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	var pumpCancel func()
	var pumpDone chan struct{}

	stopPump := func() {
		if pumpCancel == nil {
			return
		}
		pumpCancel()
		<-pumpDone
		pumpCancel = nil
	}

	startPump := func() {
		updates, cancel, err := h.attempts.Subscribe(userID)
		if err != nil {
			return
		}
		done := make(chan struct{})
		pumpCancel, pumpDone = cancel, done
		go func() {
			defer close(done)
			for snap := range updates {
				select {
				case send <- outboundMessage[any]{Type: "snapshot", Payload: snap}:
				case <-closeSignals:
					return
				}
			}
		}()
	}

	sendError := func(err error) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}

	sendReview := func() {
		review, err := h.attempts.Review(userID)
		if err != nil {
			sendError(err)
			return
		}
		send <- outboundMessage[any]{Type: "review", Payload: review}
	}

	// a reconnecting shell resumes its live attempt
	if _, err := h.attempts.Snapshot(userID); err == nil {
		startPump()
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError(errors.New("invalid start payload"))
				continue
			}
			stopPump()
			if _, err := h.attempts.Start(r.Context(), userID, payload.QuizID); err != nil {
				sendError(err)
				continue
			}
			startPump()
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError(errors.New("invalid select payload"))
				continue
			}
			if _, err := h.attempts.Select(userID, payload.QuestionID, payload.OptionID); err != nil {
				sendError(err)
			}
		case "advance":
			snap, err := h.attempts.Advance(r.Context(), userID)
			if err != nil {
				sendError(err)
				continue
			}
			if snap.Phase == domain.PhaseReview {
				sendReview()
			}
		case "submit":
			snap, err := h.attempts.Submit(r.Context(), userID)
			if err != nil {
				sendError(err)
				continue
			}
			if snap.Phase == domain.PhaseReview {
				sendReview()
			}
		case "abandon":
			h.attempts.Abandon(userID)
			stopPump()
			send <- outboundMessage[any]{Type: "abandoned", Payload: struct{}{}}
		case "dismissTimeUp":
			snap, err := h.attempts.DismissTimeUp(userID)
			if err != nil {
				sendError(err)
				continue
			}
			if snap.Phase == domain.PhaseReview {
				sendReview()
			}
		case "retryAutoSubmit":
			if _, err := h.attempts.RetryAutoSubmit(r.Context(), userID); err != nil {
				sendError(err)
			}
		case "review":
			sendReview()
		default:
			sendError(errors.New("unsupported message type"))
		}
	}

	close(closeSignals)
	stopPump()
	close(send)
	<-writerDone
}
