package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hackgods/clinic-chat-scheduling/internal/chat"
	redisclient "github.com/hackgods/clinic-chat-scheduling/internal/redis"
)

const (
	maxChatBody     = 16 << 10
	maxMessageRunes = 2000
)

// chatHandler loads the session's conversation, runs one engine turn and
// persists the result. Turns on the same session never overlap.
type chatHandler struct {
	engine   ChatEngine
	store    chat.Store
	sessions redisclient.Locker
	logger   *slog.Logger
	now      func() time.Time
}

func (h *chatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if utf8.RuneCountInString(req.Message) > maxMessageRunes {
		writeError(w, http.StatusBadRequest, "message_too_long", fmt.Sprintf("message must have at most %d characters", maxMessageRunes))
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = chat.NewSessionID()
	}

	var resp chat.Response
	err := h.sessions.WithSlotLock(r.Context(), redisclient.SessionKey(sessionID), func(ctx context.Context) error {
		conv, err := chat.LoadOrCreate(ctx, h.store, sessionID, h.now())
		if err != nil {
			return fmt.Errorf("load conversation: %w", err)
		}

		resp = h.engine.ProcessMessage(ctx, req.Message, conv)

		if err := h.store.Save(ctx, conv); err != nil {
			return fmt.Errorf("save conversation: %w", err)
		}
		return nil
	})
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "session_busy", "a previous message for this session is still being processed")
		return
	case err != nil:
		h.logger.Error("chat turn failed", "session", sessionID, "request_id", GetRequestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not process message")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{SessionID: sessionID, Response: resp})
}
