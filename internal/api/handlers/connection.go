package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/api/dto"
	"github.com/hugh/tubelink/internal/api/middleware"
	"github.com/hugh/tubelink/internal/connection"
	"github.com/hugh/tubelink/internal/store"
	"github.com/hugh/tubelink/internal/tabsync"
)

// EventKeepAlive is the interval of SSE comment frames on idle streams.
const EventKeepAlive = 25 * time.Second

// ConnectionService is the connection state machine as seen by the API.
type ConnectionService interface {
	Connector
	Status(ctx context.Context, userID uuid.UUID) (*connection.Status, error)
	Disconnect(ctx context.Context, userID uuid.UUID) error
	Sync(ctx context.Context, userID uuid.UUID) (*connection.Result, error)
}

var _ ConnectionService = (*connection.Service)(nil)

type ConnectionHandler struct {
	service ConnectionService
	hub     *tabsync.Hub
	logger  *slog.Logger
}

func NewConnectionHandler(service ConnectionService, hub *tabsync.Hub, logger *slog.Logger) *ConnectionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionHandler{service: service, hub: hub, logger: logger}
}

func (h *ConnectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Status(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewConnectionResponse(*st))
}

func (h *ConnectionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Connect(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewConnectionResult(res))
}

func (h *ConnectionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.service.Disconnect(r.Context(), userID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewConnectionResponse(connection.Status{State: connection.Disconnected}))
}

func (h *ConnectionHandler) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Sync(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewConnectionResult(res))
}

// Events streams the user's tab-sync messages as server-sent events. The
// first event is the current state.
func (h *ConnectionHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Streaming unsupported"})
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	initial, err := h.initialState(ctx, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	messages, err := h.hub.Subscribe(ctx, userID)
	if err != nil {
		h.logger.Error("tabsync subscribe failed", "user_id", userID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Event stream unavailable"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, tabsync.Message{Origin: tabsync.ServerOrigin, State: initial, SentAt: time.Now()}); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(EventKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-messages:
			if !open {
				return
			}
			if err := writeEvent(w, msg); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// initialState prefers the mirrored state and falls back to the database.
func (h *ConnectionHandler) initialState(ctx context.Context, userID uuid.UUID) (tabsync.State, error) {
	if state, ok, err := h.hub.Snapshot(ctx, userID); err == nil && ok {
		return state, nil
	} else if err != nil {
		h.logger.Warn("tabsync snapshot failed", "user_id", userID, "error", err)
	}

	st, err := h.service.Status(ctx, userID)
	if err != nil {
		return tabsync.State{}, err
	}
	return tabsync.State{
		Connected:   st.State == connection.Connected,
		ChannelName: st.ChannelName,
	}, nil
}

func writeEvent(w http.ResponseWriter, msg tabsync.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
	return err
}

func (h *ConnectionHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, connection.ErrNotLinked):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "No linked YouTube account. Sign in with Google first."})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
	default:
		h.logger.Error("connection request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Connection request failed"})
	}
}
