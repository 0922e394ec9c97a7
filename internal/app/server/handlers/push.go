package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/changhyu/cargoro-sub000/internal/core/domain"
	"github.com/changhyu/cargoro-sub000/internal/core/services"
	"github.com/changhyu/cargoro-sub000/internal/hub"
)

// PushHandler exposes the server-side push and introspection API used by
// the backend services: directed notifications, room and global broadcasts,
// and read-only views over the registry and rooms.
type PushHandler struct {
	log           *slog.Logger
	hub           *hub.Hub
	bcast         *hub.Broadcaster
	notifications *services.NotificationService
	chat          *services.ChatService
	historyLimit  int
}

func NewPushHandler(
	log *slog.Logger,
	h *hub.Hub,
	bcast *hub.Broadcaster,
	notifications *services.NotificationService,
	chat *services.ChatService,
	historyLimit int,
) *PushHandler {
	return &PushHandler{
		log:           log.With(slog.String("component", "push_handler")),
		hub:           h,
		bcast:         bcast,
		notifications: notifications,
		chat:          chat,
		historyLimit:  historyLimit,
	}
}

type roomPushRequest struct {
	Event           string          `json:"event"`
	Data            json.RawMessage `json:"data"`
	ExcludeClientID string          `json:"excludeClientId,omitempty"`
}

type broadcastRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// PushToClient delivers the request body as a notification envelope to one
// connected client. 404 means the client has no live connection here.
func (h *PushHandler) PushToClient(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientId")
	if clientID == "" {
		http.Error(w, "client id required", http.StatusBadRequest)
		return
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil || len(payload) == 0 || !json.Valid(payload) {
		http.Error(w, "valid JSON body required", http.StatusBadRequest)
		return
	}

	if err := h.notifications.Push(r.Context(), clientID, payload); err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			http.Error(w, "client not connected", http.StatusNotFound)
			return
		}
		h.log.ErrorContext(r.Context(), "push handler - push to client - delivery failed",
			"client_id", clientID, "err", err)
		http.Error(w, "delivery failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

// PushToRoom broadcasts an event to all members of a room, optionally
// excluding one client. Delivery is best-effort, so the response only
// confirms the fan-out ran.
func (h *PushHandler) PushToRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	if roomID == "" {
		http.Error(w, "room id required", http.StatusBadRequest)
		return
	}
	var req roomPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Event == "" {
		req.Event = domain.TypeNotification
	}

	env := domain.Envelope{Type: req.Event, Data: req.Data}
	h.bcast.BroadcastToRoom(r.Context(), roomID, env, req.ExcludeClientID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "broadcast",
		"room_id": roomID,
	})
}

// Broadcast sends an event to every connection on this node.
func (h *PushHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Event == "" {
		req.Event = domain.TypeNotification
	}

	env := domain.Envelope{Type: req.Event, Data: req.Data}
	h.bcast.BroadcastAll(r.Context(), env)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "broadcast",
		"recipients": h.hub.Registry().Len(),
	})
}

// Presence lists the client IDs currently connected to this node.
func (h *PushHandler) Presence(w http.ResponseWriter, r *http.Request) {
	ids := h.hub.Registry().Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(ids),
		"clients": ids,
	})
}

// Rooms lists every room that currently has at least one member.
func (h *PushHandler) Rooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.hub.Rooms().RoomIDs()
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(rooms),
		"rooms": rooms,
	})
}

// RoomMembers lists the members of one room. An unknown room is just an
// empty room, not an error.
func (h *PushHandler) RoomMembers(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	if roomID == "" {
		http.Error(w, "room id required", http.StatusBadRequest)
		return
	}
	members := h.hub.Rooms().Members(roomID)
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id": roomID,
		"count":   len(members),
		"members": members,
	})
}

// RoomMessages returns the recent persisted history of a room.
func (h *PushHandler) RoomMessages(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	if roomID == "" {
		http.Error(w, "room id required", http.StatusBadRequest)
		return
	}
	msgs, err := h.chat.History(r.Context(), roomID, h.historyLimit)
	if err != nil {
		h.log.ErrorContext(r.Context(), "push handler - room messages - history failed",
			"room_id", roomID, "err", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id":  roomID,
		"count":    len(msgs),
		"messages": msgs,
	})
}

// KickClient force-disconnects a client and clears all of its room state.
func (h *PushHandler) KickClient(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientId")
	if clientID == "" {
		http.Error(w, "client id required", http.StatusBadRequest)
		return
	}
	if _, ok := h.hub.Registry().Lookup(clientID); !ok {
		http.Error(w, "client not connected", http.StatusNotFound)
		return
	}
	h.hub.Drop(clientID)
	h.log.InfoContext(r.Context(), "push handler - kick client - client disconnected", "client_id", clientID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
