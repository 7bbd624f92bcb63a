package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"blog-lab/domain/event"
	"blog-lab/hub"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// wireEvent is the envelope every stream frame travels in. The payload is
// the domain event itself; Kind tells the client how to decode it.
type wireEvent struct {
	Kind    event.Kind        `json:"kind"`
	Payload event.DomainEvent `json:"payload"`
}

// StreamHandler upgrades HTTP connections into the two live surfaces:
// the reviewers' notification stream and the per-post comment rooms.
type StreamHandler struct {
	log           *slog.Logger
	notifications *hub.NotificationHub
	rooms         *hub.RoomRegistry
	upgrader      websocket.Upgrader
}

func NewStreamHandler(log *slog.Logger, notifications *hub.NotificationHub, rooms *hub.RoomRegistry) *StreamHandler {
	return &StreamHandler{
		log:           log,
		notifications: notifications,
		rooms:         rooms,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *StreamHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/notifications", h.Notifications)
	r.Get("/blogs/{id}/comments", h.CommentRoom)
	return r
}

// Notifications is the reviewers' push stream: pending snapshot first,
// then live workflow events and heartbeats until disconnect or eviction.
func (h *StreamHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	caller := IdentityFrom(r.Context())

	sess, err := h.notifications.Connect(r.Context(), caller.UserID, caller.Role)
	if err != nil {
		renderError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.notifications.Disconnect(sess.ID)
		return
	}

	go h.discardReads(conn, func() { h.notifications.Disconnect(sess.ID) })
	h.writePump(conn, sess)
}

type commentFrame struct {
	Content string `json:"content"`
}

// CommentRoom joins the caller to the post's room. Frames from the client
// are comment submissions; frames to the client are the room's replay and
// live events. Both directions share the session's lifetime.
func (h *StreamHandler) CommentRoom(w http.ResponseWriter, r *http.Request) {
	caller := IdentityFrom(r.Context())
	id, err := postID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	sess, err := h.rooms.Join(r.Context(), id, caller.UserID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.rooms.Leave(id, sess.ID)
		return
	}

	go h.readComments(conn, sess, id)
	h.writePump(conn, sess)
}

// writePump is the single writer of the socket. It drains the session
// queue until the session is closed by a hub (eviction, shutdown) or the
// peer goes away.
func (h *StreamHandler) writePump(conn *websocket.Conn, sess *hub.Session) {
	defer conn.Close()

	for {
		select {
		case <-sess.Done():
			deadline := time.Now().Add(writeTimeout)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"), deadline)
			return
		case evt := <-sess.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(wireEvent{Kind: evt.EventKind(), Payload: evt}); err != nil {
				h.log.Debug("Stream write failed", "connection", sess.ID.String(), "err", err)
				return
			}
		}
	}
}

// readComments feeds inbound frames into the room. A rejected comment
// becomes an error notice on the sender's own stream; the connection
// stays up.
func (h *StreamHandler) readComments(conn *websocket.Conn, sess *hub.Session, postID uuid.UUID) {
	defer h.rooms.Leave(postID, sess.ID)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame commentFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			_ = sess.Consume(event.ErrorNotice{Message: "malformed frame", At: time.Now().UTC()})
			continue
		}
		if _, err := h.rooms.Post(context.Background(), postID, sess.UserID, frame.Content); err != nil {
			_ = sess.Consume(event.ErrorNotice{Message: err.Error(), At: time.Now().UTC()})
		}
	}
}

// discardReads keeps processing control frames on a one-way stream and
// tears the session down when the peer disconnects.
func (h *StreamHandler) discardReads(conn *websocket.Conn, onClose func()) {
	defer onClose()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
