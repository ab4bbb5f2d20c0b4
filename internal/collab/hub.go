package collab

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Hub is the broadcast router. A single Run goroutine consumes every
// register, unregister and client event in arrival order and performs the
// fan-out to completion before the next event, so room membership and
// presence fields never see concurrent access. Delivery to each recipient is
// fire-and-forget: a slow or dying connection drops frames instead of
// stalling the dispatcher or its room.
type Hub struct {
	registry   *Registry
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	logger     *zap.Logger
}

type inboundFrame struct {
	sender   *Client
	envelope clientEnvelope
}

// NewHub constructs a hub. Run must be started before clients attach.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		registry:   NewRegistry(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame, 64),
		logger:     logger,
	}
}

// Run dispatches events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.logger.Debug("connection established",
				zap.String("connection_id", client.participant.ConnectionID),
				zap.String("username", client.participant.DisplayName()))
		case client := <-h.unregister:
			h.handleDisconnect(client)
		case frame := <-h.inbound:
			h.dispatch(frame.sender, frame.envelope)
		}
	}
}

func (h *Hub) dispatch(sender *Client, envelope clientEnvelope) {
	// Inbound frames and the unregister travel on separate channels, so a
	// frame the connection queued before its read pump exited can arrive
	// after the disconnect was handled. Acting on one would re-register a
	// connection whose send channel is already closed.
	if sender.closed {
		return
	}
	switch envelope.Event {
	case EventJoinRoom:
		h.handleJoin(sender, envelope.Room)
	case EventLeaveRoom:
		h.handleLeave(sender, envelope.Room)
	case EventCodeChange:
		h.handleCodeChange(sender, envelope)
	case EventCursorMove:
		h.handleCursorMove(sender, envelope)
	case EventSelectionChange:
		h.handleSelectionChange(sender, envelope)
	case EventTyping:
		h.handleTyping(sender, envelope)
	default:
		h.logger.Debug("ignoring unknown event",
			zap.String("event", envelope.Event),
			zap.String("connection_id", sender.participant.ConnectionID))
	}
}

func (h *Hub) handleJoin(sender *Client, roomID string) {
	if roomID == "" {
		roomID = DefaultRoom
	}

	previous, joined := h.registry.Join(sender, roomID)
	if !joined {
		return
	}
	if previous != "" {
		h.broadcastToRoom(previous, sender, userLeftEvent{
			Event:        EventUserLeft,
			ConnectionID: sender.participant.ConnectionID,
			Username:     sender.participant.DisplayName(),
		})
	}

	members := h.registry.MembersOf(roomID)
	views := make([]ParticipantView, 0, len(members))
	for _, member := range members {
		views = append(views, member.participant.View())
	}
	sender.deliver(h.encode(roomUsersEvent{Event: EventRoomUsers, Users: views}))

	h.broadcastToRoom(roomID, sender, userJoinedEvent{
		Event: EventUserJoined,
		User:  sender.participant.View(),
	})

	h.logger.Info("client joined room",
		zap.String("room", roomID),
		zap.String("connection_id", sender.participant.ConnectionID),
		zap.Int("members", len(members)))
}

func (h *Hub) handleLeave(sender *Client, roomID string) {
	if roomID == "" {
		roomID = DefaultRoom
	}
	if !h.registry.Leave(sender, roomID) {
		return
	}
	h.broadcastToRoom(roomID, sender, userLeftEvent{
		Event:        EventUserLeft,
		ConnectionID: sender.participant.ConnectionID,
		Username:     sender.participant.DisplayName(),
	})
}

func (h *Hub) handleDisconnect(client *Client) {
	if client.closed {
		return
	}
	client.closed = true
	room := client.participant.Room
	if room != "" && h.registry.Leave(client, room) {
		h.broadcastToRoom(room, client, userLeftEvent{
			Event:        EventUserLeft,
			ConnectionID: client.participant.ConnectionID,
			Username:     client.participant.DisplayName(),
		})
	}
	client.close()
	h.logger.Debug("connection closed",
		zap.String("connection_id", client.participant.ConnectionID))
}

// handleCodeChange relays the full buffer to the rest of the room. The
// latest broadcast always wins; no ordering token is attached.
func (h *Hub) handleCodeChange(sender *Client, envelope clientEnvelope) {
	room := sender.participant.Room
	if room == "" {
		return
	}
	user := envelope.User
	if user == "" {
		user = sender.participant.DisplayName()
	}
	h.broadcastToRoom(room, sender, codeChangeEvent{
		Event:    EventCodeChange,
		Code:     envelope.Code,
		User:     user,
		SocketID: sender.participant.ConnectionID,
	})
}

func (h *Hub) handleCursorMove(sender *Client, envelope clientEnvelope) {
	room := sender.participant.Room
	if room == "" || envelope.Position == nil {
		return
	}
	sender.participant.Cursor = envelope.Position
	h.broadcastToRoom(room, sender, cursorMoveEvent{
		Event:        EventCursorMove,
		ConnectionID: sender.participant.ConnectionID,
		Username:     sender.participant.DisplayName(),
		Position:     *envelope.Position,
		Color:        sender.participant.Color,
	})
}

func (h *Hub) handleSelectionChange(sender *Client, envelope clientEnvelope) {
	room := sender.participant.Room
	if room == "" || envelope.Selection == nil {
		return
	}
	sender.participant.Selection = envelope.Selection
	h.broadcastToRoom(room, sender, selectionChangeEvent{
		Event:        EventSelectionChange,
		ConnectionID: sender.participant.ConnectionID,
		Username:     sender.participant.DisplayName(),
		Selection:    *envelope.Selection,
		Color:        sender.participant.Color,
	})
}

// handleTyping stores and relays the flag verbatim. The auto-clear timer
// lives on the sending client; the server never expires typing state on its
// own.
func (h *Hub) handleTyping(sender *Client, envelope clientEnvelope) {
	room := sender.participant.Room
	if room == "" {
		return
	}
	sender.participant.IsTyping = envelope.IsTyping
	h.broadcastToRoom(room, sender, userTypingEvent{
		Event:        EventUserTyping,
		ConnectionID: sender.participant.ConnectionID,
		Username:     sender.participant.DisplayName(),
		IsTyping:     envelope.IsTyping,
	})
}

// broadcastToRoom fans a payload out to every room member except the sender.
func (h *Hub) broadcastToRoom(roomID string, sender *Client, payload any) {
	data := h.encode(payload)
	if data == nil {
		return
	}
	for _, member := range h.registry.MembersOf(roomID) {
		if sender != nil && member.participant.ConnectionID == sender.participant.ConnectionID {
			continue
		}
		member.deliver(data)
	}
}

func (h *Hub) encode(payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode event", zap.Error(err))
		return nil
	}
	return data
}
