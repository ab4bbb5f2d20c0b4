package collab

// Client->server event names.
const (
	EventJoinRoom        = "joinRoom"
	EventLeaveRoom       = "leaveRoom"
	EventCodeChange      = "codeChange"
	EventCursorMove      = "cursorMove"
	EventSelectionChange = "selectionChange"
	EventTyping          = "typing"
)

// Server->client event names.
const (
	EventRoomUsers  = "roomUsers"
	EventUserJoined = "userJoined"
	EventUserLeft   = "userLeft"
	EventUserTyping = "userTyping"
)

// clientEnvelope is the single frame shape accepted from clients. Which
// fields are meaningful depends on Event.
type clientEnvelope struct {
	Event     string     `json:"event"`
	Room      string     `json:"room,omitempty"`
	Code      string     `json:"code,omitempty"`
	User      string     `json:"user,omitempty"`
	Position  *Position  `json:"position,omitempty"`
	Selection *Selection `json:"selection,omitempty"`
	IsTyping  bool       `json:"isTyping,omitempty"`
}

// ParticipantView is the presence snapshot of one room member as sent to
// clients. The document body is never part of it.
type ParticipantView struct {
	ConnectionID string     `json:"connectionId"`
	Username     string     `json:"username"`
	AvatarURL    string     `json:"avatarUrl,omitempty"`
	Color        string     `json:"color"`
	Cursor       *Position  `json:"cursor,omitempty"`
	Selection    *Selection `json:"selection,omitempty"`
	IsTyping     bool       `json:"isTyping"`
}

type roomUsersEvent struct {
	Event string            `json:"event"`
	Users []ParticipantView `json:"users"`
}

type userJoinedEvent struct {
	Event string          `json:"event"`
	User  ParticipantView `json:"user"`
}

type userLeftEvent struct {
	Event        string `json:"event"`
	ConnectionID string `json:"connectionId"`
	Username     string `json:"username"`
}

type codeChangeEvent struct {
	Event    string `json:"event"`
	Code     string `json:"code"`
	User     string `json:"user"`
	SocketID string `json:"socketId"`
}

type cursorMoveEvent struct {
	Event        string   `json:"event"`
	ConnectionID string   `json:"connectionId"`
	Username     string   `json:"username"`
	Position     Position `json:"position"`
	Color        string   `json:"color"`
}

type selectionChangeEvent struct {
	Event        string    `json:"event"`
	ConnectionID string    `json:"connectionId"`
	Username     string    `json:"username"`
	Selection    Selection `json:"selection"`
	Color        string    `json:"color"`
}

type userTypingEvent struct {
	Event        string `json:"event"`
	ConnectionID string `json:"connectionId"`
	Username     string `json:"username"`
	IsTyping     bool   `json:"isTyping"`
}
