package collab

// Registry tracks which connections belong to which room. It is plain
// bookkeeping with no locking: every method is called from the hub's
// dispatch goroutine only, which is what serializes access to room member
// sets and presence fields.
type Registry struct {
	rooms map[string]map[string]*Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[string]*Client)}
}

// Join places the client in roomID, creating the room on demand and removing
// the client from any room it previously occupied. It returns the previous
// room id ("" when there was none) and whether membership changed; joining
// the room the client is already in changes nothing.
func (r *Registry) Join(client *Client, roomID string) (string, bool) {
	previous := client.participant.Room
	if previous == roomID {
		return "", false
	}
	if previous != "" {
		r.remove(client, previous)
	}

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		r.rooms[roomID] = members
	}
	members[client.participant.ConnectionID] = client
	client.participant.Room = roomID
	return previous, true
}

// Leave removes the client from roomID. Leaving a room the client is not in
// is a no-op; the return value reports whether membership actually changed.
func (r *Registry) Leave(client *Client, roomID string) bool {
	members, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := members[client.participant.ConnectionID]; !ok {
		return false
	}
	r.remove(client, roomID)
	client.participant.Room = ""
	return true
}

// MembersOf returns the current members of roomID. The slice is a snapshot;
// an unknown room yields an empty slice.
func (r *Registry) MembersOf(roomID string) []*Client {
	members := r.rooms[roomID]
	snapshot := make([]*Client, 0, len(members))
	for _, client := range members {
		snapshot = append(snapshot, client)
	}
	return snapshot
}

// RoomCount reports how many rooms currently have members.
func (r *Registry) RoomCount() int {
	return len(r.rooms)
}

func (r *Registry) remove(client *Client, roomID string) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, client.participant.ConnectionID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}
