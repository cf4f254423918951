package realtime

// roomIndex keeps the bidirectional client<->room mapping. Rooms are created
// on first join and dropped as soon as the last member leaves; a client is a
// member of at most one room. Callers synchronize; every method runs under
// the hub mutex.
type roomIndex struct {
	rooms    map[string]map[string]struct{}
	byClient map[string]string
}

func newRoomIndex() *roomIndex {
	return &roomIndex{
		rooms:    make(map[string]map[string]struct{}),
		byClient: make(map[string]string),
	}
}

// join moves the client into roomID, leaving any previous room first. It
// returns the previous room id ("" if none).
func (x *roomIndex) join(clientID, roomID string) string {
	prev := x.byClient[clientID]
	if prev == roomID {
		return prev
	}
	if prev != "" {
		x.leave(clientID, prev)
	}

	members, ok := x.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		x.rooms[roomID] = members
	}
	members[clientID] = struct{}{}
	x.byClient[clientID] = roomID
	return prev
}

// leave removes the client from roomID and deletes the room once empty.
// Returns false when the client was not a member.
func (x *roomIndex) leave(clientID, roomID string) bool {
	if x.byClient[clientID] != roomID {
		return false
	}
	delete(x.byClient, clientID)

	members, ok := x.rooms[roomID]
	if !ok {
		return false
	}
	delete(members, clientID)
	if len(members) == 0 {
		delete(x.rooms, roomID)
	}
	return true
}

// members returns a snapshot of the room's member ids, never a live view.
func (x *roomIndex) members(roomID string) []string {
	members, ok := x.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

func (x *roomIndex) roomOf(clientID string) (string, bool) {
	room, ok := x.byClient[clientID]
	return room, ok
}

func (x *roomIndex) roomCount() int {
	return len(x.rooms)
}
