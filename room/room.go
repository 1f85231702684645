package room

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Status is the room's coarse state as announced to joining players.
type Status string

const (
	StatusWaiting Status = "WAITING"
	StatusBooting Status = "BOOTING"
	StatusPlaying Status = "PLAYING"
)

// DefaultMaxPlayers caps the lobby size.
const DefaultMaxPlayers = 30

var (
	ErrRoomFull      = errors.New("room is full")
	ErrRoomNotOpen   = errors.New("room is not accepting players")
	ErrAlreadyJoined = errors.New("client already joined")
	ErrNotJoined     = errors.New("client has not joined")
)

// Room is the single lobby every client plays in. It tracks join order,
// the ready set used to launch a match, and fans broadcasts out to the
// joined clients.
type Room struct {
	maxPlayers int
	mtx        sync.RWMutex
	status     Status
	order      []string
	clients    map[string]*Client
	ready      map[string]bool
}

// New returns an open room holding at most maxPlayers clients; a
// non-positive cap falls back to DefaultMaxPlayers.
func New(maxPlayers int) *Room {
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}
	return &Room{
		maxPlayers: maxPlayers,
		status:     StatusWaiting,
		clients:    map[string]*Client{},
		ready:      map[string]bool{},
	}
}

// Status returns the room's current state.
func (r *Room) Status() Status {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.status
}

// Add joins a client to the room. Only a waiting room with a free seat
// accepts joins.
func (r *Room) Add(c *Client) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.status != StatusWaiting {
		return ErrRoomNotOpen
	}
	if _, ok := r.clients[c.ID()]; ok {
		return ErrAlreadyJoined
	}
	if len(r.order) >= r.maxPlayers {
		return ErrRoomFull
	}
	r.order = append(r.order, c.ID())
	r.clients[c.ID()] = c
	log.Infof("%s joined the room (%d/%d)", c.Name(), len(r.order), r.maxPlayers)
	return nil
}

// Remove takes a client out of the room and clears their ready mark.
func (r *Room) Remove(id string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if _, ok := r.clients[id]; !ok {
		return ErrNotJoined
	}
	delete(r.clients, id)
	delete(r.ready, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Has reports whether the client is in the room.
func (r *Room) Has(id string) bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	_, ok := r.clients[id]
	return ok
}

// Count returns how many clients are in the room.
func (r *Room) Count() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return len(r.order)
}

// IsFull reports whether the room has no free seats left.
func (r *Room) IsFull() bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return len(r.order) >= r.maxPlayers
}

// SetReady marks a client ready to start. The bool reports whether this
// call changed anything; a repeat mark is a no-op.
func (r *Room) SetReady(id string) (bool, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if _, ok := r.clients[id]; !ok {
		return false, ErrNotJoined
	}
	if r.ready[id] {
		return false, nil
	}
	r.ready[id] = true
	return true, nil
}

// AllReady reports whether every joined client has marked ready.
func (r *Room) AllReady() bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return len(r.order) > 0 && len(r.ready) >= len(r.order)
}

// ReadyCount returns how many clients have marked ready.
func (r *Room) ReadyCount() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return len(r.ready)
}

// StartBooting moves a waiting room into the match launch handshake.
func (r *Room) StartBooting() error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.status != StatusWaiting {
		return ErrRoomNotOpen
	}
	r.status = StatusBooting
	return nil
}

// StartPlaying moves the room into a running match.
func (r *Room) StartPlaying() {
	r.mtx.Lock()
	r.status = StatusPlaying
	r.mtx.Unlock()
}

// EndGame reopens the room and clears the ready set.
func (r *Room) EndGame() {
	r.mtx.Lock()
	r.status = StatusWaiting
	r.ready = map[string]bool{}
	r.mtx.Unlock()
}

// PlayerIndex returns a client's join-order seat, or -1 when absent.
func (r *Room) PlayerIndex(id string) int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	for i, v := range r.order {
		if v == id {
			return i
		}
	}
	return -1
}

// ClientIDs returns the joined clients' ids in join order.
func (r *Room) ClientIDs() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// PlayerNames returns the joined clients' names in join order.
func (r *Room) PlayerNames() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.clients[id].Name())
	}
	return out
}

// Client looks a joined client up by id.
func (r *Room) Client(id string) (*Client, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Broadcast sends a message to every joined client, skipping any
// excluded ids.
func (r *Room) Broadcast(b []byte, exclude ...string) {
	skip := map[string]bool{}
	for _, id := range exclude {
		skip[id] = true
	}
	r.mtx.RLock()
	targets := make([]*Client, 0, len(r.order))
	for _, id := range r.order {
		if !skip[id] {
			targets = append(targets, r.clients[id])
		}
	}
	r.mtx.RUnlock()
	for _, c := range targets {
		c.Send(b)
	}
}

// SendTo delivers a message to one joined client.
func (r *Room) SendTo(id string, b []byte) {
	if c, ok := r.Client(id); ok {
		c.Send(b)
	}
}
