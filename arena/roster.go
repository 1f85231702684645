package arena

// Status is a participant's life state within a match.
type Status string

const (
	StatusAlive      Status = "ALIVE"
	StatusEliminated Status = "ELIMINATED"
)

// Participant is one player's standing in the match.
type Participant struct {
	ID                string
	Name              string
	Status            Status
	EliminatedInRound int
}

// Roster tracks every participant of a match in join order. It carries no
// lock of its own: the owning Arena serializes access.
type Roster struct {
	order []string
	byID  map[string]*Participant
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{byID: map[string]*Participant{}}
}

// InitializeOrdered replaces the roster with the given players in the
// given order, all alive.
func (r *Roster) InitializeOrdered(ids, names []string) {
	r.order = make([]string, len(ids))
	copy(r.order, ids)
	r.byID = make(map[string]*Participant, len(ids))
	for i, id := range ids {
		name := id
		if i < len(names) {
			name = names[i]
		}
		r.byID[id] = &Participant{ID: id, Name: name, Status: StatusAlive}
	}
}

// Count returns the total number of participants.
func (r *Roster) Count() int {
	return len(r.order)
}

// AliveCount returns how many participants are still alive.
func (r *Roster) AliveCount() int {
	n := 0
	for _, id := range r.order {
		if r.byID[id].Status == StatusAlive {
			n++
		}
	}
	return n
}

// AliveIDs returns the alive participants in join order.
func (r *Roster) AliveIDs() []string {
	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if r.byID[id].Status == StatusAlive {
			out = append(out, id)
		}
	}
	return out
}

// Get looks a participant up by id.
func (r *Roster) Get(id string) (*Participant, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// IsAlive reports whether the given participant exists and is alive.
func (r *Roster) IsAlive(id string) bool {
	p, ok := r.byID[id]
	return ok && p.Status == StatusAlive
}

// MarkEliminated moves a participant to eliminated, recording the round.
// Repeat calls keep the first elimination round; an elimination never
// reverts within a match.
func (r *Roster) MarkEliminated(id string, round int) bool {
	p, ok := r.byID[id]
	if !ok || p.Status == StatusEliminated {
		return false
	}
	p.Status = StatusEliminated
	p.EliminatedInRound = round
	return true
}

// All returns every participant in join order.
func (r *Roster) All() []*Participant {
	out := make([]*Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Clear empties the roster.
func (r *Roster) Clear() {
	r.order = nil
	r.byID = map[string]*Participant{}
}
