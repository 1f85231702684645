package minigame

import (
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"
)

// Selector picks the variant for each round. It remembers which kinds have
// been played this cycle and only picks among the rest, so no kind sits out
// for more than one full rotation. When every kind has been played the set
// is cleared before picking, which can hand back the kind that just
// finished; that window is accepted (see DESIGN.md).
type Selector struct {
	kinds  []Kind
	played map[Kind]bool
	rnd    *rand.Rand
}

// NewSelector builds a selector over the given kinds.
func NewSelector(kinds []Kind) *Selector {
	s := &Selector{
		kinds:  make([]Kind, len(kinds)),
		played: make(map[Kind]bool),
		rnd:    rand.New(rand.NewSource(time.Now().UTC().UnixNano())),
	}
	copy(s.kinds, kinds)
	return s
}

// Next picks the next round's kind and marks it as played.
func (s *Selector) Next() Kind {
	remaining := s.remaining()
	if len(remaining) == 0 {
		s.played = make(map[Kind]bool)
		remaining = s.remaining()
	}
	k := remaining[s.rnd.Intn(len(remaining))]
	s.played[k] = true
	log.Debugf("selected mini game '%s' (%d/%d played this cycle)", k, len(s.played), len(s.kinds))
	return k
}

// Reset clears the played set, e.g. when a match resets to waiting.
func (s *Selector) Reset() {
	s.played = make(map[Kind]bool)
}

// PlayedCount returns how many kinds the current cycle has used.
func (s *Selector) PlayedCount() int {
	return len(s.played)
}

func (s *Selector) remaining() []Kind {
	out := make([]Kind, 0, len(s.kinds))
	for _, k := range s.kinds {
		if !s.played[k] {
			out = append(out, k)
		}
	}
	return out
}
