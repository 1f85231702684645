package arena

import (
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/happyfacehappyface/squidgame-server/minigame"
)

// State is the coarse lifecycle of a match.
type State string

// Phase is the fine-grained step of an in-progress match.
type Phase string

const (
	StateWaiting    State = "WAITING"
	StateInProgress State = "IN_PROGRESS"
	StateFinished   State = "FINISHED"

	PhaseRest     Phase = "REST"
	PhasePrepare  Phase = "PREPARE"
	PhaseMiniGame Phase = "MINIGAME"
	PhaseResult   Phase = "RESULT"
)

const (
	timerRest    = "rest"
	timerCeiling = "ceiling"
	timerResult  = "result"
	timerReset   = "reset"
)

var (
	ErrMatchNotWaiting   = errors.New("match is not waiting for players")
	ErrMatchNotRunning   = errors.New("match is not in progress")
	ErrNotEnoughPlayers  = errors.New("need at least two players to start")
	ErrWrongPhase        = errors.New("operation not valid in the current phase")
	ErrUnknownPlayer     = errors.New("player is not part of this match")
	ErrPlayerEliminated  = errors.New("player has been eliminated")
	ErrAlreadyReady      = errors.New("player already acknowledged ready")
	ErrActionRejected    = errors.New("action rejected by the current mini game")
	ErrNoActiveMiniGame  = errors.New("no mini game is running")
)

// Hooks are the outward notifications an Arena emits. They are invoked
// outside the arena lock, after the mutation that produced them, in
// emission order. Any hook may be nil.
type Hooks struct {
	PhaseChanged func(state State, phase Phase, round int)
	RoundReady   func(kind minigame.Kind, round int)
	RoundEnded   func(result minigame.Result, round int, forced bool)
	MatchEnded   func(winnerID string)
	MatchReset   func()
	Eliminated   func(playerID string, round int)
}

// Arena orchestrates one match: the lifecycle state machine, the roster,
// round selection and the handoff into and out of each mini game. One
// mutex serializes every mutation; hooks and mini game calls that could
// re-enter are deferred until the lock is released.
type Arena struct {
	RestDuration time.Duration
	ResultDelay  time.Duration
	ResetDelay   time.Duration
	CeilingLimit time.Duration

	mu       sync.Mutex
	state    State
	phase    Phase
	round    int
	roster   *Roster
	staged   minigame.Game
	current  minigame.Game
	ready    map[string]bool
	selector *minigame.Selector
	hooks    Hooks
	epoch    int
	timers   map[string]*time.Timer
	pending []func()
	// skipRest collapses the REST step after a force-resolved round: the
	// next phase entered and broadcast is PREPARE directly.
	skipRest bool
}

// New returns a waiting arena with the standard timings.
func New(hooks Hooks) *Arena {
	return &Arena{
		RestDuration: 3 * time.Second,
		ResultDelay:  5 * time.Second,
		ResetDelay:   5 * time.Second,
		CeilingLimit: 120 * time.Second,
		state:        StateWaiting,
		phase:        PhaseRest,
		roster:       NewRoster(),
		ready:        map[string]bool{},
		selector:     minigame.NewSelector(minigame.AllKinds),
		hooks:        hooks,
		timers:       map[string]*time.Timer{},
	}
}

// Snapshot is a point-in-time view of the match for status reporting.
type Snapshot struct {
	State      State
	Phase      Phase
	Round      int
	Players    int
	AliveCount int
}

// Snapshot returns the current match view.
func (a *Arena) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		State:      a.state,
		Phase:      a.phase,
		Round:      a.round,
		Players:    a.roster.Count(),
		AliveCount: a.roster.AliveCount(),
	}
}

// AliveIDs returns the alive participants in join order.
func (a *Arena) AliveIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.roster.AliveIDs()
}

// Participants returns a copy of every participant's standing.
func (a *Arena) Participants() []Participant {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Participant, 0, a.roster.Count())
	for _, p := range a.roster.All() {
		out = append(out, *p)
	}
	return out
}

// CurrentMiniGame returns the variant the match is announcing or playing:
// the staged game during PREPARE, the running game during MINIGAME, nil
// otherwise.
func (a *Arena) CurrentMiniGame() minigame.Game {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.phase {
	case PhasePrepare:
		return a.staged
	case PhaseMiniGame:
		return a.current
	}
	return nil
}

// BeginMatch starts a match for the given players. Only a waiting arena
// with at least two players can begin.
func (a *Arena) BeginMatch(ids, names []string) error {
	a.mu.Lock()
	if a.state != StateWaiting {
		a.mu.Unlock()
		return ErrMatchNotWaiting
	}
	if len(ids) < 2 {
		a.mu.Unlock()
		return ErrNotEnoughPlayers
	}
	a.state = StateInProgress
	a.round = 0
	a.skipRest = false
	a.roster.InitializeOrdered(ids, names)
	a.selector.Reset()
	log.Infof("match started with %d players", len(ids))
	a.enterRestLocked()
	a.unlockAndFlush()
	return nil
}

// AcknowledgeReady records a player's ready acknowledgement for the
// announced round. The bool reports whether this acknowledgement
// completed the alive set and started the mini game.
func (a *Arena) AcknowledgeReady(playerID string) (bool, error) {
	a.mu.Lock()
	if a.state != StateInProgress {
		a.mu.Unlock()
		return false, ErrMatchNotRunning
	}
	if a.phase != PhasePrepare {
		a.mu.Unlock()
		return false, ErrWrongPhase
	}
	p, ok := a.roster.Get(playerID)
	if !ok {
		a.mu.Unlock()
		return false, ErrUnknownPlayer
	}
	if p.Status != StatusAlive {
		a.mu.Unlock()
		return false, ErrPlayerEliminated
	}
	if a.ready[playerID] {
		a.mu.Unlock()
		return false, ErrAlreadyReady
	}
	a.ready[playerID] = true
	started := a.maybeAllReadyLocked()
	a.unlockAndFlush()
	return started, nil
}

// SubmitAction routes a player action into the running mini game.
func (a *Arena) SubmitAction(playerID string, action interface{}) error {
	a.mu.Lock()
	if a.state != StateInProgress {
		a.mu.Unlock()
		return ErrMatchNotRunning
	}
	if a.phase != PhaseMiniGame || a.current == nil {
		a.mu.Unlock()
		return ErrNoActiveMiniGame
	}
	if !a.roster.IsAlive(playerID) {
		a.mu.Unlock()
		return ErrPlayerEliminated
	}
	g := a.current
	a.mu.Unlock()
	if !g.HandleAction(playerID, action) {
		return ErrActionRejected
	}
	return nil
}

// EndCurrentRound closes the running mini game normally. Variants call
// this through their installed end callback; it is a no-op outside the
// MINIGAME phase.
func (a *Arena) EndCurrentRound() {
	a.mu.Lock()
	if a.state == StateInProgress && a.phase == PhaseMiniGame && a.current != nil {
		result := a.current.End()
		a.finalizeRoundLocked(result, false)
	}
	a.unlockAndFlush()
}

// HandleDisconnect eliminates a departing player mid-match and settles
// whatever the departure decides: a round that can no longer continue is
// force-resolved, a prepare gate shrinks to the remaining alive set, and
// a match with at most one player left finishes.
func (a *Arena) HandleDisconnect(playerID string) {
	a.mu.Lock()
	if a.state != StateInProgress {
		a.mu.Unlock()
		return
	}
	if !a.roster.MarkEliminated(playerID, a.round) {
		a.mu.Unlock()
		return
	}
	round := a.round
	log.Infof("player %s left mid match, eliminated in round %d", playerID, round)
	a.emitLocked(func(h Hooks) {
		if h.Eliminated != nil {
			h.Eliminated(playerID, round)
		}
	})
	delete(a.ready, playerID)
	alive := a.roster.AliveIDs()
	switch a.phase {
	case PhaseMiniGame:
		if a.current != nil {
			if ended, reason := a.current.CheckEndCondition(alive); ended {
				log.Infof("force ending round %d: %s", a.round, reason)
				result := a.current.ForceResult(alive)
				a.skipRest = true
				a.finalizeRoundLocked(result, true)
			}
		}
	case PhasePrepare:
		if len(alive) <= 1 {
			a.finishMatchLocked()
		} else {
			a.maybeAllReadyLocked()
		}
	default:
		if len(alive) <= 1 {
			a.finishMatchLocked()
		}
	}
	a.unlockAndFlush()
}

// Reset returns a finished arena to waiting immediately, without waiting
// for the scheduled reset timer.
func (a *Arena) Reset() {
	a.mu.Lock()
	a.resetLocked()
	a.unlockAndFlush()
}

func (a *Arena) enterRestLocked() {
	a.phase = PhaseRest
	a.emitPhaseLocked()
	a.scheduleLocked(timerRest, a.RestDuration, a.enterPrepareLocked)
}

func (a *Arena) enterPrepareLocked() {
	a.round++
	a.ready = map[string]bool{}
	kind := a.selector.Next()
	g, err := minigame.New(kind)
	if err != nil {
		log.Errorf("unable to create mini game: %s", err)
		a.finishMatchLocked()
		return
	}
	g.SetRequestEnd(a.EndCurrentRound)
	a.staged = g
	a.phase = PhasePrepare
	log.Infof("round %d prepared: %s", a.round, kind)
	a.emitPhaseLocked()
}

// maybeAllReadyLocked starts the mini game once every alive player has
// acknowledged. Acknowledgements from since-eliminated players do not
// count toward the gate.
func (a *Arena) maybeAllReadyLocked() bool {
	if a.phase != PhasePrepare || a.staged == nil {
		return false
	}
	alive := a.roster.AliveIDs()
	if len(alive) == 0 {
		return false
	}
	for _, id := range alive {
		if !a.ready[id] {
			return false
		}
	}
	a.ready = map[string]bool{}
	kind := a.staged.Kind()
	round := a.round
	a.emitLocked(func(h Hooks) {
		if h.RoundReady != nil {
			h.RoundReady(kind, round)
		}
	})
	a.startMiniGameLocked(alive)
	return true
}

func (a *Arena) startMiniGameLocked(alive []string) {
	a.current = a.staged
	a.staged = nil
	a.phase = PhaseMiniGame
	a.emitPhaseLocked()
	a.scheduleLocked(timerCeiling, a.CeilingLimit, func() {
		if a.phase == PhaseMiniGame && a.current != nil {
			log.Warnf("round %d hit the duration ceiling, forcing the end", a.round)
			result := a.current.End()
			a.finalizeRoundLocked(result, true)
		}
	})
	g := a.current
	players := make([]string, len(alive))
	copy(players, alive)
	a.emitLocked(func(Hooks) { g.Start(players) })
}

func (a *Arena) finalizeRoundLocked(result minigame.Result, forced bool) {
	a.cancelLocked(timerCeiling)
	a.current = nil
	round := a.round
	for _, id := range result.Eliminated {
		if a.roster.MarkEliminated(id, round) {
			id := id
			a.emitLocked(func(h Hooks) {
				if h.Eliminated != nil {
					h.Eliminated(id, round)
				}
			})
		}
	}
	a.phase = PhaseResult
	a.emitPhaseLocked()
	a.emitLocked(func(h Hooks) {
		if h.RoundEnded != nil {
			h.RoundEnded(result, round, forced)
		}
	})
	log.Infof("round %d ended: %d survived, %d eliminated", round, len(result.Survivors), len(result.Eliminated))
	a.scheduleLocked(timerResult, a.ResultDelay, a.advanceLocked)
}

func (a *Arena) advanceLocked() {
	if a.roster.AliveCount() <= 1 {
		a.finishMatchLocked()
		return
	}
	if a.skipRest {
		a.skipRest = false
		a.enterPrepareLocked()
		return
	}
	a.enterRestLocked()
}

func (a *Arena) finishMatchLocked() {
	a.cancelAllLocked()
	a.staged = nil
	a.current = nil
	a.state = StateFinished
	a.phase = PhaseResult
	winner := ""
	if alive := a.roster.AliveIDs(); len(alive) == 1 {
		winner = alive[0]
	}
	a.emitPhaseLocked()
	a.emitLocked(func(h Hooks) {
		if h.MatchEnded != nil {
			h.MatchEnded(winner)
		}
	})
	if winner == "" {
		log.Info("match finished with no winner")
	} else {
		log.Infof("match finished, winner %s", winner)
	}
	a.scheduleLocked(timerReset, a.ResetDelay, a.resetLocked)
}

func (a *Arena) resetLocked() {
	a.cancelAllLocked()
	a.epoch++
	a.state = StateWaiting
	a.phase = PhaseRest
	a.round = 0
	a.skipRest = false
	a.staged = nil
	a.current = nil
	a.ready = map[string]bool{}
	a.roster.Clear()
	a.selector.Reset()
	log.Info("arena reset, waiting for players")
	a.emitLocked(func(h Hooks) {
		if h.MatchReset != nil {
			h.MatchReset()
		}
	})
}

// scheduleLocked arms a named timer, replacing any pending timer of the
// same name. A fired timer re-checks that it is still the one on record
// and that the arena has not been reset since it was armed.
func (a *Arena) scheduleLocked(name string, d time.Duration, fn func()) {
	a.cancelLocked(name)
	epoch := a.epoch
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		a.mu.Lock()
		if a.epoch != epoch || a.timers[name] != t {
			a.mu.Unlock()
			return
		}
		delete(a.timers, name)
		fn()
		a.unlockAndFlush()
	})
	a.timers[name] = t
}

func (a *Arena) cancelLocked(name string) {
	if t, ok := a.timers[name]; ok {
		t.Stop()
		delete(a.timers, name)
	}
}

func (a *Arena) cancelAllLocked() {
	for name, t := range a.timers {
		t.Stop()
		delete(a.timers, name)
	}
}

func (a *Arena) emitPhaseLocked() {
	state, phase, round := a.state, a.phase, a.round
	a.emitLocked(func(h Hooks) {
		if h.PhaseChanged != nil {
			h.PhaseChanged(state, phase, round)
		}
	})
}

func (a *Arena) emitLocked(fn func(Hooks)) {
	h := a.hooks
	a.pending = append(a.pending, func() { fn(h) })
}

// unlockAndFlush releases the arena lock and then runs the deferred
// emissions in order. Hooks must never be invoked under the lock: they
// may call straight back into the arena.
func (a *Arena) unlockAndFlush() {
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}
