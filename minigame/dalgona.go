package minigame

import (
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Shape is the dalgona candy outline a round carves.
type Shape string

const (
	ShapeCircle   Shape = "CIRCLE"
	ShapeTriangle Shape = "TRIANGLE"
	ShapeStar     Shape = "STAR"
	ShapeUmbrella Shape = "UMBRELLA"
)

var dalgonaShapes = []Shape{ShapeCircle, ShapeTriangle, ShapeStar, ShapeUmbrella}

type dalgonaSubmission struct {
	success     bool
	timeTakenMs int64
}

// Dalgona is the single-shot carving challenge: every player gets one
// attempt inside the time limit, success keeps you alive, failure or
// silence eliminates you.
type Dalgona struct {
	TimeLimit   time.Duration
	ResultDelay time.Duration

	mu         sync.Mutex
	active     bool
	players    []string
	results    map[string]dalgonaSubmission
	shape      Shape
	startedAt  time.Time
	deadline   *time.Timer
	endSignal  *time.Timer
	requestEnd func()
}

// NewDalgona builds a carving round with the standard timings.
func NewDalgona() *Dalgona {
	return &Dalgona{
		TimeLimit:   60 * time.Second,
		ResultDelay: 2 * time.Second,
		results:     map[string]dalgonaSubmission{},
	}
}

// Kind will always report KindDalgona.
func (d *Dalgona) Kind() Kind {
	return KindDalgona
}

// Active will report whether the round is still accepting submissions.
func (d *Dalgona) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Shape returns the outline chosen for this round.
func (d *Dalgona) Shape() Shape {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shape
}

// SetRequestEnd installs the orchestrator's end callback.
func (d *Dalgona) SetRequestEnd(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requestEnd = fn
}

// Start begins the round for the given players, picks a shape and arms
// the deadline timer.
func (d *Dalgona) Start(players []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = true
	d.players = make([]string, len(players))
	copy(d.players, players)
	d.results = map[string]dalgonaSubmission{}
	d.shape = dalgonaShapes[rand.Intn(len(dalgonaShapes))]
	d.startedAt = time.Now()
	d.deadline = time.AfterFunc(d.TimeLimit, d.onDeadline)
	log.Infof("dalgona started with %d players, shape %s", len(players), d.shape)
}

// HandleAction records a player's single carving outcome. Second attempts
// are rejected; an attempt after the time limit counts as a failure.
func (d *Dalgona) HandleAction(playerID string, action interface{}) bool {
	outcome, ok := action.(OutcomeAction)
	if !ok {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return false
	}
	if !d.isPlayerLocked(playerID) {
		return false
	}
	if _, dup := d.results[playerID]; dup {
		log.Warnf("dalgona: duplicate submission from %s rejected", playerID)
		return false
	}
	success := outcome.Success
	if time.Since(d.startedAt) > d.TimeLimit {
		success = false
	}
	d.results[playerID] = dalgonaSubmission{success: success, timeTakenMs: outcome.TimeTakenMs}
	log.Debugf("dalgona: %s submitted success=%t (%d/%d in)", playerID, success, len(d.results), len(d.players))
	if len(d.results) >= len(d.players) {
		d.scheduleEndLocked()
	}
	return true
}

// CheckEndCondition finishes the round once one or zero players remain.
func (d *Dalgona) CheckEndCondition(alivePlayers []string) (bool, string) {
	if len(alivePlayers) <= 1 {
		return true, "not enough players left to continue"
	}
	return false, ""
}

// End closes the round: whoever submitted a success survives, everyone
// else is eliminated.
func (d *Dalgona) End() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopTimersLocked()
	d.active = false
	survivors := make([]string, 0, len(d.players))
	eliminated := make([]string, 0, len(d.players))
	for _, id := range d.players {
		if sub, ok := d.results[id]; ok && sub.success {
			survivors = append(survivors, id)
		} else {
			eliminated = append(eliminated, id)
		}
	}
	return Result{
		Kind:       KindDalgona,
		Survivors:  survivors,
		Eliminated: eliminated,
		Data: map[string]interface{}{
			"shape": string(d.shape),
		},
	}
}

// ForceResult closes the round against an externally shrunken alive set.
func (d *Dalgona) ForceResult(alivePlayers []string) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopTimersLocked()
	d.active = false
	survivors, eliminated := forcedSplit(d.players, alivePlayers)
	return Result{
		Kind:       KindDalgona,
		Survivors:  survivors,
		Eliminated: eliminated,
		Data: map[string]interface{}{
			"shape":  string(d.shape),
			"forced": true,
		},
	}
}

func (d *Dalgona) onDeadline() {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	for _, id := range d.players {
		if _, ok := d.results[id]; !ok {
			d.results[id] = dalgonaSubmission{success: false}
		}
	}
	log.Info("dalgona time limit reached, missing submissions marked failed")
	d.scheduleEndLocked()
	d.mu.Unlock()
}

// scheduleEndLocked asks the orchestrator to close the round after the
// result display delay. Never calls requestEnd synchronously so the
// orchestrator's lock is free when the callback runs.
func (d *Dalgona) scheduleEndLocked() {
	if d.endSignal != nil {
		return
	}
	fn := d.requestEnd
	if fn == nil {
		return
	}
	d.endSignal = time.AfterFunc(d.ResultDelay, fn)
}

func (d *Dalgona) isPlayerLocked(playerID string) bool {
	for _, id := range d.players {
		if id == playerID {
			return true
		}
	}
	return false
}

func (d *Dalgona) stopTimersLocked() {
	if d.deadline != nil {
		d.deadline.Stop()
		d.deadline = nil
	}
	if d.endSignal != nil {
		d.endSignal.Stop()
		d.endSignal = nil
	}
}
