package minigame

import (
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ProgressAction is a telemetry update of how far a player has moved down
// the track, 0 at the start line and 1000 at the finish.
type ProgressAction struct {
	Progress int
}

// RedLightCallbacks are the transport hooks a red light, green light
// round emits on. LightChanged fires on every toggle, PlayerResult when
// a player's run is settled, Positions on every telemetry tick with one
// entry per seat (-1 once the seat's run is settled), and RoundOver once
// when the round stops accepting input.
type RedLightCallbacks struct {
	LightChanged func(redOn bool)
	PlayerResult func(seat int, success bool)
	Positions    func(positions []int)
	RoundOver    func()
}

// RedLight is the timed movement contest: players push toward the finish
// line while the light is green and freeze while it is red. Each player
// submits one terminal outcome; anyone still unsettled at the time limit
// fails.
type RedLight struct {
	TimeLimit      time.Duration
	MinToggle      time.Duration
	MaxToggle      time.Duration
	TelemetryEvery time.Duration
	EndDelay       time.Duration

	mu         sync.Mutex
	active     bool
	players    []string
	seats      map[string]int
	positions  map[string]int
	results    map[string]bool
	redOn      bool
	startedAt  time.Time
	deadline   *time.Timer
	toggle     *time.Timer
	endSignal  *time.Timer
	ticker     *time.Ticker
	tickerDone chan struct{}
	callbacks  RedLightCallbacks
	requestEnd func()
	rnd        *rand.Rand
}

// NewRedLight builds a movement round with the standard timings.
func NewRedLight() *RedLight {
	return &RedLight{
		TimeLimit:      60 * time.Second,
		MinToggle:      3 * time.Second,
		MaxToggle:      6 * time.Second,
		TelemetryEvery: 500 * time.Millisecond,
		EndDelay:       3 * time.Second,
		rnd:            rand.New(rand.NewSource(time.Now().UTC().UnixNano())),
	}
}

// Kind will always report KindRedLight.
func (r *RedLight) Kind() Kind {
	return KindRedLight
}

// Active will report whether the round is still accepting input.
func (r *RedLight) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// RedOn reports whether the light is currently red.
func (r *RedLight) RedOn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.redOn
}

// SetRequestEnd installs the orchestrator's end callback.
func (r *RedLight) SetRequestEnd(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestEnd = fn
}

// SetCallbacks installs the transport hooks and the seat assignment used
// in Positions and PlayerResult emits. Call before Start.
func (r *RedLight) SetCallbacks(cb RedLightCallbacks, seats map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = cb
	r.seats = make(map[string]int, len(seats))
	for id, seat := range seats {
		r.seats[id] = seat
	}
}

// Start begins the round on a green light, arms the clock and the first
// toggle, and starts the telemetry ticker.
func (r *RedLight) Start(players []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = true
	r.players = make([]string, len(players))
	copy(r.players, players)
	if r.seats == nil {
		r.seats = make(map[string]int, len(players))
		for i, id := range players {
			r.seats[id] = i
		}
	}
	r.positions = make(map[string]int, len(players))
	r.results = make(map[string]bool, len(players))
	r.redOn = false
	r.startedAt = time.Now()
	r.deadline = time.AfterFunc(r.TimeLimit, r.onDeadline)
	r.armToggleLocked()
	r.ticker = time.NewTicker(r.TelemetryEvery)
	r.tickerDone = make(chan struct{})
	go r.telemetryLoop(r.ticker, r.tickerDone)
	log.Infof("red light green light started with %d players", len(players))
}

// HandleAction accepts either a ProgressAction telemetry update or a
// terminal OutcomeAction. Updates from a player whose run is already
// settled are rejected, as are second outcomes.
func (r *RedLight) HandleAction(playerID string, action interface{}) bool {
	switch a := action.(type) {
	case ProgressAction:
		return r.updatePosition(playerID, a.Progress)
	case OutcomeAction:
		return r.submitOutcome(playerID, a.Success)
	}
	return false
}

// CheckEndCondition finishes the round once one or zero unsettled
// players remain alive, or once every alive player has a settled run.
func (r *RedLight) CheckEndCondition(alivePlayers []string) (bool, string) {
	if len(alivePlayers) <= 1 {
		return true, "not enough players left to continue"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range alivePlayers {
		if _, done := r.results[id]; !done {
			return false, ""
		}
	}
	return true, "every remaining player has finished"
}

// End closes the round: settled successes survive, everyone else fails.
func (r *RedLight) End() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTimersLocked()
	r.active = false
	survivors := make([]string, 0, len(r.players))
	eliminated := make([]string, 0, len(r.players))
	for _, id := range r.players {
		if r.results[id] {
			survivors = append(survivors, id)
		} else {
			eliminated = append(eliminated, id)
		}
	}
	return Result{
		Kind:       KindRedLight,
		Survivors:  survivors,
		Eliminated: eliminated,
		Data: map[string]interface{}{
			"finished": len(r.results),
		},
	}
}

// ForceResult closes the round against an externally shrunken alive set.
func (r *RedLight) ForceResult(alivePlayers []string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTimersLocked()
	r.active = false
	survivors, eliminated := forcedSplit(r.players, alivePlayers)
	return Result{
		Kind:       KindRedLight,
		Survivors:  survivors,
		Eliminated: eliminated,
		Data: map[string]interface{}{
			"forced": true,
		},
	}
}

// PositionsSnapshot returns one entry per seat in seat order, -1 for a
// seat whose run is already settled.
func (r *RedLight) PositionsSnapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.positionsLocked()
}

func (r *RedLight) positionsLocked() []int {
	out := make([]int, len(r.players))
	for id, seat := range r.seats {
		if seat < 0 || seat >= len(out) {
			continue
		}
		if _, done := r.results[id]; done {
			out[seat] = -1
		} else {
			out[seat] = r.positions[id]
		}
	}
	return out
}

func (r *RedLight) updatePosition(playerID string, progress int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return false
	}
	if _, seated := r.seats[playerID]; !seated {
		return false
	}
	if _, done := r.results[playerID]; done {
		return false
	}
	if progress < 0 {
		progress = 0
	} else if progress > 1000 {
		progress = 1000
	}
	r.positions[playerID] = progress
	return true
}

func (r *RedLight) submitOutcome(playerID string, success bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return false
	}
	seat, seated := r.seats[playerID]
	if !seated {
		return false
	}
	if _, dup := r.results[playerID]; dup {
		log.Warnf("red light: duplicate result from %s rejected", playerID)
		return false
	}
	r.results[playerID] = success
	log.Debugf("red light: %s finished success=%t (%d/%d settled)", playerID, success, len(r.results), len(r.players))
	if cb := r.callbacks.PlayerResult; cb != nil {
		go cb(seat, success)
	}
	if len(r.results) >= len(r.players) {
		r.scheduleEndLocked()
	}
	return true
}

func (r *RedLight) onDeadline() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	var emits []func()
	for _, id := range r.players {
		if _, done := r.results[id]; done {
			continue
		}
		r.results[id] = false
		if cb := r.callbacks.PlayerResult; cb != nil {
			seat := r.seats[id]
			emits = append(emits, func() { cb(seat, false) })
		}
	}
	log.Info("red light time limit reached, unsettled players failed")
	r.scheduleEndLocked()
	r.mu.Unlock()
	for _, emit := range emits {
		emit()
	}
}

func (r *RedLight) onToggle() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.redOn = !r.redOn
	r.toggle = nil
	r.armToggleLocked()
	redOn := r.redOn
	cb := r.callbacks.LightChanged
	r.mu.Unlock()
	log.Debugf("light toggled, red=%t", redOn)
	if cb != nil {
		cb(redOn)
	}
}

// armToggleLocked arms the next toggle 3 to 6 seconds out. Refuses to
// double arm: an already pending toggle stays as is.
func (r *RedLight) armToggleLocked() {
	if r.toggle != nil {
		return
	}
	span := r.MaxToggle - r.MinToggle
	delay := r.MinToggle + time.Duration(r.rnd.Int63n(int64(span)+1))
	r.toggle = time.AfterFunc(delay, r.onToggle)
}

// scheduleEndLocked emits RoundOver, stops further input and asks the
// orchestrator to close the round after the display delay.
func (r *RedLight) scheduleEndLocked() {
	if r.endSignal != nil {
		return
	}
	if r.requestEnd != nil {
		r.endSignal = time.AfterFunc(r.EndDelay, r.requestEnd)
	}
	if cb := r.callbacks.RoundOver; cb != nil {
		go cb()
	}
}

func (r *RedLight) telemetryLoop(ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.mu.Lock()
			positions := r.positionsLocked()
			cb := r.callbacks.Positions
			r.mu.Unlock()
			if cb != nil {
				cb(positions)
			}
		}
	}
}

func (r *RedLight) stopTimersLocked() {
	if r.deadline != nil {
		r.deadline.Stop()
		r.deadline = nil
	}
	if r.toggle != nil {
		r.toggle.Stop()
		r.toggle = nil
	}
	if r.endSignal != nil {
		r.endSignal.Stop()
		r.endSignal = nil
	}
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
	if r.tickerDone != nil {
		close(r.tickerDone)
		r.tickerDone = nil
	}
}
