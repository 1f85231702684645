package minigame

import (
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// TugCallbacks are the transport hooks a tug of war round emits on.
// ScoreDelta fires every broadcast tick with leftPower-rightPower;
// RoundResult fires once with the final delta and the winning side.
type TugCallbacks struct {
	ScoreDelta  func(delta int)
	RoundResult func(delta int, leftWin bool)
}

// TugOfWar is the two-team accumulation contest: players mash pull power
// onto their team's side for the game time, the heavier side survives.
// A tie goes to the right team. When the roster is odd, the odd player
// sits the round out and auto advances.
type TugOfWar struct {
	GameTime       time.Duration
	ResultDelay    time.Duration
	BroadcastEvery time.Duration

	mu          sync.Mutex
	active      bool
	players     []string
	left        []string
	right       []string
	autoAdvance []string
	leftPower   int
	rightPower  int
	startedAt   time.Time
	deadline    *time.Timer
	endSignal   *time.Timer
	ticker      *time.Ticker
	tickerDone  chan struct{}
	callbacks   TugCallbacks
	requestEnd  func()
}

// NewTugOfWar builds a contest round with the standard timings.
func NewTugOfWar() *TugOfWar {
	return &TugOfWar{
		GameTime:       30 * time.Second,
		ResultDelay:    2 * time.Second,
		BroadcastEvery: time.Second,
	}
}

// Kind will always report KindTugOfWar.
func (t *TugOfWar) Kind() Kind {
	return KindTugOfWar
}

// Active will report whether the round is still accepting pulls.
func (t *TugOfWar) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// SetRequestEnd installs the orchestrator's end callback.
func (t *TugOfWar) SetRequestEnd(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requestEnd = fn
}

// SetCallbacks installs the transport hooks. Call before Start.
func (t *TugOfWar) SetCallbacks(cb TugCallbacks) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callbacks = cb
}

// SplitTeams shuffles the players into two equal teams; with an odd
// count the leftover player auto advances. Safe to call before Start so
// the teams can be announced ahead of the round. Returns left, right and
// auto-advanced players.
func (t *TugOfWar) SplitTeams(players []string) (left, right, autoAdvance []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	shuffled := make([]string, len(players))
	for i, j := range rand.Perm(len(players)) {
		shuffled[i] = players[j]
	}
	half := len(shuffled) / 2
	t.left = shuffled[:half]
	t.right = shuffled[half : half*2]
	t.autoAdvance = shuffled[half*2:]
	return t.left, t.right, t.autoAdvance
}

// Start begins the round. If SplitTeams was not called beforehand the
// teams are drawn here.
func (t *TugOfWar) Start(players []string) {
	t.mu.Lock()
	t.active = true
	t.players = make([]string, len(players))
	copy(t.players, players)
	t.leftPower = 0
	t.rightPower = 0
	t.startedAt = time.Now()
	if len(t.left)+len(t.right)+len(t.autoAdvance) != len(players) {
		t.mu.Unlock()
		t.SplitTeams(players)
		t.mu.Lock()
	}
	t.deadline = time.AfterFunc(t.GameTime, t.onDeadline)
	t.ticker = time.NewTicker(t.BroadcastEvery)
	t.tickerDone = make(chan struct{})
	go t.broadcastLoop(t.ticker, t.tickerDone)
	log.Infof("tug of war started: %d left vs %d right, %d auto advancing", len(t.left), len(t.right), len(t.autoAdvance))
	t.mu.Unlock()
}

// HandleAction adds a player's pull power to their team. Power is clamped
// to 0..100. Pulls from an auto-advancing player are accepted but count
// toward neither side; pulls after the deadline are rejected.
func (t *TugOfWar) HandleAction(playerID string, action interface{}) bool {
	pull, ok := action.(PullAction)
	if !ok {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return false
	}
	if time.Since(t.startedAt) > t.GameTime {
		return false
	}
	power := pull.Power
	if power < 0 {
		power = 0
	} else if power > 100 {
		power = 100
	}
	switch {
	case contains(t.left, playerID):
		t.leftPower += power
	case contains(t.right, playerID):
		t.rightPower += power
	case contains(t.autoAdvance, playerID):
		// sitting this one out, the pull is a no-op
	default:
		return false
	}
	return true
}

// CheckEndCondition never ends a tug round early: the timer owns the end,
// and a one-sided disconnect is settled by ForceResult instead.
func (t *TugOfWar) CheckEndCondition(alivePlayers []string) (bool, string) {
	return false, ""
}

// End closes the round: the team with more accumulated power survives, a
// tie hands the win to the right team, and auto-advancing players always
// survive.
func (t *TugOfWar) End() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimersLocked()
	t.active = false
	delta := t.leftPower - t.rightPower
	leftWin := delta > 0
	winners, losers := t.right, t.left
	if leftWin {
		winners, losers = t.left, t.right
	}
	survivors := make([]string, 0, len(winners)+len(t.autoAdvance))
	survivors = append(survivors, winners...)
	survivors = append(survivors, t.autoAdvance...)
	eliminated := make([]string, 0, len(losers))
	eliminated = append(eliminated, losers...)
	if t.callbacks.RoundResult != nil {
		go t.callbacks.RoundResult(delta, leftWin)
	}
	log.Infof("tug of war ended: left %d vs right %d (leftWin=%t)", t.leftPower, t.rightPower, leftWin)
	return Result{
		Kind:       KindTugOfWar,
		Survivors:  survivors,
		Eliminated: eliminated,
		Data: map[string]interface{}{
			"leftPower":  t.leftPower,
			"rightPower": t.rightPower,
			"leftWin":    leftWin,
		},
	}
}

// ForceResult closes the round against an externally shrunken alive set.
func (t *TugOfWar) ForceResult(alivePlayers []string) Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimersLocked()
	t.active = false
	survivors, eliminated := forcedSplit(t.players, alivePlayers)
	return Result{
		Kind:       KindTugOfWar,
		Survivors:  survivors,
		Eliminated: eliminated,
		Data: map[string]interface{}{
			"leftPower":  t.leftPower,
			"rightPower": t.rightPower,
			"forced":     true,
		},
	}
}

func (t *TugOfWar) broadcastLoop(ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			t.mu.Lock()
			delta := t.leftPower - t.rightPower
			cb := t.callbacks.ScoreDelta
			t.mu.Unlock()
			if cb != nil {
				cb(delta)
			}
		}
	}
}

func (t *TugOfWar) onDeadline() {
	t.mu.Lock()
	if !t.active || t.endSignal != nil {
		t.mu.Unlock()
		return
	}
	fn := t.requestEnd
	if fn != nil {
		t.endSignal = time.AfterFunc(t.ResultDelay, fn)
	}
	t.mu.Unlock()
}

func (t *TugOfWar) stopTimersLocked() {
	if t.deadline != nil {
		t.deadline.Stop()
		t.deadline = nil
	}
	if t.endSignal != nil {
		t.endSignal.Stop()
		t.endSignal = nil
	}
	if t.ticker != nil {
		t.ticker.Stop()
		t.ticker = nil
	}
	if t.tickerDone != nil {
		close(t.tickerDone)
		t.tickerDone = nil
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
