package minigame

import (
	"fmt"
)

// Kind identifies a concrete mini game variant.
type Kind string

const (
	KindDalgona  Kind = "DALGONA"
	KindTugOfWar Kind = "TUG_OF_WAR"
	KindRedLight Kind = "RED_LIGHT_GREEN_LIGHT"
)

// AllKinds lists every playable variant in announcement order.
var AllKinds = []Kind{KindDalgona, KindTugOfWar, KindRedLight}

// Result is what a finished round reports back to the match orchestrator.
type Result struct {
	Kind       Kind
	Survivors  []string
	Eliminated []string
	Data       map[string]interface{}
}

// Game is the contract every mini game variant implements. A variant is
// owned by exactly one round: Start begins it, actions flow in through
// HandleAction, and exactly one of End or ForceResult closes it out.
type Game interface {
	Kind() Kind
	Active() bool

	// Start begins the round for the given alive players.
	Start(players []string)

	// HandleAction applies a player action; false means rejected.
	HandleAction(playerID string, action interface{}) bool

	// SetRequestEnd installs the orchestrator callback the variant uses to
	// ask for the round to be closed after its own deadline or early-finish
	// logic fires. Must be set before Start.
	SetRequestEnd(fn func())

	// End finishes the round normally, stops any outstanding timers and
	// computes the result from the submissions seen so far.
	End() Result

	// CheckEndCondition reports whether a shrunken alive set (usually after
	// a disconnect) already finishes the round, with a reason when it does.
	CheckEndCondition(alivePlayers []string) (bool, string)

	// ForceResult finalizes the round for the given alive set without a
	// normal end: everyone who entered the round but is no longer alive is
	// eliminated. Outstanding timers are stopped.
	ForceResult(alivePlayers []string) Result
}

// New maps a kind to its constructor.
func New(k Kind) (Game, error) {
	switch k {
	case KindDalgona:
		return NewDalgona(), nil
	case KindTugOfWar:
		return NewTugOfWar(), nil
	case KindRedLight:
		return NewRedLight(), nil
	}
	return nil, fmt.Errorf("unsupported game kind '%s'", k)
}

// OutcomeAction is a terminal success/failure report for variants where
// each player submits exactly one outcome.
type OutcomeAction struct {
	Success     bool
	TimeTakenMs int64
}

// PullAction contributes pull power to the acting player's team.
type PullAction struct {
	Power int
}

func forcedSplit(players, alivePlayers []string) (survivors, eliminated []string) {
	alive := make(map[string]bool, len(alivePlayers))
	for _, id := range alivePlayers {
		alive[id] = true
	}
	survivors = make([]string, 0, len(alivePlayers))
	eliminated = make([]string, 0, len(players))
	for _, id := range players {
		if alive[id] {
			survivors = append(survivors, id)
		} else {
			eliminated = append(eliminated, id)
		}
	}
	return survivors, eliminated
}
