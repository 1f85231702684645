package server

import (
	log "github.com/sirupsen/logrus"

	"github.com/happyfacehappyface/squidgame-server/arena"
	"github.com/happyfacehappyface/squidgame-server/minigame"
	"github.com/happyfacehappyface/squidgame-server/protocol"
)

func (s *Server) onPhaseChanged(state arena.State, phase arena.Phase, round int) {
	log.Debugf("match %s, phase %s, round %d", state, phase, round)
	if state != arena.StateInProgress || phase != arena.PhasePrepare {
		return
	}
	// Entering PREPARE: wire the staged variant's transport callbacks and
	// announce it, then wait for the READY_SUBGAME acknowledgements.
	switch v := s.arena.CurrentMiniGame().(type) {
	case *minigame.Dalgona:
		s.announceDalgona(v)
	case *minigame.TugOfWar:
		s.announceTugOfWar(v)
	case *minigame.RedLight:
		s.announceRedLight(v)
	case nil:
	default:
		log.Errorf("round %d staged an unannouncable mini game", round)
	}
}

// onRoundReady fires once every alive player has acknowledged the
// announced round, right before the mini game starts.
func (s *Server) onRoundReady(kind minigame.Kind, round int) {
	s.room.Broadcast(protocol.Success(protocol.SignalReadySubGame, protocol.ReadySubGameData{
		Round:    round,
		GameKind: string(kind),
	}))
}

func (s *Server) announceDalgona(g *minigame.Dalgona) {
	s.room.Broadcast(protocol.Success(protocol.SignalDalgonaStarted, protocol.DalgonaStartedData{
		TimeLimitMs: g.TimeLimit.Milliseconds(),
		Shape:       string(g.Shape()),
	}))
}

func (s *Server) announceTugOfWar(g *minigame.TugOfWar) {
	left, right, autoAdvance := g.SplitTeams(s.arena.AliveIDs())
	g.SetCallbacks(minigame.TugCallbacks{
		ScoreDelta: func(delta int) {
			s.room.Broadcast(protocol.Success(protocol.SignalTugOfWarScore, protocol.TugOfWarScoreData{ScoreDelta: delta}))
		},
		RoundResult: func(delta int, leftWin bool) {
			s.room.Broadcast(protocol.Success(protocol.SignalTugOfWarScore, protocol.TugOfWarScoreData{ScoreDelta: delta}))
		},
	})
	s.room.Broadcast(protocol.Success(protocol.SignalTugOfWarStarted, protocol.TugOfWarStartedData{
		GameTimeMs:             g.GameTime.Milliseconds(),
		LeftTeamPlayerIndex:    s.playerIndices(left),
		RightTeamPlayerIndex:   s.playerIndices(right),
		UnearnedWinPlayerIndex: s.playerIndices(autoAdvance),
	}))
}

func (s *Server) announceRedLight(g *minigame.RedLight) {
	seats := map[string]int{}
	for _, id := range s.arena.AliveIDs() {
		seats[id] = s.room.PlayerIndex(id)
	}
	g.SetCallbacks(minigame.RedLightCallbacks{
		LightChanged: func(redOn bool) {
			s.room.Broadcast(protocol.Success(protocol.SignalRedLightChanged, protocol.RedLightChangedData{IsRedLight: redOn}))
		},
		PlayerResult: func(seat int, success bool) {
			s.room.Broadcast(protocol.Success(protocol.SignalRedLightResult, protocol.RedLightResultData{
				PlayerIndex: seat,
				IsSuccess:   success,
			}))
		},
		Positions: func(positions []int) {
			s.room.Broadcast(protocol.Success(protocol.SignalRedLightPositions, protocol.RedLightPositionsData{Positions: positions}))
		},
	}, seats)
	s.room.Broadcast(protocol.Success(protocol.SignalRedLightStarted, protocol.RedLightStartedData{
		TimeLimitMs: g.TimeLimit.Milliseconds(),
	}))
}

func (s *Server) onRoundEnded(result minigame.Result, round int, forced bool) {
	s.room.Broadcast(protocol.Success(protocol.SignalSubGameEnded, protocol.SubGameEndedData{
		Round:                round,
		GameKind:             string(result.Kind),
		SurvivePlayerIndices: s.playerIndices(result.Survivors),
	}))
}

func (s *Server) onMatchEnded(winnerID string) {
	winnerIndex := -1
	if winnerID != "" {
		winnerIndex = s.room.PlayerIndex(winnerID)
	}
	s.room.Broadcast(protocol.Success(protocol.SignalGameEnded, protocol.GameEndedData{
		WinnerPlayerIndex: winnerIndex,
	}))
}

// onMatchReset reopens the room once the arena has gone back to waiting,
// dropping any seats whose connection went away mid match.
func (s *Server) onMatchReset() {
	for _, id := range s.room.ClientIDs() {
		if _, connected := s.client(id); !connected {
			s.room.Remove(id)
		}
	}
	s.room.EndGame()
	s.broadcastPlayerCount()
}

func (s *Server) onEliminated(playerID string, round int) {
	log.Infof("player %s eliminated in round %d", playerID, round)
}

func (s *Server) playerIndices(ids []string) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.room.PlayerIndex(id))
	}
	return out
}
