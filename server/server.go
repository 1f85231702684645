package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/happyfacehappyface/squidgame-server/arena"
	"github.com/happyfacehappyface/squidgame-server/minigame"
	"github.com/happyfacehappyface/squidgame-server/protocol"
	"github.com/happyfacehappyface/squidgame-server/room"
)

// Error codes carried in CodeError responses.
const (
	errCodeBadRequest = 1
	errCodeRoom       = 2
	errCodeState      = 3
	errCodeAction     = 4
)

// Server connects websocket clients to the single room and its match.
type Server struct {
	room  *room.Room
	arena *arena.Arena

	connmtx     sync.RWMutex
	connections map[string]*room.Client

	// launchmtx serializes the status check and match start in
	// tryLaunchMatch across concurrent reader goroutines.
	launchmtx sync.Mutex
}

// New builds a server with an empty room and a waiting arena.
func New(maxPlayers int) *Server {
	s := &Server{
		room:        room.New(maxPlayers),
		connections: map[string]*room.Client{},
	}
	s.arena = arena.New(arena.Hooks{
		PhaseChanged: s.onPhaseChanged,
		RoundReady:   s.onRoundReady,
		RoundEnded:   s.onRoundEnded,
		MatchEnded:   s.onMatchEnded,
		MatchReset:   s.onMatchReset,
		Eliminated:   s.onEliminated,
	})
	return s
}

// HandleConnection owns a websocket connection for its whole life:
// greets the client, pumps its messages, and cleans up when it drops.
// Run on the connection's goroutine.
func (s *Server) HandleConnection(conn *websocket.Conn, clientID string) {
	c := room.NewClient(clientID, "", conn)
	s.connmtx.Lock()
	s.connections[c.ID()] = c
	s.connmtx.Unlock()
	log.Infof("client %s (%s) connected", c.Name(), c.ID())
	c.Send(protocol.Success(protocol.SignalPing, protocol.GreetingData{
		Message:    "connected",
		ServerTime: time.Now().UnixMilli(),
		ClientID:   c.ID(),
	}))
	c.ReadLoop(s.handleMessage)
	s.handleDisconnect(c)
}

func (s *Server) client(id string) (*room.Client, bool) {
	s.connmtx.RLock()
	defer s.connmtx.RUnlock()
	c, ok := s.connections[id]
	return c, ok
}

func (s *Server) sendTo(id string, b []byte) {
	if c, ok := s.client(id); ok {
		c.Send(b)
	}
}

func (s *Server) handleMessage(clientID string, b []byte) {
	var req protocol.Request
	if err := json.Unmarshal(b, &req); err != nil {
		log.Warnf("unparseable message from %s: %s", clientID, b)
		s.sendTo(clientID, protocol.Error(protocol.SignalPing, "unparseable request", errCodeBadRequest))
		return
	}
	switch req.Signal {
	case protocol.SignalPing:
		s.handlePing(clientID)
	case protocol.SignalEnterRoom:
		s.handleEnterRoom(clientID, req.Data)
	case protocol.SignalLeaveRoom:
		s.handleLeaveRoom(clientID)
	case protocol.SignalReadyGame:
		s.handleReadyGame(clientID)
	case protocol.SignalStartGame:
		s.handleStartGame(clientID)
	case protocol.SignalReadySubGame:
		s.handleReadySubGame(clientID)
	case protocol.SignalDalgonaResult:
		s.handleDalgonaResult(clientID, req.Data)
	case protocol.SignalTugOfWarPress:
		s.handleTugOfWarPress(clientID, req.Data)
	case protocol.SignalRedLightProgress:
		s.handleRedLightProgress(clientID, req.Data)
	case protocol.SignalRedLightResult:
		s.handleRedLightResult(clientID, req.Data)
	default:
		log.Warnf("unknown signal %d from %s", req.Signal, clientID)
		s.sendTo(clientID, protocol.Error(req.Signal, "unknown signal", errCodeBadRequest))
	}
}

func (s *Server) handlePing(clientID string) {
	s.sendTo(clientID, protocol.Success(protocol.SignalPing, protocol.GreetingData{
		Message:    "pong",
		ServerTime: time.Now().UnixMilli(),
		ClientID:   clientID,
	}))
}

func (s *Server) handleEnterRoom(clientID string, data json.RawMessage) {
	var d protocol.EnterRoomData
	if len(data) > 0 {
		if err := json.Unmarshal(data, &d); err != nil {
			s.sendTo(clientID, protocol.Error(protocol.SignalEnterRoom, "unparseable request", errCodeBadRequest))
			return
		}
	}
	if len(d.PlayerName) > 20 {
		s.sendTo(clientID, protocol.Error(protocol.SignalEnterRoom, "player name too long", errCodeBadRequest))
		return
	}
	c, ok := s.client(clientID)
	if !ok {
		return
	}
	c.SetName(d.PlayerName)
	if err := s.room.Add(c); err != nil {
		s.sendTo(clientID, protocol.Error(protocol.SignalEnterRoom, err.Error(), errCodeRoom))
		return
	}
	c.Send(protocol.Success(protocol.SignalEnterRoom, protocol.RoomSnapshotData{
		PlayerCount: s.room.Count(),
		PlayerIndex: s.room.PlayerIndex(clientID),
		PlayerNames: s.room.PlayerNames(),
		RoomStatus:  string(s.room.Status()),
	}))
	s.broadcastPlayerCount(clientID)
}

func (s *Server) handleLeaveRoom(clientID string) {
	if err := s.room.Remove(clientID); err != nil {
		s.sendTo(clientID, protocol.Error(protocol.SignalLeaveRoom, err.Error(), errCodeRoom))
		return
	}
	s.sendTo(clientID, protocol.Success(protocol.SignalLeaveRoom, nil))
	s.broadcastPlayerCount()
}

// handleStartGame moves the room into the launch handshake: every client
// gets their seat assignment and is expected to answer with READY_GAME
// once their scene is loaded.
func (s *Server) handleStartGame(clientID string) {
	if !s.room.Has(clientID) {
		s.sendTo(clientID, protocol.Error(protocol.SignalStartGame, "client has not joined", errCodeRoom))
		return
	}
	if s.room.Count() < 2 {
		s.sendTo(clientID, protocol.Error(protocol.SignalStartGame, "need at least two players to start", errCodeState))
		return
	}
	if err := s.room.StartBooting(); err != nil {
		s.sendTo(clientID, protocol.Error(protocol.SignalStartGame, err.Error(), errCodeState))
		return
	}
	names := s.room.PlayerNames()
	for i, id := range s.room.ClientIDs() {
		s.sendTo(id, protocol.Success(protocol.SignalStartGame, protocol.StartGameData{
			PlayerIndex: i,
			PlayerNames: names,
		}))
	}
}

func (s *Server) handleReadyGame(clientID string) {
	if s.room.Status() != room.StatusBooting {
		s.sendTo(clientID, protocol.Error(protocol.SignalReadyGame, "no match is booting", errCodeState))
		return
	}
	changed, err := s.room.SetReady(clientID)
	if err != nil {
		s.sendTo(clientID, protocol.Error(protocol.SignalReadyGame, err.Error(), errCodeRoom))
		return
	}
	if !changed {
		s.sendTo(clientID, protocol.Error(protocol.SignalReadyGame, "already ready", errCodeState))
		return
	}
	s.sendTo(clientID, protocol.Success(protocol.SignalReadyGame, nil))
	s.tryLaunchMatch()
}

// tryLaunchMatch begins the match once every booted client is ready. Only
// one launch can be in flight at a time; a concurrent attempt that lost
// the race observes the room already playing and leaves it alone.
func (s *Server) tryLaunchMatch() {
	s.launchmtx.Lock()
	defer s.launchmtx.Unlock()
	if s.room.Status() != room.StatusBooting || !s.room.AllReady() {
		return
	}
	if s.room.Count() < 2 {
		s.room.EndGame()
		return
	}
	if err := s.arena.BeginMatch(s.room.ClientIDs(), s.room.PlayerNames()); err != nil {
		if err == arena.ErrMatchNotWaiting {
			// a match is already running, nothing to reopen
			return
		}
		log.Errorf("unable to start match: %s", err)
		s.room.EndGame()
		return
	}
	s.room.StartPlaying()
}

func (s *Server) handleReadySubGame(clientID string) {
	if _, err := s.arena.AcknowledgeReady(clientID); err != nil {
		s.sendTo(clientID, protocol.Error(protocol.SignalReadySubGame, err.Error(), errCodeState))
		return
	}
	s.sendTo(clientID, protocol.Success(protocol.SignalReadySubGame, nil))
}

func (s *Server) handleDalgonaResult(clientID string, data json.RawMessage) {
	var d protocol.OutcomeData
	if err := json.Unmarshal(data, &d); err != nil {
		s.sendTo(clientID, protocol.Error(protocol.SignalDalgonaResult, "unparseable request", errCodeBadRequest))
		return
	}
	err := s.arena.SubmitAction(clientID, minigame.OutcomeAction{Success: d.IsSuccess, TimeTakenMs: d.TimeTakenMs})
	if err != nil {
		s.sendTo(clientID, protocol.Error(protocol.SignalDalgonaResult, err.Error(), errCodeAction))
		return
	}
	s.room.Broadcast(protocol.Success(protocol.SignalDalgonaResult, protocol.DalgonaResultData{
		PlayerIndex: s.room.PlayerIndex(clientID),
		IsSuccess:   d.IsSuccess,
	}))
}

func (s *Server) handleTugOfWarPress(clientID string, data json.RawMessage) {
	var d protocol.PressCountData
	if err := json.Unmarshal(data, &d); err != nil {
		s.sendTo(clientID, protocol.Error(protocol.SignalTugOfWarPress, "unparseable request", errCodeBadRequest))
		return
	}
	if err := s.arena.SubmitAction(clientID, minigame.PullAction{Power: d.PressCount}); err != nil {
		s.sendTo(clientID, protocol.Error(protocol.SignalTugOfWarPress, err.Error(), errCodeAction))
		return
	}
	s.sendTo(clientID, protocol.Success(protocol.SignalTugOfWarPress, nil))
}

func (s *Server) handleRedLightProgress(clientID string, data json.RawMessage) {
	var d protocol.ProgressData
	if err := json.Unmarshal(data, &d); err != nil {
		s.sendTo(clientID, protocol.Error(protocol.SignalRedLightProgress, "unparseable request", errCodeBadRequest))
		return
	}
	if err := s.arena.SubmitAction(clientID, minigame.ProgressAction{Progress: d.Progress}); err != nil {
		s.sendTo(clientID, protocol.Error(protocol.SignalRedLightProgress, err.Error(), errCodeAction))
		return
	}
}

func (s *Server) handleRedLightResult(clientID string, data json.RawMessage) {
	var d protocol.OutcomeData
	if err := json.Unmarshal(data, &d); err != nil {
		s.sendTo(clientID, protocol.Error(protocol.SignalRedLightResult, "unparseable request", errCodeBadRequest))
		return
	}
	err := s.arena.SubmitAction(clientID, minigame.OutcomeAction{Success: d.IsSuccess, TimeTakenMs: d.TimeTakenMs})
	if err != nil {
		s.sendTo(clientID, protocol.Error(protocol.SignalRedLightResult, err.Error(), errCodeAction))
		return
	}
	s.sendTo(clientID, protocol.Success(protocol.SignalRedLightResult, nil))
}

// handleDisconnect runs when a client's read loop ends: a mid-match
// departure eliminates the player, then the seat is released.
func (s *Server) handleDisconnect(c *room.Client) {
	c.Close()
	s.connmtx.Lock()
	delete(s.connections, c.ID())
	s.connmtx.Unlock()
	if !s.room.Has(c.ID()) {
		return
	}
	log.Infof("client %s (%s) disconnected", c.Name(), c.ID())
	if s.arena.Snapshot().State == arena.StateInProgress {
		s.arena.HandleDisconnect(c.ID())
		return
	}
	s.room.Remove(c.ID())
	if s.room.Status() == room.StatusBooting {
		// A dropped seat may have been the last holdout, or may leave
		// too few players to launch at all.
		s.tryLaunchMatch()
	}
	s.broadcastPlayerCount()
}

func (s *Server) broadcastPlayerCount(exclude ...string) {
	s.room.Broadcast(protocol.Success(protocol.SignalPlayerCountChanged, protocol.PlayerCountChangedData{
		PlayerCount: s.room.Count(),
		PlayerNames: s.room.PlayerNames(),
	}), exclude...)
}
