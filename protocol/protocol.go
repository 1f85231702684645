package protocol

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"
)

// Numeric signals shared with the client. Requests and responses carry
// the same signal so a reply is matched to what it answers.
const (
	SignalPing = 1

	SignalEnterRoom          = 1001
	SignalLeaveRoom          = 1002
	SignalPlayerCountChanged = 1003
	SignalStartGame          = 1004
	SignalReadyGame          = 1005

	SignalReadySubGame = 2001
	SignalSubGameEnded = 2002
	SignalGameEnded    = 2003

	SignalDalgonaStarted = 2101
	SignalDalgonaResult  = 2102

	SignalTugOfWarStarted = 2201
	SignalTugOfWarPress   = 2202
	SignalTugOfWarScore   = 2203

	SignalRedLightStarted   = 2301
	SignalRedLightChanged   = 2302
	SignalRedLightProgress  = 2303
	SignalRedLightResult    = 2304
	SignalRedLightPositions = 2305
)

// Response codes.
const (
	CodeSuccess = 0
	CodeError   = 1
)

// Request is the envelope every inbound client message uses.
type Request struct {
	Signal int             `json:"signal"`
	Data   json.RawMessage `json:"data"`
}

// Response is the envelope every outbound server message uses.
type Response struct {
	Code   int         `json:"code"`
	Signal int         `json:"signal"`
	Data   interface{} `json:"data"`
}

// ErrorData is the payload of every CodeError response.
type ErrorData struct {
	Message   string `json:"message"`
	ErrorCode int    `json:"errorCode"`
}

// Success builds a CodeSuccess response for the given signal.
func Success(signal int, data interface{}) []byte {
	return marshal(&Response{Code: CodeSuccess, Signal: signal, Data: data})
}

// Error builds a CodeError response for the given signal.
func Error(signal int, message string, errorCode int) []byte {
	return marshal(&Response{
		Code:   CodeError,
		Signal: signal,
		Data:   ErrorData{Message: message, ErrorCode: errorCode},
	})
}

func marshal(r *Response) []byte {
	b, err := json.Marshal(r)
	if err != nil {
		log.Errorf("error wrapping response for signal %d: %s", r.Signal, err)
		return []byte(``)
	}
	return b
}

// Request payloads.

type PingData struct {
	ClientTime int64 `json:"clientTime"`
}

type EnterRoomData struct {
	PlayerName string `json:"playerName"`
}

type OutcomeData struct {
	IsSuccess   bool  `json:"isSuccess"`
	TimeTakenMs int64 `json:"timeTakenMs"`
}

type PressCountData struct {
	PressCount int `json:"pressCount"`
}

type ProgressData struct {
	Progress int `json:"progress"`
}

// Response payloads.

type GreetingData struct {
	Message    string `json:"message"`
	ServerTime int64  `json:"serverTime"`
	ClientID   string `json:"clientId"`
}

type RoomSnapshotData struct {
	PlayerCount int      `json:"playerCount"`
	PlayerIndex int      `json:"playerIndex"`
	PlayerNames []string `json:"playerNames"`
	RoomStatus  string   `json:"roomStatus"`
}

type PlayerCountChangedData struct {
	PlayerCount int      `json:"playerCount"`
	PlayerNames []string `json:"playerNames"`
}

type StartGameData struct {
	PlayerIndex int      `json:"playerIndex"`
	PlayerNames []string `json:"playerNames"`
}

type ReadySubGameData struct {
	Round    int    `json:"round"`
	GameKind string `json:"gameKind"`
}

type SubGameEndedData struct {
	Round                int    `json:"round"`
	GameKind             string `json:"gameKind"`
	SurvivePlayerIndices []int  `json:"survivePlayerIndices"`
}

type GameEndedData struct {
	WinnerPlayerIndex int `json:"winnerPlayerIndex"`
}

type DalgonaStartedData struct {
	TimeLimitMs int64  `json:"timeLimitMs"`
	Shape       string `json:"shape"`
}

type DalgonaResultData struct {
	PlayerIndex int  `json:"playerIndex"`
	IsSuccess   bool `json:"isSuccess"`
}

type TugOfWarStartedData struct {
	GameTimeMs             int64 `json:"gameTimeMs"`
	LeftTeamPlayerIndex    []int `json:"leftTeamPlayerIndex"`
	RightTeamPlayerIndex   []int `json:"rightTeamPlayerIndex"`
	UnearnedWinPlayerIndex []int `json:"unearnedWinPlayerIndex"`
}

type TugOfWarScoreData struct {
	ScoreDelta int `json:"scoreDelta"`
}

type RedLightStartedData struct {
	TimeLimitMs int64 `json:"timeLimitMs"`
}

type RedLightChangedData struct {
	IsRedLight bool `json:"isRedLight"`
}

type RedLightResultData struct {
	PlayerIndex int  `json:"playerIndex"`
	IsSuccess   bool `json:"isSuccess"`
}

type RedLightPositionsData struct {
	Positions []int `json:"positions"`
}
