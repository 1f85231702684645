package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/happyfacehappyface/squidgame-server/protocol"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type testResponse struct {
	Code   int             `json:"code"`
	Signal int             `json:"signal"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer() (*Server, *httptest.Server) {
	s := New(4)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.HandleConnection(conn, "")
	}))
	return s, ts
}

func dial(ts *httptest.Server) (*websocket.Conn, error) {
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	return conn, err
}

func readResponse(c *websocket.Conn) (*testResponse, error) {
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := c.ReadMessage()
	if err != nil {
		return nil, err
	}
	var r testResponse
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func send(c *websocket.Conn, signal int, data interface{}) error {
	b, err := json.Marshal(map[string]interface{}{"signal": signal, "data": data})
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, b)
}

func TestServer(t *testing.T) {
	Convey("a connecting client", t, func() {
		_, ts := newTestServer()
		defer ts.Close()
		c, err := dial(ts)
		So(err, ShouldBeNil)
		defer c.Close()
		Convey("is greeted with an identity", func() {
			r, err := readResponse(c)
			So(err, ShouldBeNil)
			So(r.Code, ShouldEqual, protocol.CodeSuccess)
			So(r.Signal, ShouldEqual, protocol.SignalPing)
			var d protocol.GreetingData
			So(json.Unmarshal(r.Data, &d), ShouldBeNil)
			So(d.ClientID, ShouldNotBeBlank)
			Convey("and gets a pong back for a ping", func() {
				So(send(c, protocol.SignalPing, protocol.PingData{ClientTime: time.Now().UnixMilli()}), ShouldBeNil)
				r, err := readResponse(c)
				So(err, ShouldBeNil)
				So(r.Signal, ShouldEqual, protocol.SignalPing)
				So(r.Code, ShouldEqual, protocol.CodeSuccess)
			})
			Convey("and an unknown signal reports an error", func() {
				So(send(c, 9999, nil), ShouldBeNil)
				r, err := readResponse(c)
				So(err, ShouldBeNil)
				So(r.Code, ShouldEqual, protocol.CodeError)
				So(r.Signal, ShouldEqual, 9999)
			})
		})
	})
	Convey("entering the room", t, func() {
		_, ts := newTestServer()
		defer ts.Close()
		c1, err := dial(ts)
		So(err, ShouldBeNil)
		defer c1.Close()
		readResponse(c1)
		Convey("answers with a room snapshot", func() {
			So(send(c1, protocol.SignalEnterRoom, protocol.EnterRoomData{PlayerName: "Ann"}), ShouldBeNil)
			r, err := readResponse(c1)
			So(err, ShouldBeNil)
			So(r.Code, ShouldEqual, protocol.CodeSuccess)
			So(r.Signal, ShouldEqual, protocol.SignalEnterRoom)
			var d protocol.RoomSnapshotData
			So(json.Unmarshal(r.Data, &d), ShouldBeNil)
			So(d.PlayerCount, ShouldEqual, 1)
			So(d.PlayerIndex, ShouldEqual, 0)
			So(d.PlayerNames, ShouldResemble, []string{"Ann"})
			Convey("and tells the others about the new seat", func() {
				c2, err := dial(ts)
				So(err, ShouldBeNil)
				defer c2.Close()
				readResponse(c2)
				So(send(c2, protocol.SignalEnterRoom, protocol.EnterRoomData{PlayerName: "Ben"}), ShouldBeNil)
				readResponse(c2)
				r, err := readResponse(c1)
				So(err, ShouldBeNil)
				So(r.Signal, ShouldEqual, protocol.SignalPlayerCountChanged)
				var d protocol.PlayerCountChangedData
				So(json.Unmarshal(r.Data, &d), ShouldBeNil)
				So(d.PlayerCount, ShouldEqual, 2)
				So(d.PlayerNames, ShouldResemble, []string{"Ann", "Ben"})
			})
			Convey("and a second enter is rejected", func() {
				So(send(c1, protocol.SignalEnterRoom, protocol.EnterRoomData{PlayerName: "Ann"}), ShouldBeNil)
				r, err := readResponse(c1)
				So(err, ShouldBeNil)
				So(r.Code, ShouldEqual, protocol.CodeError)
			})
			Convey("and leaving frees the seat", func() {
				So(send(c1, protocol.SignalLeaveRoom, nil), ShouldBeNil)
				r, err := readResponse(c1)
				So(err, ShouldBeNil)
				So(r.Code, ShouldEqual, protocol.CodeSuccess)
				So(r.Signal, ShouldEqual, protocol.SignalLeaveRoom)
			})
		})
	})
	Convey("readying up", t, func() {
		s, ts := newTestServer()
		defer ts.Close()
		c1, err := dial(ts)
		So(err, ShouldBeNil)
		defer c1.Close()
		readResponse(c1)
		c2, err := dial(ts)
		So(err, ShouldBeNil)
		defer c2.Close()
		readResponse(c2)
		send(c1, protocol.SignalEnterRoom, protocol.EnterRoomData{PlayerName: "Ann"})
		readResponse(c1)
		send(c2, protocol.SignalEnterRoom, protocol.EnterRoomData{PlayerName: "Ben"})
		readResponse(c2)
		readResponse(c1) // player count update
		Convey("readying before the launch handshake is rejected", func() {
			So(send(c1, protocol.SignalReadyGame, nil), ShouldBeNil)
			r, err := readResponse(c1)
			So(err, ShouldBeNil)
			So(r.Code, ShouldEqual, protocol.CodeError)
		})
		Convey("START_GAME hands every seat its assignment", func() {
			So(send(c1, protocol.SignalStartGame, nil), ShouldBeNil)
			r, err := readResponse(c1)
			So(err, ShouldBeNil)
			So(r.Code, ShouldEqual, protocol.CodeSuccess)
			So(r.Signal, ShouldEqual, protocol.SignalStartGame)
			var d protocol.StartGameData
			So(json.Unmarshal(r.Data, &d), ShouldBeNil)
			So(d.PlayerIndex, ShouldEqual, 0)
			So(d.PlayerNames, ShouldResemble, []string{"Ann", "Ben"})
			r, err = readResponse(c2)
			So(err, ShouldBeNil)
			So(json.Unmarshal(r.Data, &d), ShouldBeNil)
			So(d.PlayerIndex, ShouldEqual, 1)
			So(string(s.room.Status()), ShouldEqual, "BOOTING")
			Convey("and the match launches once everyone acknowledged", func() {
				send(c1, protocol.SignalReadyGame, nil)
				readResponse(c1)
				So(send(c2, protocol.SignalReadyGame, nil), ShouldBeNil)
				r, err := readResponse(c2)
				So(err, ShouldBeNil)
				So(r.Code, ShouldEqual, protocol.CodeSuccess)
				deadline := time.Now().Add(time.Second)
				for time.Now().Before(deadline) && string(s.room.Status()) != "PLAYING" {
					time.Sleep(time.Millisecond)
				}
				So(string(s.room.Status()), ShouldEqual, "PLAYING")
				Convey("and a straggling launch attempt leaves the match alone", func() {
					s.tryLaunchMatch()
					So(string(s.room.Status()), ShouldEqual, "PLAYING")
				})
			})
		})
	})
}
