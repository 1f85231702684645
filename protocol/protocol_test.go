package protocol

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEnvelopes(t *testing.T) {
	Convey("Success", t, func() {
		Convey("wraps the payload with a success code and the signal", func() {
			b := Success(SignalEnterRoom, RoomSnapshotData{PlayerCount: 2, PlayerIndex: 1, PlayerNames: []string{"Ann", "Ben"}, RoomStatus: "WAITING"})
			var r struct {
				Code   int             `json:"code"`
				Signal int             `json:"signal"`
				Data   json.RawMessage `json:"data"`
			}
			So(json.Unmarshal(b, &r), ShouldBeNil)
			So(r.Code, ShouldEqual, CodeSuccess)
			So(r.Signal, ShouldEqual, SignalEnterRoom)
			var d RoomSnapshotData
			So(json.Unmarshal(r.Data, &d), ShouldBeNil)
			So(d.PlayerIndex, ShouldEqual, 1)
			So(d.PlayerNames, ShouldResemble, []string{"Ann", "Ben"})
		})
		Convey("carries a null payload when there is nothing to say", func() {
			b := Success(SignalReadyGame, nil)
			So(string(b), ShouldEqual, `{"code":0,"signal":1005,"data":null}`)
		})
	})
	Convey("Error", t, func() {
		Convey("wraps the message and error code under an error code envelope", func() {
			b := Error(SignalStartGame, "not every player is ready", 3)
			var r struct {
				Code   int       `json:"code"`
				Signal int       `json:"signal"`
				Data   ErrorData `json:"data"`
			}
			So(json.Unmarshal(b, &r), ShouldBeNil)
			So(r.Code, ShouldEqual, CodeError)
			So(r.Signal, ShouldEqual, SignalStartGame)
			So(r.Data.Message, ShouldEqual, "not every player is ready")
			So(r.Data.ErrorCode, ShouldEqual, 3)
		})
	})
	Convey("Request", t, func() {
		Convey("defers payload decoding to the handler", func() {
			var req Request
			So(json.Unmarshal([]byte(`{"signal":2202,"data":{"pressCount":12}}`), &req), ShouldBeNil)
			So(req.Signal, ShouldEqual, SignalTugOfWarPress)
			var d PressCountData
			So(json.Unmarshal(req.Data, &d), ShouldBeNil)
			So(d.PressCount, ShouldEqual, 12)
		})
	})
}
