package minigame

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func testRedLight(limit time.Duration) *RedLight {
	g := NewRedLight()
	g.TimeLimit = limit
	g.MinToggle = 50 * time.Millisecond
	g.MaxToggle = 100 * time.Millisecond
	g.TelemetryEvery = 20 * time.Millisecond
	g.EndDelay = 10 * time.Millisecond
	return g
}

func TestRedLight(t *testing.T) {
	Convey("HandleAction", t, func() {
		Convey("tracks progress clamped to the track", func() {
			g := testRedLight(time.Second)
			g.Start([]string{"p1", "p2"})
			So(g.HandleAction("p1", ProgressAction{Progress: 400}), ShouldBeTrue)
			So(g.HandleAction("p2", ProgressAction{Progress: 5000}), ShouldBeTrue)
			positions := g.PositionsSnapshot()
			So(positions[0], ShouldEqual, 400)
			So(positions[1], ShouldEqual, 1000)
			g.End()
		})
		Convey("marks a settled seat as out of the telemetry", func() {
			g := testRedLight(time.Second)
			g.Start([]string{"p1", "p2"})
			g.HandleAction("p1", OutcomeAction{Success: true})
			positions := g.PositionsSnapshot()
			So(positions[0], ShouldEqual, -1)
			Convey("and rejects further movement", func() {
				So(g.HandleAction("p1", ProgressAction{Progress: 900}), ShouldBeFalse)
			})
			Convey("and rejects a second outcome", func() {
				So(g.HandleAction("p1", OutcomeAction{Success: false}), ShouldBeFalse)
			})
			g.End()
		})
		Convey("asks for the end once everyone settled", func() {
			g := testRedLight(time.Second)
			ended := make(chan bool, 1)
			g.SetRequestEnd(func() { ended <- true })
			g.Start([]string{"p1", "p2", "p3"})
			g.HandleAction("p1", OutcomeAction{Success: true})
			g.HandleAction("p2", OutcomeAction{Success: true})
			g.HandleAction("p3", OutcomeAction{Success: false})
			select {
			case <-ended:
			case <-time.After(300 * time.Millisecond):
				t.Fatal("round never asked to end")
			}
			r := g.End()
			So(len(r.Survivors), ShouldEqual, 2)
			So(r.Eliminated, ShouldResemble, []string{"p3"})
		})
	})
	Convey("light toggling", t, func() {
		Convey("starts green and flips within the toggle window", func() {
			g := testRedLight(time.Second)
			changes := make(chan bool, 10)
			g.SetCallbacks(RedLightCallbacks{LightChanged: func(redOn bool) { changes <- redOn }}, map[string]int{"p1": 0, "p2": 1})
			g.Start([]string{"p1", "p2"})
			So(g.RedOn(), ShouldBeFalse)
			select {
			case redOn := <-changes:
				So(redOn, ShouldBeTrue)
			case <-time.After(500 * time.Millisecond):
				t.Fatal("light never toggled")
			}
			g.End()
		})
	})
	Convey("telemetry", t, func() {
		Convey("broadcasts seat ordered positions", func() {
			g := testRedLight(time.Second)
			snapshots := make(chan []int, 10)
			g.SetCallbacks(RedLightCallbacks{Positions: func(p []int) { snapshots <- p }}, map[string]int{"p1": 0, "p2": 1})
			g.Start([]string{"p1", "p2"})
			g.HandleAction("p2", ProgressAction{Progress: 250})
			deadline := time.After(500 * time.Millisecond)
			for {
				select {
				case p := <-snapshots:
					if p[1] == 250 {
						So(p[0], ShouldEqual, 0)
						g.End()
						return
					}
				case <-deadline:
					t.Fatal("no telemetry with the update arrived")
				}
			}
		})
	})
	Convey("End", t, func() {
		Convey("fails everyone unsettled at the deadline", func() {
			g := testRedLight(30 * time.Millisecond)
			results := make(chan bool, 10)
			g.SetCallbacks(RedLightCallbacks{PlayerResult: func(seat int, success bool) { results <- success }}, map[string]int{"p1": 0, "p2": 1})
			g.Start([]string{"p1", "p2"})
			g.HandleAction("p1", OutcomeAction{Success: true})
			time.Sleep(80 * time.Millisecond)
			r := g.End()
			So(r.Survivors, ShouldResemble, []string{"p1"})
			So(r.Eliminated, ShouldResemble, []string{"p2"})
		})
	})
	Convey("CheckEndCondition", t, func() {
		g := testRedLight(time.Second)
		g.Start([]string{"p1", "p2", "p3"})
		Convey("holds while unsettled players remain", func() {
			ended, _ := g.CheckEndCondition([]string{"p1", "p2"})
			So(ended, ShouldBeFalse)
		})
		Convey("fires when the alive set is all settled", func() {
			g.HandleAction("p1", OutcomeAction{Success: true})
			g.HandleAction("p2", OutcomeAction{Success: true})
			ended, reason := g.CheckEndCondition([]string{"p1", "p2"})
			So(ended, ShouldBeTrue)
			So(reason, ShouldNotBeBlank)
		})
		Convey("fires when one player remains", func() {
			ended, _ := g.CheckEndCondition([]string{"p3"})
			So(ended, ShouldBeTrue)
		})
		g.End()
	})
	Convey("ForceResult", t, func() {
		Convey("splits the entrants by the surviving alive set", func() {
			g := testRedLight(time.Second)
			g.Start([]string{"p1", "p2", "p3"})
			r := g.ForceResult([]string{"p1"})
			So(r.Survivors, ShouldResemble, []string{"p1"})
			So(r.Eliminated, ShouldResemble, []string{"p2", "p3"})
			So(g.Active(), ShouldBeFalse)
		})
	})
}
