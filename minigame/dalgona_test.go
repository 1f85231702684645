package minigame

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func testDalgona(limit time.Duration) *Dalgona {
	d := NewDalgona()
	d.TimeLimit = limit
	d.ResultDelay = 10 * time.Millisecond
	return d
}

func TestDalgona(t *testing.T) {
	Convey("HandleAction", t, func() {
		Convey("accepts one outcome per player", func() {
			d := testDalgona(time.Second)
			d.Start([]string{"p1", "p2"})
			So(d.HandleAction("p1", OutcomeAction{Success: true}), ShouldBeTrue)
			Convey("and rejects a second submission", func() {
				So(d.HandleAction("p1", OutcomeAction{Success: false}), ShouldBeFalse)
			})
		})
		Convey("rejects players who never entered the round", func() {
			d := testDalgona(time.Second)
			d.Start([]string{"p1", "p2"})
			So(d.HandleAction("p3", OutcomeAction{Success: true}), ShouldBeFalse)
		})
		Convey("rejects non outcome actions", func() {
			d := testDalgona(time.Second)
			d.Start([]string{"p1", "p2"})
			So(d.HandleAction("p1", PullAction{Power: 5}), ShouldBeFalse)
		})
		Convey("records a late success as a failure", func() {
			d := testDalgona(30 * time.Millisecond)
			d.Start([]string{"p1", "p2"})
			time.Sleep(60 * time.Millisecond)
			d.HandleAction("p1", OutcomeAction{Success: true})
			r := d.End()
			So(r.Survivors, ShouldBeEmpty)
			So(len(r.Eliminated), ShouldEqual, 2)
		})
		Convey("asks for the end once everyone submitted", func() {
			d := testDalgona(time.Second)
			ended := make(chan bool, 1)
			d.SetRequestEnd(func() { ended <- true })
			d.Start([]string{"p1", "p2"})
			d.HandleAction("p1", OutcomeAction{Success: true})
			d.HandleAction("p2", OutcomeAction{Success: false})
			select {
			case <-ended:
			case <-time.After(200 * time.Millisecond):
				t.Fatal("round never asked to end")
			}
		})
	})
	Convey("End", t, func() {
		Convey("keeps successful submitters and eliminates the rest", func() {
			d := testDalgona(time.Second)
			d.Start([]string{"p1", "p2", "p3"})
			d.HandleAction("p1", OutcomeAction{Success: true})
			d.HandleAction("p2", OutcomeAction{Success: false})
			r := d.End()
			So(r.Kind, ShouldEqual, KindDalgona)
			So(r.Survivors, ShouldResemble, []string{"p1"})
			So(r.Eliminated, ShouldResemble, []string{"p2", "p3"})
		})
		Convey("fails everyone silent at the deadline", func() {
			d := testDalgona(20 * time.Millisecond)
			d.Start([]string{"p1", "p2"})
			time.Sleep(50 * time.Millisecond)
			r := d.End()
			So(r.Survivors, ShouldBeEmpty)
			So(len(r.Eliminated), ShouldEqual, 2)
		})
	})
	Convey("CheckEndCondition", t, func() {
		d := testDalgona(time.Second)
		d.Start([]string{"p1", "p2", "p3"})
		Convey("holds while two or more players remain", func() {
			ended, _ := d.CheckEndCondition([]string{"p1", "p2"})
			So(ended, ShouldBeFalse)
		})
		Convey("fires once one player remains", func() {
			ended, reason := d.CheckEndCondition([]string{"p1"})
			So(ended, ShouldBeTrue)
			So(reason, ShouldNotBeBlank)
		})
	})
	Convey("ForceResult", t, func() {
		Convey("splits the entrants by the surviving alive set", func() {
			d := testDalgona(time.Second)
			d.Start([]string{"p1", "p2", "p3"})
			r := d.ForceResult([]string{"p2"})
			So(r.Survivors, ShouldResemble, []string{"p2"})
			So(r.Eliminated, ShouldResemble, []string{"p1", "p3"})
			So(d.Active(), ShouldBeFalse)
		})
	})
}
