package arena

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRoster(t *testing.T) {
	Convey("InitializeOrdered", t, func() {
		r := NewRoster()
		r.InitializeOrdered([]string{"a", "b", "c"}, []string{"Ann", "Ben", "Cam"})
		Convey("seats everyone alive in join order", func() {
			So(r.Count(), ShouldEqual, 3)
			So(r.AliveCount(), ShouldEqual, 3)
			So(r.AliveIDs(), ShouldResemble, []string{"a", "b", "c"})
			p, ok := r.Get("b")
			So(ok, ShouldBeTrue)
			So(p.Name, ShouldEqual, "Ben")
			So(p.Status, ShouldEqual, StatusAlive)
		})
	})
	Convey("MarkEliminated", t, func() {
		r := NewRoster()
		r.InitializeOrdered([]string{"a", "b"}, []string{"Ann", "Ben"})
		Convey("records the round and drops the player from the alive set", func() {
			So(r.MarkEliminated("a", 2), ShouldBeTrue)
			So(r.AliveIDs(), ShouldResemble, []string{"b"})
			p, _ := r.Get("a")
			So(p.Status, ShouldEqual, StatusEliminated)
			So(p.EliminatedInRound, ShouldEqual, 2)
			Convey("and never reverts or restamps", func() {
				So(r.MarkEliminated("a", 5), ShouldBeFalse)
				p, _ := r.Get("a")
				So(p.EliminatedInRound, ShouldEqual, 2)
			})
		})
		Convey("rejects unknown players", func() {
			So(r.MarkEliminated("zz", 1), ShouldBeFalse)
		})
	})
	Convey("Clear", t, func() {
		r := NewRoster()
		r.InitializeOrdered([]string{"a"}, []string{"Ann"})
		r.Clear()
		So(r.Count(), ShouldEqual, 0)
		So(r.AliveIDs(), ShouldBeEmpty)
	})
}
