package minigame

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSelector(t *testing.T) {
	Convey("Next", t, func() {
		Convey("covers every kind before repeating any", func() {
			s := NewSelector(AllKinds)
			seen := map[Kind]bool{}
			for i := 0; i < len(AllKinds); i++ {
				seen[s.Next()] = true
			}
			So(len(seen), ShouldEqual, len(AllKinds))
		})
		Convey("starts a fresh cycle after exhausting the kinds", func() {
			s := NewSelector(AllKinds)
			for i := 0; i < len(AllKinds); i++ {
				s.Next()
			}
			So(s.PlayedCount(), ShouldEqual, len(AllKinds))
			k := s.Next()
			So(AllKinds, ShouldContain, k)
			So(s.PlayedCount(), ShouldEqual, 1)
		})
		Convey("only ever picks from the configured kinds", func() {
			s := NewSelector([]Kind{KindDalgona})
			for i := 0; i < 5; i++ {
				So(s.Next(), ShouldEqual, KindDalgona)
			}
		})
	})
	Convey("Reset", t, func() {
		Convey("clears the played set", func() {
			s := NewSelector(AllKinds)
			s.Next()
			s.Next()
			s.Reset()
			So(s.PlayedCount(), ShouldEqual, 0)
		})
	})
}
