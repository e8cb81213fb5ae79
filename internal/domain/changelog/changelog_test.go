package changelog

import (
	"context"
	"sync"
	"testing"

	"github.com/okian/featreg/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLog(t *testing.T) {
	Convey("Given a change log of capacity 3", t, func() {
		ctx := context.Background()
		l := New(3)

		Convey("When empty", func() {
			So(l.Len(), ShouldEqual, 0)
			So(l.Recent(10), ShouldBeEmpty)
			So(l.Capacity(), ShouldEqual, 3)
		})

		Convey("When recording fewer changes than capacity", func() {
			for seq := uint64(1); seq <= 2; seq++ {
				So(l.Record(ctx, model.Change{Seq: seq, FeatureID: int64(seq)}), ShouldBeNil)
			}

			Convey("Then all are returned newest first", func() {
				got := l.Recent(10)
				So(len(got), ShouldEqual, 2)
				So(got[0].Seq, ShouldEqual, 2)
				So(got[1].Seq, ShouldEqual, 1)
			})
		})

		Convey("When recording past capacity", func() {
			for seq := uint64(1); seq <= 5; seq++ {
				So(l.Record(ctx, model.Change{Seq: seq}), ShouldBeNil)
			}

			Convey("Then only the newest entries remain", func() {
				got := l.Recent(-1)
				So(len(got), ShouldEqual, 3)
				So(got[0].Seq, ShouldEqual, 5)
				So(got[2].Seq, ShouldEqual, 3)
			})

			Convey("And the limit truncates", func() {
				got := l.Recent(1)
				So(len(got), ShouldEqual, 1)
				So(got[0].Seq, ShouldEqual, 5)
			})
		})

		Convey("When changes arrive out of order", func() {
			for _, seq := range []uint64{2, 1, 3} {
				So(l.Record(ctx, model.Change{Seq: seq}), ShouldBeNil)
			}
			got := l.Recent(3)
			So(got[0].Seq, ShouldEqual, 3)
			So(got[1].Seq, ShouldEqual, 2)
			So(got[2].Seq, ShouldEqual, 1)
		})
	})

	Convey("Given a non-positive capacity", t, func() {
		So(New(0).Capacity(), ShouldEqual, defaultCapacity)
	})

	Convey("Given concurrent writers", t, func() {
		l := New(64)
		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					_ = l.Record(context.Background(), model.Change{Seq: uint64(w*100 + i)})
					_ = l.Recent(5)
				}
			}(w)
		}
		wg.Wait()
		So(l.Len(), ShouldEqual, 64)
	})
}
