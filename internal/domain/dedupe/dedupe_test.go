package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/league/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("A new id is recorded", func() {
			So(d.SeenAndRecord(ctx, "interaction-1"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 1)
		})

		Convey("A replayed id is reported as seen", func() {
			d.SeenAndRecord(ctx, "interaction-1")
			So(d.SeenAndRecord(ctx, "interaction-1"), ShouldBeTrue)
			So(d.Size(), ShouldEqual, 1)
		})

		Convey("An unrecorded id can be used again", func() {
			d.SeenAndRecord(ctx, "interaction-1")
			d.Unrecord(ctx, "interaction-1")
			So(d.Size(), ShouldEqual, 0)
			So(d.SeenAndRecord(ctx, "interaction-1"), ShouldBeFalse)
		})

		Convey("Unrecording an unknown id is a no-op", func() {
			d.Unrecord(ctx, "missing")
			So(d.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for i := 1; i <= 3; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("id-%d", i))
		}

		Convey("At capacity the oldest id is evicted first", func() {
			So(d.SeenAndRecord(ctx, "id-4"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "id-2"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "id-1"), ShouldBeFalse)
		})

		Convey("A re-recorded id counts from its new insertion", func() {
			d.Unrecord(ctx, "id-1")
			So(d.SeenAndRecord(ctx, "id-1"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 3)

			So(d.SeenAndRecord(ctx, "id-5"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "id-3"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "id-1"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "id-5"), ShouldBeTrue)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("id-%d", i))
		}

		Convey("Nothing is evicted", func() {
			So(d.Size(), ShouldEqual, 1000)
			So(d.SeenAndRecord(ctx, "id-0"), ShouldBeTrue)
		})
	})

	Convey("Given concurrent callers racing on one id", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, "same") {
					mu.Lock()
					fresh++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Convey("Exactly one wins", func() {
			So(fresh, ShouldEqual, 1)
		})
	})
}
