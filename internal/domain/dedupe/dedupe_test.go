package dedupe_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/ffnsync/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInFlightGuard(t *testing.T) {
	Convey("Given a new in-flight guard", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()

		Convey("When nothing is recorded", func() {
			So(d.Size(), ShouldEqual, 0)
			So(d.InFlight("athlete-1"), ShouldBeFalse)
		})

		Convey("When an athlete is acquired", func() {
			err := d.TryAcquire(ctx, "athlete-1")

			Convey("Then it is in flight", func() {
				So(err, ShouldBeNil)
				So(d.InFlight("athlete-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then a second acquire for the same athlete fails", func() {
				So(errors.Is(d.TryAcquire(ctx, "athlete-1"), dedupe.ErrInFlight), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "athlete-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then a different athlete can still be acquired", func() {
				So(d.SeenAndRecord(ctx, "athlete-2"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 2)
			})

			Convey("And it is released", func() {
				d.Unrecord(ctx, "athlete-1")

				Convey("Then it can be acquired again", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.TryAcquire(ctx, "athlete-1"), ShouldBeNil)
				})
			})
		})

		Convey("When releasing an unknown athlete", func() {
			d.Unrecord(ctx, "nobody")

			Convey("Then the size is unchanged", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestInFlightGuardCapacity(t *testing.T) {
	Convey("Given a guard bounded to two athletes", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
		So(d.TryAcquire(ctx, "a"), ShouldBeNil)
		So(d.TryAcquire(ctx, "b"), ShouldBeNil)

		Convey("When a third athlete arrives", func() {
			err := d.TryAcquire(ctx, "c")

			Convey("Then it is refused and nothing is evicted", func() {
				So(errors.Is(err, dedupe.ErrFull), ShouldBeTrue)
				So(d.InFlight("a"), ShouldBeTrue)
				So(d.InFlight("b"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 2)
			})
		})

		Convey("When one athlete finishes", func() {
			d.Unrecord(ctx, "a")

			Convey("Then there is room again", func() {
				So(d.TryAcquire(ctx, "c"), ShouldBeNil)
			})
		})
	})

	Convey("Given an unbounded guard", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			So(d.TryAcquire(context.Background(), fmt.Sprintf("athlete-%d", i)), ShouldBeNil)
		}
		So(d.Size(), ShouldEqual, 1000)
	})
}

func TestInFlightGuardConcurrency(t *testing.T) {
	Convey("Given many goroutines racing for the same athlete", t, func() {
		d := dedupe.NewInMemoryDeduper()
		const goroutines = 50
		var wg sync.WaitGroup
		var winners atomic.Int64

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if d.TryAcquire(context.Background(), "athlete-1") == nil {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one wins", func() {
			So(winners.Load(), ShouldEqual, 1)
			So(d.Size(), ShouldEqual, 1)
		})
	})

	Convey("Given goroutines acquiring and releasing distinct athletes", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		var wg sync.WaitGroup
		for g := 0; g < 10; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					id := fmt.Sprintf("athlete-%d-%d", g, j)
					_ = d.TryAcquire(context.Background(), id)
					d.Unrecord(context.Background(), id)
				}
			}(g)
		}
		wg.Wait()

		Convey("Then the guard ends empty", func() {
			So(d.Size(), ShouldEqual, 0)
		})
	})
}
