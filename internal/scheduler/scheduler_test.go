package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/ffnsync/internal/scheduler"
	"github.com/okian/ffnsync/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func (j *countingJob) Name() string { return "counting" }

type fakeResyncer struct {
	queued int
	err    error
	calls  atomic.Int32
}

func (f *fakeResyncer) ResyncAll(ctx context.Context) (int, error) {
	f.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("no deadline")
	}
	return f.queued, f.err
}

func TestScheduler(t *testing.T) {
	Convey("Given a scheduler", t, func() {
		s := scheduler.New(nil)

		Convey("When a job is registered with a seconds schedule", func() {
			job := &countingJob{}
			So(s.AddJob("@every 1s", job), ShouldBeNil)
			s.Start()

			deadline := time.Now().Add(3 * time.Second)
			for job.runs.Load() == 0 && time.Now().Before(deadline) {
				time.Sleep(20 * time.Millisecond)
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			s.Stop(ctx)

			Convey("Then it runs", func() {
				So(job.runs.Load(), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the schedule is invalid", func() {
			err := s.AddJob("every tuesday", &countingJob{})

			Convey("Then registration fails", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "counting")
			})
		})

		Convey("When a six-field schedule is registered", func() {
			So(s.AddJob("0 0 3 * * *", &countingJob{}), ShouldBeNil)
		})

		Convey("When running a job immediately", func() {
			job := &countingJob{err: errors.New("boom")}
			err := s.RunNow(job)

			Convey("Then its error is returned", func() {
				So(err, ShouldNotBeNil)
				So(job.runs.Load(), ShouldEqual, 1)
			})
		})
	})
}

func TestResyncJob(t *testing.T) {
	Convey("Given a resync job", t, func() {
		r := &fakeResyncer{queued: 4}
		job := scheduler.NewResyncJob(r, time.Second, nil)

		So(job.Name(), ShouldEqual, "resync_all")

		Convey("When it runs", func() {
			err := job.Run()

			Convey("Then every athlete is queued under a deadline", func() {
				So(err, ShouldBeNil)
				So(r.calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the service refuses", func() {
			r.err = errors.New("service not started")
			err := job.Run()

			Convey("Then the error is wrapped", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, r.err), ShouldBeTrue)
			})
		})
	})
}
