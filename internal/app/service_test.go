package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/ffnsync/internal/adapters/federation"
	"github.com/okian/ffnsync/internal/adapters/repository"
	service "github.com/okian/ffnsync/internal/app"
	"github.com/okian/ffnsync/internal/domain/merge"
	"github.com/okian/ffnsync/internal/domain/model"
	"github.com/okian/ffnsync/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

const resultsPage = `<html><body>
<h2>Bassin : 25 m</h2>
<table>
<tr><th>Épreuve</th><th>Temps</th><th>Date</th><th>Points</th></tr>
<tr><td>50 NL</td><td>30.12</td><td>12/05/2024</td><td>450 pts</td></tr>
<tr><td>100 NL</td><td>1:05.40</td><td>13/05/2024</td><td>430 pts</td></tr>
</table>
<h2>Bassin : 50 m</h2>
<table>
<tr><td>50 NL</td><td>31.00</td><td>01/07/2024</td><td>420 pts</td></tr>
</table>
</body></html>`

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	err   error
	gate  chan struct{}
	calls int
}

func (f *fakeFetcher) FetchResults(ctx context.Context, iuf string) (string, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.pages[iuf], nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func startService(fetcher service.Fetcher, opts ...service.Option) *service.Service {
	svc := service.New(append([]service.Option{service.WithFetcher(fetcher)}, opts...)...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(
			service.WithWorkerCount(3),
			service.WithQueueSize(10),
			service.WithGuardSize(5),
			service.WithFetcher(&fakeFetcher{}),
		)
		defer svc.Stop()

		Convey("When it is not started", func() {
			_, err := svc.Sync(context.Background(), model.SyncRequest{AthleteID: "a1", IUF: "1"})

			Convey("Then syncs are refused", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})

		Convey("When starting the service", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)

			Convey("Then stats reflect the configuration", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["workerCount"], ShouldEqual, 3)
				So(stats["queueCapacity"], ShouldEqual, 10)
				So(stats["totalRecords"], ShouldEqual, 0)
				So(stats["mergePolicy"], ShouldEqual, "abort")
			})

			Convey("And stopping it", func() {
				svc.Stop()
				svc.Stop()

				Convey("Then it is marked as stopped", func() {
					So(svc.GetStats()["started"], ShouldEqual, false)
				})

				Convey("Then it can be started again", func() {
					So(svc.Start(context.Background()), ShouldBeNil)
					So(svc.GetStats()["started"], ShouldEqual, true)
				})
			})
		})
	})
}

func TestService_Sync(t *testing.T) {
	Convey("Given a started service and a federation page", t, func() {
		fetcher := &fakeFetcher{pages: map[string]string{"111": resultsPage}}
		svc := startService(fetcher)
		defer svc.Stop()
		ctx := context.Background()
		req := model.SyncRequest{AthleteID: "a1", AthleteName: "Léa", IUF: "111"}

		Convey("When syncing a new athlete", func() {
			summary, err := svc.Sync(ctx, req)

			Convey("Then every best time is inserted", func() {
				So(err, ShouldBeNil)
				So(summary, ShouldResemble, model.Summary{Inserted: 3})
			})

			Convey("Then the records are stored with notes", func() {
				records, err := svc.Records(ctx, "a1")
				So(err, ShouldBeNil)
				So(records, ShouldHaveLength, 3)
				So(records[0].EventName, ShouldEqual, "100 NL")
				So(*records[0].TimeSeconds, ShouldEqual, 65.40)
				So(*records[1].Notes, ShouldEqual, "Nageur: Léa | 450 pts FFN")
				So(records[2].PoolLength, ShouldEqual, 50)
			})

			Convey("And syncing again with the same page", func() {
				summary, err := svc.Sync(ctx, req)

				Convey("Then everything is skipped", func() {
					So(err, ShouldBeNil)
					So(summary, ShouldResemble, model.Summary{Skipped: 3})
				})
			})

			Convey("And syncing with a faster time", func() {
				fetcher.pages["111"] = `Bassin : 25 m<table><tr><td>50 NL</td><td>29.80</td></tr></table>`
				summary, err := svc.Sync(ctx, req)

				Convey("Then that record is updated", func() {
					So(err, ShouldBeNil)
					So(summary, ShouldResemble, model.Summary{Updated: 1})
				})
			})
		})

		Convey("When required fields are missing", func() {
			_, err1 := svc.Sync(ctx, model.SyncRequest{IUF: "111"})
			_, err2 := svc.Sync(ctx, model.SyncRequest{AthleteID: "a1", IUF: "   "})

			Convey("Then the request is rejected before any fetch", func() {
				So(errors.Is(err1, service.ErrBadRequest), ShouldBeTrue)
				So(errors.Is(err2, service.ErrBadRequest), ShouldBeTrue)
				So(fetcher.callCount(), ShouldEqual, 0)
			})
		})

		Convey("When the federation is down", func() {
			fetcher.err = fmt.Errorf("%w: 503", federation.ErrUpstream)
			_, err := svc.Sync(ctx, req)

			Convey("Then the upstream error is surfaced", func() {
				So(errors.Is(err, federation.ErrUpstream), ShouldBeTrue)
			})
		})

		Convey("When the page has no records", func() {
			fetcher.pages["111"] = "<html>maintenance</html>"
			summary, err := svc.Sync(ctx, req)

			Convey("Then nothing is written", func() {
				So(err, ShouldBeNil)
				So(summary.Total(), ShouldEqual, 0)
			})
		})
	})
}

func TestService_SyncInProgress(t *testing.T) {
	Convey("Given a sync blocked on the federation", t, func() {
		fetcher := &fakeFetcher{pages: map[string]string{"111": resultsPage}, gate: make(chan struct{})}
		svc := startService(fetcher)
		defer svc.Stop()
		ctx := context.Background()
		req := model.SyncRequest{AthleteID: "a1", IUF: "111"}

		done := make(chan error, 1)
		go func() {
			_, err := svc.Sync(ctx, req)
			done <- err
		}()

		deadline := time.Now().Add(2 * time.Second)
		for svc.GetStats()["inFlight"] != int64(1) && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}

		Convey("When a second sync for the same athlete arrives", func() {
			_, err := svc.Sync(ctx, req)
			queued := svc.EnqueueSync(ctx, req)
			close(fetcher.gate)
			firstErr := <-done
			_, again := svc.Sync(ctx, req)

			Convey("Then it is refused while the first runs and accepted afterwards", func() {
				So(errors.Is(err, service.ErrSyncInProgress), ShouldBeTrue)
				So(queued, ShouldBeFalse)
				So(firstErr, ShouldBeNil)
				So(again, ShouldBeNil)
			})
		})
	})
}

type failingStore struct {
	repository.Store
}

func (failingStore) InsertRecord(context.Context, *model.StoredRecord) error {
	return errors.New("disk full")
}

func TestService_MergePolicy(t *testing.T) {
	Convey("Given a store that cannot insert", t, func() {
		mem := repository.NewMemoryStore(context.Background())
		defer func() { _ = mem.Close() }()
		store := failingStore{Store: mem}
		fetcher := &fakeFetcher{pages: map[string]string{"111": resultsPage}}
		req := model.SyncRequest{AthleteID: "a1", IUF: "111"}

		Convey("When the service aborts on error", func() {
			svc := startService(fetcher, service.WithStore(store))
			defer svc.Stop()
			_, err := svc.Sync(context.Background(), req)

			Convey("Then the sync fails with a store error", func() {
				So(errors.Is(err, merge.ErrStore), ShouldBeTrue)
			})
		})

		Convey("When the service continues on error", func() {
			svc := startService(fetcher, service.WithStore(store), service.WithMergePolicy(merge.ContinueOnError))
			defer svc.Stop()
			summary, err := svc.Sync(context.Background(), req)

			Convey("Then every record is counted as failed", func() {
				So(err, ShouldBeNil)
				So(summary, ShouldResemble, model.Summary{Failed: 3})
			})
		})
	})
}

func TestService_Parse(t *testing.T) {
	Convey("Given a results page", t, func() {
		svc := service.New()

		Convey("When parsing without starting", func() {
			records, stats := svc.Parse(context.Background(), resultsPage)

			Convey("Then the parser still runs", func() {
				So(records, ShouldHaveLength, 3)
				So(stats.Sections, ShouldEqual, 2)
				So(stats.Discarded, ShouldEqual, 1)
			})
		})
	})
}

func TestService_Records(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService(&fakeFetcher{})
		defer svc.Stop()

		Convey("When asking for records without an athlete", func() {
			_, err := svc.Records(context.Background(), " ")
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
		})

		Convey("When the athlete has no records", func() {
			records, err := svc.Records(context.Background(), "nobody")
			So(err, ShouldBeNil)
			So(records, ShouldBeEmpty)
		})
	})
}
