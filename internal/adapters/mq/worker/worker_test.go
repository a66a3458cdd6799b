package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/ffnsync/internal/adapters/mq/queue"
	worker "github.com/okian/ffnsync/internal/adapters/mq/worker"
	model "github.com/okian/ffnsync/internal/domain/model"
	logging "github.com/okian/ffnsync/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logging.Init(); err != nil {
		panic(err)
	}
}

type mockQueue struct {
	jobs chan queue.Job
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	close(mq.jobs)
	return nil
}

type mockSyncer struct {
	mu       sync.Mutex
	calls    []string
	errors   map[string]error
	block    chan struct{}
	deadline bool
}

func newMockSyncer() *mockSyncer {
	return &mockSyncer{errors: make(map[string]error)}
}

func (ms *mockSyncer) Sync(ctx context.Context, req model.SyncRequest) (model.Summary, error) {
	if ms.block != nil {
		select {
		case <-ms.block:
		case <-ctx.Done():
			return model.Summary{}, ctx.Err()
		}
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	_, ms.deadline = ctx.Deadline()
	ms.calls = append(ms.calls, req.AthleteID)
	if err, ok := ms.errors[req.AthleteID]; ok {
		return model.Summary{}, err
	}
	return model.Summary{Inserted: 1}, nil
}

func (ms *mockSyncer) callCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.calls)
}

type mockReleaser struct {
	mu       sync.Mutex
	released []string
}

func (mr *mockReleaser) Unrecord(_ context.Context, id string) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.released = append(mr.released, id)
}

func (mr *mockReleaser) count() int {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	return len(mr.released)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker with a queue, syncer and releaser", t, func() {
		q := newMockQueue()
		syncer := newMockSyncer()
		releaser := &mockReleaser{}
		w := worker.NewInMemoryWorker(q, syncer, releaser, worker.WithName("test"), worker.WithJobTimeout(time.Second))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job is queued", func() {
			q.jobs <- model.SyncRequest{AthleteID: "a1", IUF: "1"}

			convey.Convey("Then it is synced under a deadline and released", func() {
				convey.So(waitFor(func() bool { return releaser.count() == 1 }), convey.ShouldBeTrue)
				convey.So(syncer.callCount(), convey.ShouldEqual, 1)
				convey.So(syncer.deadline, convey.ShouldBeTrue)
				convey.So(w.Processed(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When a job fails", func() {
			syncer.errors["bad"] = errors.New("upstream down")
			q.jobs <- model.SyncRequest{AthleteID: "bad", IUF: "1"}
			q.jobs <- model.SyncRequest{AthleteID: "good", IUF: "2"}

			convey.Convey("Then the slot is still released and the worker keeps going", func() {
				convey.So(waitFor(func() bool { return releaser.count() == 2 }), convey.ShouldBeTrue)
				convey.So(w.Failed(), convey.ShouldEqual, 1)
				convey.So(w.Processed(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the worker is shut down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then it stops cleanly and a second shutdown is harmless", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}

func TestInMemoryWorkerTimeout(t *testing.T) {
	convey.Convey("Given a syncer that never finishes", t, func() {
		q := newMockQueue()
		syncer := newMockSyncer()
		syncer.block = make(chan struct{})
		releaser := &mockReleaser{}
		w := worker.NewInMemoryWorker(q, syncer, releaser, worker.WithJobTimeout(20*time.Millisecond))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)
		q.jobs <- model.SyncRequest{AthleteID: "slow"}

		convey.Convey("Then the job times out, fails and is released", func() {
			convey.So(waitFor(func() bool { return releaser.count() == 1 }), convey.ShouldBeTrue)
			convey.So(w.Failed(), convey.ShouldEqual, 1)
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of three workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(50))
		syncer := newMockSyncer()
		releaser := &mockReleaser{}
		pool := worker.NewPool(3, q, syncer, releaser)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When many jobs are queued", func() {
			for i := 0; i < 20; i++ {
				q.Enqueue(ctx, model.SyncRequest{AthleteID: fmt.Sprintf("a%d", i)})
			}

			convey.Convey("Then every job is processed", func() {
				convey.So(waitFor(func() bool { return releaser.count() == 20 }), convey.ShouldBeTrue)
				convey.So(pool.Processed(), convey.ShouldEqual, 20)
				convey.So(pool.Size(), convey.ShouldEqual, 3)
			})

			convey.Convey("And the pool shuts down", func() {
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
				pool.Stop()
			})
		})
	})

	convey.Convey("Given a pool with no worker count", t, func() {
		pool := worker.NewPool(0, newMockQueue(), newMockSyncer(), nil)
		convey.So(pool.Size(), convey.ShouldEqual, 2)
	})
}
