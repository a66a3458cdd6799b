package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/ffnsync/pkg/metrics"
)

// metricsUpdater periodically publishes the stored record count.
type metricsUpdater struct {
	wg       sync.WaitGroup
	stopChan chan struct{}
	once     sync.Once
}

func (u *metricsUpdater) start(ctx context.Context, interval time.Duration, count func(context.Context) (int, error)) {
	u.stopChan = make(chan struct{})
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-u.stopChan:
				return
			case <-ticker.C:
				if n, err := count(ctx); err == nil {
					metrics.UpdateStoredRecords(n)
				}
			}
		}
	}()
}

func (u *metricsUpdater) stop() {
	u.once.Do(func() {
		if u.stopChan != nil {
			close(u.stopChan)
		}
	})
	u.wg.Wait()
}
