package cleanup

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
)

type fakeStore struct {
	sweeps atomic.Int32
}

func (f *fakeStore) PurgeExpired() int {
	f.sweeps.Add(1)
	return 2
}

func (f *fakeStore) Len() int { return 0 }

func TestWorkerSweepsUntilCancelled(t *testing.T) {
	store := &fakeStore{}
	w := NewWorker(store, &Config{CleanupInterval: 5 * time.Millisecond}, logging.NewDiscardLogger())

	var purged atomic.Int32
	w.OnPurge(func(n int) { purged.Add(int32(n)) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for store.sweeps.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("worker did not sweep")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done

	if purged.Load() < 4 {
		t.Fatalf("purged = %d", purged.Load())
	}
}
