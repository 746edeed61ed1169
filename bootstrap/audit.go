package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/datagate/ports"
)

// LocalAuditRecorder buffers audit entries and writes them in batches to the store.
type LocalAuditRecorder struct {
	store         ports.AuditStore
	buffer        []ports.AuditEntry
	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// NewLocalAuditRecorder creates a new local audit recorder.
func NewLocalAuditRecorder(store ports.AuditStore, batchSize int, flushInterval time.Duration) *LocalAuditRecorder {
	if batchSize == 0 {
		batchSize = 100
	}
	if flushInterval == 0 {
		flushInterval = 10 * time.Second
	}

	r := &LocalAuditRecorder{
		store:         store,
		buffer:        make([]ports.AuditEntry, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}

	r.wg.Add(1)
	go r.flushLoop()

	return r
}

// Record queues an audit entry for processing.
func (r *LocalAuditRecorder) Record(e ports.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, e)

	if len(r.buffer) >= r.batchSize {
		r.flushLocked(context.Background())
	}
}

// Flush forces immediate processing of queued entries.
func (r *LocalAuditRecorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked(ctx)
}

func (r *LocalAuditRecorder) flushLocked(ctx context.Context) error {
	if len(r.buffer) == 0 {
		return nil
	}

	entries := make([]ports.AuditEntry, len(r.buffer))
	copy(entries, r.buffer)
	r.buffer = r.buffer[:0]

	// Write in background to not block dispatch.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		r.store.RecordBatch(ctx, entries)
	}()

	return nil
}

func (r *LocalAuditRecorder) flushLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Flush(context.Background())
		case <-r.stopCh:
			return
		}
	}
}

// Close stops the recorder and flushes remaining entries.
func (r *LocalAuditRecorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r.mu.Lock()
		defer r.mu.Unlock()

		if len(r.buffer) > 0 {
			err = r.store.RecordBatch(ctx, r.buffer)
		}
	})
	return err
}
