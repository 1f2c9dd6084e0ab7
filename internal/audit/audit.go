// Package audit appends item history records without blocking the caller.
package audit

import (
	"context"
	"sync"
	"time"

	"site-delivery-backend/internal/logger"
	"site-delivery-backend/internal/metrics"
	"site-delivery-backend/internal/model"
)

// Recorder accepts history records. Record never fails from the caller's
// point of view.
type Recorder interface {
	Record(entry model.ItemHistory)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(entry model.ItemHistory)

func (f RecorderFunc) Record(entry model.ItemHistory) { f(entry) }

// Writer persists one record.
type Writer interface {
	InsertItemHistory(ctx context.Context, entry *model.ItemHistory) error
}

// Pool writes records on a fixed number of worker goroutines. Records that do
// not fit in the queue, or fail to write, are logged and counted as dropped.
type Pool struct {
	size    int
	jobs    chan model.ItemHistory
	writer  Writer
	log     logger.Logger
	metrics *metrics.Metrics

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPool creates a pool. Start must be called before records are written.
func NewPool(size, queueSize int, writer Writer, log logger.Logger, m *metrics.Metrics) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		size:    size,
		jobs:    make(chan model.ItemHistory, queueSize),
		writer:  writer,
		log:     log,
		metrics: m,
	}
}

// Start launches the workers. They exit when ctx is done or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case entry, ok := <-p.jobs:
			if !ok {
				return
			}
			p.write(ctx, entry)
		case <-ctx.Done():
			p.log.Debug("audit worker shutting down", "worker", id)
			return
		}
	}
}

func (p *Pool) write(ctx context.Context, entry model.ItemHistory) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.writer.InsertItemHistory(writeCtx, &entry); err != nil {
		p.metrics.AuditDropped.Inc()
		p.log.Error("failed to write item history", "item_id", entry.ItemID, "action", entry.Action, "error", err)
	}
}

// Record queues entry. When the queue is full the record is dropped.
func (p *Pool) Record(entry model.ItemHistory) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	select {
	case p.jobs <- entry:
	default:
		p.metrics.AuditDropped.Inc()
		p.log.Warn("audit queue full, dropping item history", "item_id", entry.ItemID, "action", entry.Action)
	}
}

// Stop closes the queue and waits for queued records to be written.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}
