package viewer

import (
	"context"
	"sync"
	"time"

	"site-delivery-backend/internal/logger"
)

// SelectionHandler receives a selection that differs from the last one seen.
type SelectionHandler func(ctx context.Context, sel []Selection) error

// SelectionPoller polls the viewer's selection at a fixed interval and hands
// every new, non-empty selection to a handler. A selection equal to the last
// processed one (by SelectionKey) is skipped.
type SelectionPoller struct {
	client   Client
	interval time.Duration
	handle   SelectionHandler
	log      logger.Logger

	mu      sync.Mutex
	lastKey string
}

// NewSelectionPoller creates a poller. It does nothing until Run or PollOnce.
func NewSelectionPoller(client Client, interval time.Duration, handle SelectionHandler, log logger.Logger) *SelectionPoller {
	return &SelectionPoller{
		client:   client,
		interval: interval,
		handle:   handle,
		log:      log,
	}
}

// Run polls until ctx is cancelled.
func (p *SelectionPoller) Run(ctx context.Context) {
	p.PollOnce(ctx)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Debug("selection poller stopped")
			return
		case <-timer.C:
			p.PollOnce(ctx)
			timer.Reset(p.interval)
		}
	}
}

// PollOnce reads the selection once and reports whether the handler ran.
// Errors are logged; a failed handler call leaves the key unset so the same
// selection is retried on the next tick.
func (p *SelectionPoller) PollOnce(ctx context.Context) bool {
	sel, err := p.client.GetSelection(ctx)
	if err != nil {
		p.log.Warn("failed to read viewer selection", "error", err)
		return false
	}

	key := SelectionKey(sel)
	p.mu.Lock()
	if key == p.lastKey {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	if key == "" {
		p.setKey(key)
		return false
	}

	if err := p.handle(ctx, sel); err != nil {
		p.log.Warn("failed to process viewer selection", "selection", key, "error", err)
		return false
	}
	p.setKey(key)
	return true
}

func (p *SelectionPoller) setKey(key string) {
	p.mu.Lock()
	p.lastKey = key
	p.mu.Unlock()
}
