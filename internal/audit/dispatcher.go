// Package audit assembles one row per inbound API request, including at most
// one correlated downstream call, and persists it off the request path.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brizzai/auth-gateway/internal/config"
	"github.com/brizzai/auth-gateway/internal/logger"
	"github.com/brizzai/auth-gateway/internal/store"
	"go.uber.org/zap"
)

// Writer persists audit rows. Implemented by the SQLite row store.
type Writer interface {
	InsertRequestLog(ctx context.Context, row store.RequestLogRow) error
}

// Dispatcher decouples audit persistence from the request: records go onto a
// bounded queue and a single goroutine writes them. A write failure is
// logged at warning level and never reaches the caller; the trail is
// best-effort, not transactional with the request it describes.
type Dispatcher struct {
	writer    Writer
	ch        chan store.RequestLogRow
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
	block     bool
}

// NewDispatcher creates and starts a dispatcher.
func NewDispatcher(writer Writer, cfg *config.Config) *Dispatcher {
	bufferSize := cfg.Audit.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1
	}

	d := &Dispatcher{
		writer: writer,
		ch:     make(chan store.RequestLogRow, bufferSize),
		done:   make(chan struct{}),
		block:  cfg.Audit.Overflow == config.Block,
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case row := <-d.ch:
			d.persist(row)
		case <-d.done:
			for {
				select {
				case row := <-d.ch:
					d.persist(row)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) persist(row store.RequestLogRow) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.writer.InsertRequestLog(ctx, row); err != nil {
		logger.Warn("Failed to persist request log", zap.Error(err))
	}
}

// Enqueue submits a row for persistence. Under the drop-newest policy a full
// queue discards the row and counts the drop; the caller is never blocked.
func (d *Dispatcher) Enqueue(row store.RequestLogRow) {
	if d == nil || d.closed.Load() {
		return
	}

	if d.block {
		select {
		case d.ch <- row:
		case <-d.done:
		}
		return
	}

	select {
	case d.ch <- row:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
}

// Close drains the queue and stops the writer goroutine.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns how many rows were discarded by the overflow policy.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
