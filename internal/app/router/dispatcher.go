package router

import (
	"context"
	"sync"

	"github.com/keeperstack/wallet_bridge/internal/app/system"
	"github.com/keeperstack/wallet_bridge/pkg/logger"
)

// Dispatcher executes completion callbacks on one designated goroutine so
// response delivery ordering is deterministic regardless of which goroutine
// finished the underlying work.
type Dispatcher struct {
	ch   chan func()
	quit chan struct{}
	wg   sync.WaitGroup
	once sync.Once
	log  *logger.Logger
}

var _ system.Service = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher with the given queue depth.
func NewDispatcher(buffer int, log *logger.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 1024
	}
	if log == nil {
		log = logger.NewDefault("dispatcher")
	}
	return &Dispatcher{
		ch:   make(chan func(), buffer),
		quit: make(chan struct{}),
		log:  log,
	}
}

func (d *Dispatcher) Name() string { return "dispatcher" }

// Start launches the delivery goroutine.
func (d *Dispatcher) Start(_ context.Context) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case fn := <-d.ch:
				fn()
			case <-d.quit:
				// Drain whatever is already queued, then exit.
				for {
					select {
					case fn := <-d.ch:
						fn()
					default:
						return
					}
				}
			}
		}
	}()
	return nil
}

// Stop drains the queue and halts delivery.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.once.Do(func() { close(d.quit) })

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue schedules fn on the delivery goroutine. After shutdown callbacks
// run inline on the caller's goroutine; they are never dropped.
func (d *Dispatcher) Enqueue(fn func()) {
	select {
	case <-d.quit:
		fn()
		return
	default:
	}
	select {
	case d.ch <- fn:
	case <-d.quit:
		fn()
	}
}
