// Package indicator presents session statuses: log lines, desktop
// notifications with sound cues, and a terminal spinner.
package indicator

import (
	"sync"

	"go.uber.org/zap"

	"github.com/fmueller/voxdict/internal/session"
)

const dispatchBuffer = 64

// Dispatcher fans statuses out to its sinks on one goroutine, so a slow
// notification never stalls the state machine and every sink sees the same
// order.
type Dispatcher struct {
	sinks  []session.StatusSink
	logger *zap.Logger
	queue  chan session.Status
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(logger *zap.Logger, sinks ...session.StatusSink) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		sinks:  sinks,
		logger: logger,
		queue:  make(chan session.Status, dispatchBuffer),
		done:   make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) Publish(s session.Status) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	d.queue <- s
}

// Close delivers what is queued and stops the dispatcher.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for s := range d.queue {
		for _, sink := range d.sinks {
			d.deliver(sink, s)
		}
	}
}

func (d *Dispatcher) deliver(sink session.StatusSink, s session.Status) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("status sink panicked", zap.Any("panic", r), zap.Stringer("status", s))
		}
	}()
	sink.Publish(s)
}
