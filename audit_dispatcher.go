package authstack

import (
	"sync"
	"sync/atomic"
)

// auditDispatcher decouples engine operations from sink latency. Events go
// through a buffered channel drained by one worker goroutine; a full buffer
// either drops the event or blocks the caller, per configuration.
type auditDispatcher struct {
	sink       AuditSink
	ch         chan AuditEvent
	dropIfFull bool
	dropped    atomic.Uint64
	onDrop     func()

	closeOnce sync.Once
	done      chan struct{}
}

func newAuditDispatcher(sink AuditSink, buffer int, dropIfFull bool, onDrop func()) *auditDispatcher {
	if buffer < 1 {
		buffer = 1
	}
	d := &auditDispatcher{
		sink:       sink,
		ch:         make(chan AuditEvent, buffer),
		dropIfFull: dropIfFull,
		onDrop:     onDrop,
		done:       make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.done)
	for ev := range d.ch {
		d.sink.Write(ev)
	}
}

// Emit enqueues ev. Safe for concurrent use; never called after Close by
// engine code because Close is part of engine shutdown.
func (d *auditDispatcher) Emit(ev AuditEvent) {
	if d.dropIfFull {
		select {
		case d.ch <- ev:
		default:
			d.dropped.Add(1)
			if d.onDrop != nil {
				d.onDrop()
			}
		}
		return
	}
	d.ch <- ev
}

// Dropped returns how many events were discarded on a full buffer.
func (d *auditDispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close drains the queue and stops the worker.
func (d *auditDispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.ch)
		<-d.done
	})
}
