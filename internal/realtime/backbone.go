package realtime

import (
	"context"
	"sync"
	"sync/atomic"
)

// Backbone relays envelopes between server instances. Publish must keep the
// order of calls made from one goroutine.
type Backbone interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe calls fn for every envelope until ctx is cancelled.
	Subscribe(ctx context.Context, fn func(Envelope)) error
	Close() error
}

// DropCounter is implemented by backbones that shed envelopes when a
// subscriber falls behind.
type DropCounter interface {
	Dropped() uint64
}

// LocalBackbone is an in-process backbone. Several bridges sharing one
// LocalBackbone behave like instances sharing a broker.
type LocalBackbone struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Envelope
	nextID  uint64
	buffer  int
	dropped atomic.Uint64
}

func NewLocalBackbone(buffer int) *LocalBackbone {
	if buffer <= 0 {
		buffer = 1024
	}
	return &LocalBackbone{
		subs:   map[uint64]chan Envelope{},
		buffer: buffer,
	}
}

func (l *LocalBackbone) Publish(_ context.Context, env Envelope) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, ch := range l.subs {
		select {
		case ch <- env:
		default:
			l.dropped.Add(1)
		}
	}
	return nil
}

func (l *LocalBackbone) Subscribe(ctx context.Context, fn func(Envelope)) error {
	ch := make(chan Envelope, l.buffer)

	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-ch:
			fn(env)
		}
	}
}

// Dropped counts envelopes a full subscriber buffer could not take.
func (l *LocalBackbone) Dropped() uint64 {
	return l.dropped.Load()
}

func (l *LocalBackbone) Close() error { return nil }
