// Package events carries committed bidding facts from the arbitrator to
// whoever delivers them to viewers.
package events

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
)

type Kind string

const (
	KindBid       Kind = "bid"
	KindSoftClose Kind = "soft_close"
	KindLotClosed Kind = "lot_closed"
)

// Event is one committed fact. Exactly one of the payload pointers is set,
// matching Kind.
type Event struct {
	Kind      Kind
	TenantID  uuid.UUID
	LotID     uuid.UUID
	AuctionID uuid.UUID
	// Sequence is the lot's bid count when the fact was committed.
	Sequence  int64
	Bid       *model.Bid
	SoftClose *model.SoftCloseEvent
	LotClosed *model.LotClosedEvent
}

type Handler func(Event)

type Stats struct {
	Published uint64
	Dropped   uint64
}

// Bus fans events out to subscribers without ever blocking the emitter.
// Events are sharded by lot and each shard is drained by one goroutine, so
// subscribers see a lot's events in emit order.
type Bus struct {
	shards []chan Event
	log    *logger.Logger

	mu     sync.RWMutex
	subs   map[uint64]Handler
	nextID uint64

	published atomic.Uint64
	dropped   atomic.Uint64

	statsInterval time.Duration
}

func NewBus(shards, buffer int, log *logger.Logger) *Bus {
	if shards <= 0 {
		shards = 1
	}
	if buffer <= 0 {
		buffer = 256
	}
	b := &Bus{
		shards:        make([]chan Event, shards),
		log:           log.Component("events"),
		subs:          map[uint64]Handler{},
		statsInterval: time.Minute,
	}
	for i := range b.shards {
		b.shards[i] = make(chan Event, buffer)
	}
	return b
}

func (b *Bus) EmitBid(bid model.Bid) {
	b.emit(Event{
		Kind:      KindBid,
		TenantID:  bid.TenantID,
		LotID:     bid.LotID,
		AuctionID: bid.AuctionID,
		Sequence:  bid.Sequence,
		Bid:       &bid,
	})
}

func (b *Bus) EmitSoftClose(ev model.SoftCloseEvent) {
	b.emit(Event{
		Kind:      KindSoftClose,
		TenantID:  ev.TenantID,
		LotID:     ev.LotID,
		AuctionID: ev.AuctionID,
		Sequence:  ev.Sequence,
		SoftClose: &ev,
	})
}

func (b *Bus) EmitLotClosed(ev model.LotClosedEvent) {
	b.emit(Event{
		Kind:      KindLotClosed,
		TenantID:  ev.TenantID,
		LotID:     ev.LotID,
		AuctionID: ev.AuctionID,
		Sequence:  ev.Sequence,
		LotClosed: &ev,
	})
}

func (b *Bus) emit(ev Event) {
	select {
	case b.shards[b.shardOf(ev.LotID)] <- ev:
		b.published.Add(1)
	default:
		// Shard full; the emitter must not wait on slow delivery.
		b.dropped.Add(1)
	}
}

// Subscribe registers h for every event. The returned func removes it.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *Bus) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Dropped:   b.dropped.Load(),
	}
}

// Run drains the shards until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, ch := range b.shards {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.drain(ctx, ch)
		}()
	}

	statsTicker := time.NewTicker(b.statsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-statsTicker.C:
			s := b.Stats()
			b.log.Infow("event bus stats", "published", s.Published, "dropped", s.Dropped)
		}
	}
}

func (b *Bus) drain(ctx context.Context, ch <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			b.deliver(ev)
		}
	}
}

func (b *Bus) deliver(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.safeCall(h, ev)
	}
}

func (b *Bus) safeCall(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorw("event handler panicked", "kind", ev.Kind, "lot_id", ev.LotID, "panic", r)
		}
	}()
	h(ev)
}

func (b *Bus) shardOf(lotID uuid.UUID) int {
	h := fnv.New32a()
	_, _ = h.Write(lotID[:])
	return int(h.Sum32() % uint32(len(b.shards)))
}
