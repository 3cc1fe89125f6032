package realtime

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
)

// Client is one connected viewer.
type Client struct {
	TenantID uuid.UUID
	UserID   uuid.UUID

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	groups map[string]struct{}
}

// Send returns the outbound queue drained by the connection writer.
func (c *Client) Send() <-chan []byte { return c.send }

// Done is closed when the hub drops the client.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

const (
	// How long an envelope waits for the sequences before it.
	defaultReorderWait = 250 * time.Millisecond
	// How long a closed lot's stream is kept to reject late duplicates.
	defaultClosedRetention = time.Minute
)

// lotStream orders one lot's envelopes. mu is held from the ordering decision
// until the message sits in every viewer's queue.
type lotStream struct {
	mu      sync.Mutex
	started bool
	seq     int64
	types   map[MessageType]struct{}
	held    map[int64][]Envelope
	timer   *time.Timer
	gen     uint64
	closed  bool
}

// Hub keeps viewers in lot and auction groups and delivers envelopes to them.
// A client that cannot keep up is evicted rather than slowing the others.
type Hub struct {
	mu      sync.RWMutex
	groups  map[string]map[*Client]struct{}
	clients map[*Client]struct{}

	streamsMu sync.Mutex
	streams   map[uuid.UUID]*lotStream

	sendBuffer      int
	reorderWait     time.Duration
	closedRetention time.Duration
	log             *logger.Logger

	delivered atomic.Uint64
	stale     atomic.Uint64
	evicted   atomic.Uint64
	gaps      atomic.Uint64
}

func NewHub(sendBuffer int, log *logger.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Hub{
		groups:          map[string]map[*Client]struct{}{},
		clients:         map[*Client]struct{}{},
		streams:         map[uuid.UUID]*lotStream{},
		sendBuffer:      sendBuffer,
		reorderWait:     defaultReorderWait,
		closedRetention: defaultClosedRetention,
		log:             log.Component("hub"),
	}
}

// WithTimings changes how long an out of order envelope is held and how long
// a closed lot is remembered.
func (h *Hub) WithTimings(reorderWait, closedRetention time.Duration) *Hub {
	h.reorderWait = reorderWait
	h.closedRetention = closedRetention
	return h
}

func (h *Hub) Register(tenantID, userID uuid.UUID) *Client {
	c := &Client{
		TenantID: tenantID,
		UserID:   userID,
		send:     make(chan []byte, h.sendBuffer),
		done:     make(chan struct{}),
		groups:   map[string]struct{}{},
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// Unregister removes the client from every group and closes it.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.mu.Lock()
		for key := range c.groups {
			h.removeLocked(key, c)
		}
		c.groups = map[string]struct{}{}
		c.mu.Unlock()
	}
	h.mu.Unlock()
	c.close()
}

// Join adds the client to a group of its own tenant.
func (h *Hub) Join(c *Client, scope string, id uuid.UUID) {
	key := groupKey(c.TenantID, scope, id)
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.groups[key]
	if !ok {
		members = map[*Client]struct{}{}
		h.groups[key] = members
	}
	members[c] = struct{}{}

	c.mu.Lock()
	c.groups[key] = struct{}{}
	c.mu.Unlock()
}

func (h *Hub) Leave(c *Client, scope string, id uuid.UUID) {
	key := groupKey(c.TenantID, scope, id)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(key, c)

	c.mu.Lock()
	delete(c.groups, key)
	c.mu.Unlock()
}

func (h *Hub) removeLocked(key string, c *Client) {
	members, ok := h.groups[key]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.groups, key)
	}
}

// GroupSize reports the number of clients in a group.
func (h *Hub) GroupSize(tenantID uuid.UUID, scope string, id uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[groupKey(tenantID, scope, id)])
}

// Deliver sends the envelope to the lot group and the auction group in the
// lot's sequence order. An envelope that arrives ahead of a missing sequence
// is held until the gap fills or the reorder wait passes. It returns false
// when the envelope is older than, or a copy of, what was already delivered.
func (h *Hub) Deliver(env Envelope) bool {
	s := h.stream(env.LotID)

	s.mu.Lock()
	accepted, slow := h.orderLocked(s, env)
	s.mu.Unlock()

	h.evict(slow, env.LotID)
	if !accepted {
		h.stale.Add(1)
	}
	return accepted
}

func (h *Hub) stream(lotID uuid.UUID) *lotStream {
	h.streamsMu.Lock()
	defer h.streamsMu.Unlock()
	s, ok := h.streams[lotID]
	if !ok {
		s = &lotStream{types: map[MessageType]struct{}{}, held: map[int64][]Envelope{}}
		h.streams[lotID] = s
	}
	return s
}

func (h *Hub) orderLocked(s *lotStream, env Envelope) (bool, []*Client) {
	switch {
	case !s.started && env.Sequence <= 1:
		s.started = true
		return true, h.advanceLocked(s, env)
	case !s.started || env.Sequence > s.seq+1:
		for _, held := range s.held[env.Sequence] {
			if held.Type == env.Type {
				return false, nil
			}
		}
		s.held[env.Sequence] = append(s.held[env.Sequence], env)
		if s.timer == nil {
			s.gen++
			gen := s.gen
			s.timer = time.AfterFunc(h.reorderWait, func() { h.expire(env.LotID, s, gen) })
		}
		return true, nil
	case env.Sequence < s.seq:
		return false, nil
	case env.Sequence == s.seq:
		if _, dup := s.types[env.Type]; dup {
			return false, nil
		}
		s.types[env.Type] = struct{}{}
		return true, h.sendLocked(s, env)
	default:
		return true, h.advanceLocked(s, env)
	}
}

// advanceLocked delivers env as the next sequence, then anything held that
// is now contiguous.
func (h *Hub) advanceLocked(s *lotStream, env Envelope) []*Client {
	s.seq = env.Sequence
	s.types = map[MessageType]struct{}{env.Type: {}}
	slow := h.sendLocked(s, env)
	return append(slow, h.flushLocked(s)...)
}

func (h *Hub) flushLocked(s *lotStream) []*Client {
	var slow []*Client
	for {
		next, ok := s.held[s.seq+1]
		if !ok {
			break
		}
		delete(s.held, s.seq+1)
		s.seq++
		s.types = map[MessageType]struct{}{}
		for _, e := range next {
			s.types[e.Type] = struct{}{}
			slow = append(slow, h.sendLocked(s, e)...)
		}
	}
	if len(s.held) == 0 && s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return slow
}

// expire gives up on the missing sequences and delivers from the lowest held
// one onward.
func (h *Hub) expire(lotID uuid.UUID, s *lotStream, gen uint64) {
	s.mu.Lock()
	if s.timer == nil || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	var slow []*Client
	if len(s.held) > 0 {
		lowest := int64(-1)
		for seq := range s.held {
			if lowest < 0 || seq < lowest {
				lowest = seq
			}
		}
		h.gaps.Add(1)
		h.log.Warnw("sequence gap skipped", "lot_id", lotID, "from", s.seq, "to", lowest)

		s.started = true
		s.seq = lowest - 1
		slow = h.flushLocked(s)
	}
	s.mu.Unlock()

	h.evict(slow, lotID)
}

// sendLocked puts the envelope on the viewers' queues and returns those whose
// queue was full.
func (h *Hub) sendLocked(s *lotStream, env Envelope) []*Client {
	if env.Type == MsgLotClosed && !s.closed {
		s.closed = true
		time.AfterFunc(h.closedRetention, func() { h.forget(env.LotID, s) })
	}

	msg, err := json.Marshal(Outbound{Type: env.Type, Data: env.Data})
	if err != nil {
		h.log.Errorw("failed to encode envelope", "lot_id", env.LotID, "error", err)
		return nil
	}

	var slow []*Client
	seen := map[*Client]struct{}{}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, key := range []string{lotGroup(env.TenantID, env.LotID), auctionGroup(env.TenantID, env.AuctionID)} {
		for c := range h.groups[key] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			select {
			case c.send <- msg:
				h.delivered.Add(1)
			default:
				slow = append(slow, c)
			}
		}
	}
	return slow
}

func (h *Hub) forget(lotID uuid.UUID, s *lotStream) {
	h.streamsMu.Lock()
	defer h.streamsMu.Unlock()
	if h.streams[lotID] == s {
		delete(h.streams, lotID)
	}
}

func (h *Hub) evict(slow []*Client, lotID uuid.UUID) {
	for _, c := range slow {
		h.evicted.Add(1)
		h.log.Warnw("evicting slow viewer", "user_id", c.UserID, "lot_id", lotID)
		h.Unregister(c)
	}
}

// Lots reports how many lot streams the hub is tracking.
func (h *Hub) Lots() int {
	h.streamsMu.Lock()
	defer h.streamsMu.Unlock()
	return len(h.streams)
}

// Enqueue queues a direct message for one client. It reports false when the
// client's queue is full.
func (h *Hub) Enqueue(c *Client, msg Outbound) bool {
	select {
	case c.send <- encode(msg):
		return true
	default:
		return false
	}
}

type HubStats struct {
	Clients   int    `json:"clients"`
	Groups    int    `json:"groups"`
	Delivered uint64 `json:"delivered"`
	Stale     uint64 `json:"stale"`
	Evicted   uint64 `json:"evicted"`
	Gaps      uint64 `json:"gaps"`
	Lots      int    `json:"lots"`
}

func (h *Hub) Stats() HubStats {
	lots := h.Lots()
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{
		Gaps:      h.gaps.Load(),
		Lots:      lots,
		Clients:   len(h.clients),
		Groups:    len(h.groups),
		Delivered: h.delivered.Load(),
		Stale:     h.stale.Load(),
		Evicted:   h.evicted.Load(),
	}
}
