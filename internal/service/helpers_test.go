package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
	"github.com/itsDrac/e-auc-bidding/internal/repository"
	"github.com/itsDrac/e-auc-bidding/pkg/config"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
	"github.com/stretchr/testify/require"
)

type recordingEmitter struct {
	mu        sync.Mutex
	kinds     []string
	bids      []model.Bid
	softClose []model.SoftCloseEvent
	closed    []model.LotClosedEvent
}

func (r *recordingEmitter) EmitBid(b model.Bid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, "bid")
	r.bids = append(r.bids, b)
}

func (r *recordingEmitter) EmitSoftClose(ev model.SoftCloseEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, "soft_close")
	r.softClose = append(r.softClose, ev)
}

func (r *recordingEmitter) EmitLotClosed(ev model.LotClosedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, "lot_closed")
	r.closed = append(r.closed, ev)
}

// barrierStore holds every commit until n first reads have happened, so n
// concurrent bidders all act on the same lot state.
type barrierStore struct {
	repository.Store
	n     int32
	reads atomic.Int32
	ready chan struct{}
	once  sync.Once
}

func newBarrierStore(s repository.Store, n int) *barrierStore {
	return &barrierStore{Store: s, n: int32(n), ready: make(chan struct{})}
}

func (b *barrierStore) GetLot(ctx context.Context, tenantID, lotID uuid.UUID) (model.Lot, error) {
	lot, err := b.Store.GetLot(ctx, tenantID, lotID)
	if b.reads.Add(1) == b.n {
		b.once.Do(func() { close(b.ready) })
	}
	return lot, err
}

func (b *barrierStore) CommitBid(ctx context.Context, p repository.CommitBidParams) (model.Lot, error) {
	select {
	case <-b.ready:
	case <-ctx.Done():
		return model.Lot{}, ctx.Err()
	}
	return b.Store.CommitBid(ctx, p)
}

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2025-06-01 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

type lotOpts struct {
	price     int64
	increment int64
	end       time.Time
	softClose bool
}

func createLot(t *testing.T, s repository.Store, o lotOpts) model.Lot {
	t.Helper()
	if o.increment == 0 {
		o.increment = 10
	}
	if o.price == 0 {
		o.price = 100
	}
	end := o.end
	lot, err := s.CreateLot(context.Background(), model.Lot{
		TenantID:         uuid.New(),
		AuctionID:        uuid.New(),
		Title:            "Test lot",
		InitialPrice:     o.price,
		Increment:        o.increment,
		Status:           model.LotOpen,
		EndTime:          &end,
		SoftCloseEnabled: o.softClose,
	})
	require.NoError(t, err)
	return lot
}

func softCloseCfg() config.SoftCloseConfig {
	return config.SoftCloseConfig{Window: 5 * time.Minute}
}

func newArbitrator(s repository.Store, em EventEmitter, now time.Time) *Arbitrator {
	return NewArbitrator(s, NewSoftCloseController(softCloseCfg()), em, logger.NewNop()).WithClock(clockAt(now))
}
