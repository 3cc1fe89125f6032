package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
	"github.com/itsDrac/e-auc-bidding/internal/repository"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memArchiver struct {
	mu      sync.Mutex
	ledgers map[uuid.UUID][]model.Bid
}

func (m *memArchiver) ArchiveLedger(_ context.Context, lot model.Lot, bids []model.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ledgers == nil {
		m.ledgers = make(map[uuid.UUID][]model.Bid)
	}
	m.ledgers[lot.ID] = bids
	return nil
}

func TestLifecycle_OpenAuction(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	tenant, auction := uuid.New(), uuid.New()
	for i := 0; i < 3; i++ {
		_, err := store.CreateLot(ctx, model.Lot{TenantID: tenant, AuctionID: auction, InitialPrice: 10, Increment: 1})
		require.NoError(t, err)
	}

	lc := NewLifecycle(store, nil, nil, nil, logger.NewNop())
	opened, err := lc.OpenAuction(ctx, tenant, auction)
	require.NoError(t, err)
	assert.Len(t, opened, 3)

	opened, err = lc.OpenAuction(ctx, tenant, auction)
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestLifecycle_CloseExpiredLots(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	em := &recordingEmitter{}
	archive := &memArchiver{}

	sold := createLot(t, store, lotOpts{end: at("10:00")})
	empty := createLot(t, store, lotOpts{end: at("10:00")})
	running := createLot(t, store, lotOpts{end: at("11:00")})

	winner := uuid.New()
	_, err := newArbitrator(store, nil, at("09:00")).PlaceBid(ctx, PlaceBidParams{
		TenantID: sold.TenantID, LotID: sold.ID, BidderID: winner, Amount: 150,
	})
	require.NoError(t, err)

	lc := NewLifecycle(store, em, archive, nil, logger.NewNop()).WithClock(clockAt(at("10:30")))
	n, err := lc.CloseExpiredLots(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.GetLot(ctx, sold.TenantID, sold.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LotSold, got.Status)

	got, err = store.GetLot(ctx, empty.TenantID, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LotClosedNoBids, got.Status)

	got, err = store.GetLot(ctx, running.TenantID, running.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LotOpen, got.Status)

	require.Len(t, em.closed, 2)
	for _, ev := range em.closed {
		if ev.LotID == sold.ID {
			assert.Equal(t, winner, ev.WinnerID)
			assert.Equal(t, int64(150), ev.FinalPrice)
		} else {
			assert.Equal(t, uuid.Nil, ev.WinnerID)
		}
	}

	assert.Len(t, archive.ledgers[sold.ID], 1)
	assert.Empty(t, archive.ledgers[empty.ID])

	n, err = lc.CloseExpiredLots(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
