package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLot(t *testing.T, s Store, end time.Time) model.Lot {
	t.Helper()
	lot, err := s.CreateLot(context.Background(), model.Lot{
		TenantID:         uuid.New(),
		AuctionID:        uuid.New(),
		Title:            "Lot 1",
		InitialPrice:     100,
		Increment:        10,
		Status:           model.LotOpen,
		EndTime:          &end,
		SoftCloseEnabled: true,
	})
	require.NoError(t, err)
	return lot
}

func bidFor(lot model.Lot, amount int64, now time.Time) model.Bid {
	return model.Bid{
		ID:        uuid.New(),
		LotID:     lot.ID,
		AuctionID: lot.AuctionID,
		TenantID:  lot.TenantID,
		BidderID:  uuid.New(),
		Amount:    amount,
		Origin:    model.OriginHuman,
		CreatedAt: now,
	}
}

func TestMemoryStore_CommitBid(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	lot := openLot(t, s, now.Add(time.Hour))

	bid := bidFor(lot, 110, now)
	updated, err := s.CommitBid(ctx, CommitBidParams{
		TenantID:          lot.TenantID,
		LotID:             lot.ID,
		ExpectedPrice:     100,
		ExpectedBidsCount: 0,
		Now:               now,
		Bid:               bid,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(110), updated.Price)
	assert.Equal(t, int64(1), updated.BidsCount)
	assert.Equal(t, bid.BidderID, updated.LeaderID)

	// Same expectation again is stale.
	_, err = s.CommitBid(ctx, CommitBidParams{
		TenantID:          lot.TenantID,
		LotID:             lot.ID,
		ExpectedPrice:     100,
		ExpectedBidsCount: 0,
		Now:               now,
		Bid:               bidFor(lot, 110, now),
	})
	assert.ErrorIs(t, err, ErrConflict)

	bids, err := s.ListBids(ctx, lot.TenantID, lot.ID, 0)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, int64(1), bids[0].Sequence)
}

func TestMemoryStore_CommitBidRejectsExpiredAndWrongTenant(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	lot := openLot(t, s, now.Add(-time.Second))

	_, err := s.CommitBid(ctx, CommitBidParams{
		TenantID: lot.TenantID, LotID: lot.ID, ExpectedPrice: 100, Now: now, Bid: bidFor(lot, 110, now),
	})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.GetLot(ctx, uuid.New(), lot.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ExtensionNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	end := now.Add(time.Minute)
	lot := openLot(t, s, end)

	earlier := now.Add(30 * time.Second)
	updated, err := s.CommitBid(ctx, CommitBidParams{
		TenantID: lot.TenantID, LotID: lot.ID, ExpectedPrice: 100, Now: now,
		NewEndTime: &earlier, Bid: bidFor(lot, 110, now),
	})
	require.NoError(t, err)
	assert.True(t, updated.EndTime.Equal(end))
	assert.Equal(t, 0, updated.Extensions)

	later := now.Add(5 * time.Minute)
	updated, err = s.CommitBid(ctx, CommitBidParams{
		TenantID: lot.TenantID, LotID: lot.ID, ExpectedPrice: 110, ExpectedBidsCount: 1, Now: now,
		NewEndTime: &later, Bid: bidFor(lot, 120, now),
	})
	require.NoError(t, err)
	assert.True(t, updated.EndTime.Equal(later))
	assert.Equal(t, 1, updated.Extensions)
	assert.True(t, updated.ScheduledEndTime.Equal(end))
}

func TestMemoryStore_ConcurrentCommitsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	lot := openLot(t, s, now.Add(time.Hour))

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		start   = make(chan struct{})
		lastErr error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.CommitBid(ctx, CommitBidParams{
				TenantID: lot.TenantID, LotID: lot.ID, ExpectedPrice: 100, Now: now, Bid: bidFor(lot, 110, now),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else {
				lastErr = err
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.ErrorIs(t, lastErr, ErrConflict)

	got, err := s.GetLot(ctx, lot.TenantID, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.BidsCount)
}

func TestMemoryStore_CloseLot(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	sold := openLot(t, s, now.Add(time.Minute))
	_, err := s.CommitBid(ctx, CommitBidParams{
		TenantID: sold.TenantID, LotID: sold.ID, ExpectedPrice: 100, Now: now, Bid: bidFor(sold, 110, now),
	})
	require.NoError(t, err)

	_, err = s.CloseLot(ctx, sold.TenantID, sold.ID, now)
	assert.ErrorIs(t, err, ErrConflict, "lot has not reached its end time")

	closed, err := s.CloseLot(ctx, sold.TenantID, sold.ID, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.LotSold, closed.Status)

	empty := openLot(t, s, now.Add(-time.Minute))
	expired, err := s.ListExpiredLots(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, empty.ID, expired[0].ID)

	closed, err = s.CloseLot(ctx, empty.TenantID, empty.ID, now)
	require.NoError(t, err)
	assert.Equal(t, model.LotClosedNoBids, closed.Status)
}

func TestMemoryStore_OpenAuctionAndProxyBids(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tenant, auction := uuid.New(), uuid.New()
	lot, err := s.CreateLot(ctx, model.Lot{TenantID: tenant, AuctionID: auction, InitialPrice: 50, Increment: 5})
	require.NoError(t, err)
	assert.Equal(t, model.LotPreOpen, lot.Status)

	opened, err := s.OpenAuctionLots(ctx, tenant, auction)
	require.NoError(t, err)
	require.Len(t, opened, 1)
	assert.Equal(t, model.LotOpen, opened[0].Status)

	bidder := uuid.New()
	require.NoError(t, s.UpsertProxyBid(ctx, model.ProxyBid{TenantID: tenant, LotID: lot.ID, BidderID: bidder, MaxAmount: 80, RegisteredAt: time.Now()}))
	require.NoError(t, s.UpsertProxyBid(ctx, model.ProxyBid{TenantID: tenant, LotID: lot.ID, BidderID: bidder, MaxAmount: 90, RegisteredAt: time.Now()}))

	proxies, err := s.ListProxyBids(ctx, tenant, lot.ID)
	require.NoError(t, err)
	require.Len(t, proxies, 1)
	assert.Equal(t, int64(90), proxies[0].MaxAmount)

	assert.ErrorIs(t, s.UpsertProxyBid(ctx, model.ProxyBid{TenantID: uuid.New(), LotID: lot.ID, BidderID: bidder, MaxAmount: 1}), ErrNotFound)
}
