package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
	"github.com/itsDrac/e-auc-bidding/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceBid_Accepts(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	em := &recordingEmitter{}
	lot := createLot(t, store, lotOpts{end: at("10:00")})
	arb := newArbitrator(store, em, at("09:00"))

	bidder := uuid.New()
	bid, err := arb.PlaceBid(ctx, PlaceBidParams{
		TenantID:      lot.TenantID,
		LotID:         lot.ID,
		AuctionID:     lot.AuctionID,
		BidderID:      bidder,
		BidderDisplay: "alice",
		Amount:        110,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), bid.Sequence)
	assert.Equal(t, model.OriginHuman, bid.Origin)

	got, err := store.GetLot(ctx, lot.TenantID, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(110), got.Price)
	assert.Equal(t, bidder, got.LeaderID)

	assert.Equal(t, []string{"bid"}, em.kinds)
}

func TestPlaceBid_Rejections(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	lot := createLot(t, store, lotOpts{end: at("10:00")})

	closed, err := store.CreateLot(ctx, model.Lot{TenantID: lot.TenantID, AuctionID: lot.AuctionID, InitialPrice: 100, Increment: 10})
	require.NoError(t, err)

	tests := []struct {
		name   string
		now    time.Time
		params PlaceBidParams
		want   error
	}{
		{"below increment floor", at("09:00"), PlaceBidParams{TenantID: lot.TenantID, LotID: lot.ID, Amount: 109}, ErrBidTooLow},
		{"unknown lot", at("09:00"), PlaceBidParams{TenantID: lot.TenantID, LotID: uuid.New(), Amount: 110}, ErrLotNotFound},
		{"other tenant", at("09:00"), PlaceBidParams{TenantID: uuid.New(), LotID: lot.ID, Amount: 110}, ErrLotNotFound},
		{"other auction", at("09:00"), PlaceBidParams{TenantID: lot.TenantID, LotID: lot.ID, AuctionID: uuid.New(), Amount: 110}, ErrLotNotFound},
		{"not open", at("09:00"), PlaceBidParams{TenantID: lot.TenantID, LotID: closed.ID, Amount: 110}, ErrLotNotOpen},
		{"after end", at("10:01"), PlaceBidParams{TenantID: lot.TenantID, LotID: lot.ID, Amount: 110}, ErrLotExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arb := newArbitrator(store, nil, tt.now)
			tt.params.BidderID = uuid.New()
			_, err := arb.PlaceBid(ctx, tt.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsRejection(err))
		})
	}

	got, err := store.GetLot(ctx, lot.TenantID, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.BidsCount)
}

func TestPlaceBid_ExactlyAtEndIsAccepted(t *testing.T) {
	store := repository.NewMemoryStore()
	lot := createLot(t, store, lotOpts{end: at("10:00")})
	_, err := newArbitrator(store, nil, at("10:00")).PlaceBid(context.Background(), PlaceBidParams{
		TenantID: lot.TenantID, LotID: lot.ID, BidderID: uuid.New(), Amount: 110,
	})
	assert.NoError(t, err)
}

func TestPlaceBid_ResubmissionIsRejected(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	lot := createLot(t, store, lotOpts{end: at("10:00")})
	arb := newArbitrator(store, nil, at("09:00"))

	params := PlaceBidParams{TenantID: lot.TenantID, LotID: lot.ID, BidderID: uuid.New(), Amount: 110}
	_, err := arb.PlaceBid(ctx, params)
	require.NoError(t, err)

	_, err = arb.PlaceBid(ctx, params)
	assert.ErrorIs(t, err, ErrBidTooLow)

	var rej *RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, int64(110), rej.CurrentPrice)
	assert.Equal(t, int64(120), rej.MinimumBid)

	bids, err := store.ListBids(ctx, lot.TenantID, lot.ID, 0)
	require.NoError(t, err)
	assert.Len(t, bids, 1)
}

func TestPlaceBid_ConcurrentEqualBids(t *testing.T) {
	const n = 8
	ctx := context.Background()
	mem := repository.NewMemoryStore()
	lot := createLot(t, mem, lotOpts{end: at("10:00")})
	store := newBarrierStore(mem, n)
	em := &recordingEmitter{}
	arb := newArbitrator(store, em, at("09:00"))

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = arb.PlaceBid(ctx, PlaceBidParams{
				TenantID: lot.TenantID, LotID: lot.ID, BidderID: uuid.New(), Amount: 110,
			})
		}(i)
	}
	close(start)
	wg.Wait()

	accepted, stale := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, ErrStalePrice):
			stale++
			var rej *RejectionError
			require.True(t, errors.As(err, &rej))
			assert.Equal(t, int64(110), rej.CurrentPrice)
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, n-1, stale)

	got, err := mem.GetLot(ctx, lot.TenantID, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.BidsCount)
	assert.Len(t, em.bids, 1)
}

func TestPlaceBid_SoftCloseExtends(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	em := &recordingEmitter{}
	lot := createLot(t, store, lotOpts{end: at("10:00"), softClose: true})

	out, err := newArbitrator(store, em, at("09:57")).Commit(ctx, PlaceBidParams{
		TenantID: lot.TenantID, LotID: lot.ID, BidderID: uuid.New(), Amount: 110,
	})
	require.NoError(t, err)
	require.NotNil(t, out.SoftClose)
	assert.True(t, out.Lot.EndTime.Equal(at("10:02")))
	assert.Equal(t, int64(1), out.SoftClose.Sequence)

	out, err = newArbitrator(store, em, at("10:01")).Commit(ctx, PlaceBidParams{
		TenantID: lot.TenantID, LotID: lot.ID, BidderID: uuid.New(), Amount: 120,
	})
	require.NoError(t, err)
	require.NotNil(t, out.SoftClose)
	assert.True(t, out.Lot.EndTime.Equal(at("10:06")))
	assert.Equal(t, 2, out.Lot.Extensions)

	assert.Equal(t, []string{"bid", "soft_close", "bid", "soft_close"}, em.kinds)
	assert.InDelta(t, 4.0, em.softClose[1].MinutesAdded, 0.0001)
}

func TestPlaceBid_StoreFailureIsUnavailable(t *testing.T) {
	store := failingStore{Store: repository.NewMemoryStore(), err: errors.New("connection refused")}
	_, err := newArbitrator(store, nil, at("09:00")).PlaceBid(context.Background(), PlaceBidParams{
		TenantID: uuid.New(), LotID: uuid.New(), BidderID: uuid.New(), Amount: 110,
	})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, IsRejection(err))
}

type failingStore struct {
	repository.Store
	err error
}

func (f failingStore) GetLot(context.Context, uuid.UUID, uuid.UUID) (model.Lot, error) {
	return model.Lot{}, f.err
}
