package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
	"github.com/itsDrac/e-auc-bidding/internal/repository"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
)

// Outcome is everything a committed bid changed.
type Outcome struct {
	Bid       model.Bid
	Lot       model.Lot
	SoftClose *model.SoftCloseEvent
}

// Arbitrator decides whether a bid is accepted. Concurrent bids on one lot are
// serialized by the store's conditional update, never by a lock held here.
type Arbitrator struct {
	store     repository.Store
	softClose *SoftCloseController
	events    EventEmitter
	cache     LotCache
	log       *logger.Logger
	now       func() time.Time
}

func NewArbitrator(store repository.Store, softClose *SoftCloseController, events EventEmitter, log *logger.Logger) *Arbitrator {
	if events == nil {
		events = nopEmitter{}
	}
	return &Arbitrator{
		store:     store,
		softClose: softClose,
		events:    events,
		log:       log.Component("arbitrator"),
		now:       time.Now,
	}
}

// WithCache refreshes the lot snapshot after every commit.
func (a *Arbitrator) WithCache(cache LotCache) *Arbitrator {
	a.cache = cache
	return a
}

// WithClock replaces the wall clock. Used by tests.
func (a *Arbitrator) WithClock(now func() time.Time) *Arbitrator {
	a.now = now
	return a
}

func (a *Arbitrator) PlaceBid(ctx context.Context, p PlaceBidParams) (model.Bid, error) {
	out, err := a.Commit(ctx, p)
	if err != nil {
		return model.Bid{}, err
	}
	return out.Bid, nil
}

// Commit validates the bid against a fresh read of the lot and commits it with
// a single conditional update. Events are emitted only after the commit.
func (a *Arbitrator) Commit(ctx context.Context, p PlaceBidParams) (Outcome, error) {
	lot, err := a.loadLot(ctx, p.TenantID, p.LotID)
	if err != nil {
		return Outcome{}, err
	}
	if p.AuctionID != uuid.Nil && p.AuctionID != lot.AuctionID {
		return Outcome{}, reject(ErrLotNotFound, lot)
	}

	now := a.now().UTC()
	if err := checkBiddable(lot, now); err != nil {
		return Outcome{}, err
	}
	if p.Amount < lot.MinimumBid() {
		return Outcome{}, reject(ErrBidTooLow, lot)
	}

	origin := p.Origin
	if origin == "" {
		origin = model.OriginHuman
	}
	params := repository.CommitBidParams{
		TenantID:          lot.TenantID,
		LotID:             lot.ID,
		ExpectedPrice:     lot.Price,
		ExpectedBidsCount: lot.BidsCount,
		Now:               now,
		Bid: model.Bid{
			ID:            uuid.New(),
			LotID:         lot.ID,
			AuctionID:     lot.AuctionID,
			TenantID:      lot.TenantID,
			BidderID:      p.BidderID,
			BidderDisplay: p.BidderDisplay,
			Amount:        p.Amount,
			Origin:        origin,
			CreatedAt:     now,
		},
	}

	extension := a.softClose.MaybeExtend(lot, now)
	if extension != nil {
		end := extension.NewEndTime
		params.NewEndTime = &end
	}

	committed, err := a.store.CommitBid(ctx, params)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return Outcome{}, a.classifyConflict(ctx, lot)
		}
		return Outcome{}, unavailable("commit bid", err)
	}

	bid := params.Bid
	bid.Sequence = committed.BidsCount

	// The conditional update matched the state the plan was built from, so the
	// extension was applied unless the end time moved by other means.
	if extension != nil && (committed.EndTime == nil || !committed.EndTime.Equal(extension.NewEndTime)) {
		extension = nil
	}
	if extension != nil {
		extension.Sequence = bid.Sequence
	}

	a.refresh(ctx, committed)
	a.events.EmitBid(bid)
	if extension != nil {
		a.events.EmitSoftClose(*extension)
		a.log.Infow("soft close extension",
			"lot_id", lot.ID,
			"previous_end", extension.PreviousEndTime,
			"new_end", extension.NewEndTime,
		)
	}

	a.log.Debugw("bid accepted",
		"lot_id", lot.ID,
		"bidder_id", bid.BidderID,
		"amount", bid.Amount,
		"origin", bid.Origin,
		"sequence", bid.Sequence,
	)

	return Outcome{Bid: bid, Lot: committed, SoftClose: extension}, nil
}

func (a *Arbitrator) refresh(ctx context.Context, lot model.Lot) {
	if a.cache == nil {
		return
	}
	if err := a.cache.SetLot(context.WithoutCancel(ctx), lot); err != nil {
		a.log.Warnw("lot cache refresh failed", "lot_id", lot.ID, "error", err)
	}
}

func (a *Arbitrator) loadLot(ctx context.Context, tenantID, lotID uuid.UUID) (model.Lot, error) {
	lot, err := a.store.GetLot(ctx, tenantID, lotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Lot{}, &RejectionError{Reason: ErrLotNotFound, LotID: lotID}
		}
		return model.Lot{}, unavailable("load lot", err)
	}
	return lot, nil
}

// classifyConflict explains why the conditional update matched no row using
// the authoritative state after the race.
func (a *Arbitrator) classifyConflict(ctx context.Context, read model.Lot) error {
	current, err := a.loadLot(ctx, read.TenantID, read.ID)
	if err != nil {
		return err
	}
	if err := checkBiddable(current, a.now().UTC()); err != nil {
		return err
	}
	return reject(ErrStalePrice, current)
}

func checkBiddable(lot model.Lot, now time.Time) error {
	if lot.Status != model.LotOpen {
		return reject(ErrLotNotOpen, lot)
	}
	if lot.ExpiredAt(now) {
		return reject(ErrLotExpired, lot)
	}
	return nil
}
