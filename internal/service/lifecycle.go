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

const closeBatchSize = 100

// Lifecycle moves lots in and out of the open state.
type Lifecycle struct {
	store    repository.Store
	events   EventEmitter
	archiver LedgerArchiver
	cache    LotCache
	log      *logger.Logger
	now      func() time.Time
}

func NewLifecycle(store repository.Store, events EventEmitter, archiver LedgerArchiver, cache LotCache, log *logger.Logger) *Lifecycle {
	if events == nil {
		events = nopEmitter{}
	}
	return &Lifecycle{
		store:    store,
		events:   events,
		archiver: archiver,
		cache:    cache,
		log:      log.Component("lifecycle"),
		now:      time.Now,
	}
}

func (l *Lifecycle) WithClock(now func() time.Time) *Lifecycle {
	l.now = now
	return l
}

type AuctionOpener interface {
	OpenAuction(ctx context.Context, tenantID, auctionID uuid.UUID) ([]model.Lot, error)
}

// OpenAuction opens every pre-open lot of the auction.
func (l *Lifecycle) OpenAuction(ctx context.Context, tenantID, auctionID uuid.UUID) ([]model.Lot, error) {
	lots, err := l.store.OpenAuctionLots(ctx, tenantID, auctionID)
	if err != nil {
		return nil, unavailable("open auction", err)
	}
	for _, lot := range lots {
		l.refresh(ctx, lot)
	}
	l.log.Infow("auction opened", "auction_id", auctionID, "lots", len(lots))
	if lots == nil {
		lots = []model.Lot{}
	}
	return lots, nil
}

// CloseExpiredLots closes open lots whose end time has passed. A lot that a
// late bid extended in the meantime is skipped and picked up on a later run.
func (l *Lifecycle) CloseExpiredLots(ctx context.Context) (int, error) {
	now := l.now().UTC()
	lots, err := l.store.ListExpiredLots(ctx, now, closeBatchSize)
	if err != nil {
		return 0, unavailable("list expired lots", err)
	}

	closed := 0
	for _, lot := range lots {
		final, err := l.store.CloseLot(ctx, lot.TenantID, lot.ID, now)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				continue
			}
			return closed, unavailable("close lot", err)
		}
		closed++

		ev := model.LotClosedEvent{
			TenantID:   final.TenantID,
			LotID:      final.ID,
			AuctionID:  final.AuctionID,
			Status:     final.Status,
			FinalPrice: final.Price,
			Sequence:   final.BidsCount,
			Timestamp:  now,
		}
		if final.Status == model.LotSold {
			ev.WinnerID = final.LeaderID
		}
		l.events.EmitLotClosed(ev)
		l.refresh(ctx, final)
		l.archive(ctx, final)
	}

	if closed > 0 {
		l.log.Infow("closed expired lots", "count", closed)
	}
	return closed, nil
}

func (l *Lifecycle) archive(ctx context.Context, lot model.Lot) {
	if l.archiver == nil {
		return
	}
	bids, err := l.store.ListBids(ctx, lot.TenantID, lot.ID, int(lot.BidsCount))
	if err != nil {
		l.log.Errorw("failed to load ledger for archive", "lot_id", lot.ID, "error", err)
		return
	}
	if err := l.archiver.ArchiveLedger(ctx, lot, bids); err != nil {
		l.log.Errorw("failed to archive ledger", "lot_id", lot.ID, "error", err)
	}
}

func (l *Lifecycle) refresh(ctx context.Context, lot model.Lot) {
	if l.cache == nil {
		return
	}
	if err := l.cache.SetLot(ctx, lot); err != nil {
		l.log.Warnw("lot cache refresh failed", "lot_id", lot.ID, "error", err)
	}
}
