package service

import (
	"context"
	"errors"
	"time"

	"github.com/itsDrac/e-auc-bidding/internal/model"
	"github.com/itsDrac/e-auc-bidding/internal/repository"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
)

// ProxyResolver places automatic bids for standing ceilings. It submits
// through the Arbitrator like any bidder and is the only component that
// retries after losing a race.
type ProxyResolver struct {
	store     repository.Store
	arbiter   *Arbitrator
	retry     RetryPolicy
	maxRounds int
	timeout   time.Duration
	log       *logger.Logger
}

const defaultResolveTimeout = 10 * time.Second

func NewProxyResolver(store repository.Store, arbiter *Arbitrator, retry RetryPolicy, maxRounds int, timeout time.Duration, log *logger.Logger) *ProxyResolver {
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	return &ProxyResolver{
		store:     store,
		arbiter:   arbiter,
		retry:     retry,
		maxRounds: maxRounds,
		timeout:   timeout,
		log:       log.Component("proxy"),
	}
}

// RegisterProxyBid stores or replaces the bidder's ceiling and resolves the
// lot right away so a fresh ceiling can take the lead.
func (r *ProxyResolver) RegisterProxyBid(ctx context.Context, p RegisterProxyParams) ([]model.Bid, error) {
	lot, err := r.arbiter.loadLot(ctx, p.TenantID, p.LotID)
	if err != nil {
		return nil, err
	}
	if err := checkBiddable(lot, r.arbiter.now().UTC()); err != nil {
		return nil, err
	}
	if p.MaxAmount < lot.Price {
		return nil, reject(ErrCeilingTooLow, lot)
	}

	err = r.store.UpsertProxyBid(ctx, model.ProxyBid{
		TenantID:      p.TenantID,
		LotID:         p.LotID,
		BidderID:      p.BidderID,
		BidderDisplay: p.BidderDisplay,
		MaxAmount:     p.MaxAmount,
		RegisteredAt:  r.arbiter.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, reject(ErrLotNotFound, lot)
		}
		return nil, unavailable("upsert proxy bid", err)
	}

	return r.ResolveProxyBids(ctx, lot, model.Bid{})
}

// ResolveProxyBids bids for the strongest eligible ceiling one increment at a
// time until no ceiling other than the leader's can beat the price. accepting
// is the bid that triggered resolution; it may be zero.
//
// Resolution outlives the caller's context: once a bid is committed the
// standing ceilings must get their answer even if the bidder went away. It is
// bounded by the resolver's own timeout instead.
func (r *ProxyResolver) ResolveProxyBids(ctx context.Context, lot model.Lot, accepting model.Bid) ([]model.Bid, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	proxies, err := r.store.ListProxyBids(ctx, lot.TenantID, lot.ID)
	if err != nil {
		return nil, unavailable("list proxy bids", err)
	}
	if len(proxies) == 0 {
		return nil, nil
	}

	rounds := roundBound(lot, proxies)
	if r.maxRounds > 0 && r.maxRounds < rounds {
		rounds = r.maxRounds
	}

	var placed []model.Bid
	for round := 0; round < rounds; round++ {
		var (
			bid  model.Bid
			idle bool
		)
		err := r.retry.Do(ctx, func(attempt int) error {
			current, err := r.arbiter.loadLot(ctx, lot.TenantID, lot.ID)
			if err != nil {
				return err
			}
			candidate, ok := pickProxy(current, proxies)
			if !ok {
				idle = true
				return nil
			}
			bid, err = r.arbiter.PlaceBid(ctx, PlaceBidParams{
				TenantID:      current.TenantID,
				LotID:         current.ID,
				BidderID:      candidate.BidderID,
				BidderDisplay: candidate.BidderDisplay,
				Amount:        min(candidate.MaxAmount, current.MinimumBid()),
				Origin:        model.OriginProxy,
			})
			if errors.Is(err, ErrStalePrice) {
				r.log.Debugw("proxy bid lost race", "lot_id", current.ID, "attempt", attempt)
			}
			return err
		}, func(err error) bool {
			return errors.Is(err, ErrStalePrice)
		})
		if err != nil {
			if IsRejection(err) {
				r.log.Infow("proxy resolution stopped",
					"lot_id", lot.ID,
					"trigger_bid", accepting.ID,
					"placed", len(placed),
					"reason", err,
				)
				return placed, nil
			}
			return placed, err
		}
		if idle {
			break
		}
		placed = append(placed, bid)
	}
	return placed, nil
}

// pickProxy returns the highest ceiling that can still beat the price and is
// not already leading. Ties go to the earliest registration.
func pickProxy(lot model.Lot, proxies []model.ProxyBid) (model.ProxyBid, bool) {
	var (
		best  model.ProxyBid
		found bool
	)
	floor := lot.MinimumBid()
	for _, p := range proxies {
		if p.BidderID == lot.LeaderID || p.MaxAmount < floor {
			continue
		}
		if !found ||
			p.MaxAmount > best.MaxAmount ||
			(p.MaxAmount == best.MaxAmount && p.RegisteredAt.Before(best.RegisteredAt)) {
			best, found = p, true
		}
	}
	return best, found
}

// roundBound is the number of increments between the price and the highest
// ceiling. Every round raises the price by at least one increment, so
// resolution cannot take more rounds than this.
func roundBound(lot model.Lot, proxies []model.ProxyBid) int {
	if lot.Increment <= 0 {
		return 0
	}
	var highest int64
	for _, p := range proxies {
		highest = max(highest, p.MaxAmount)
	}
	if highest <= lot.Price {
		return 0
	}
	return int((highest - lot.Price) / lot.Increment)
}
