package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
	"github.com/itsDrac/e-auc-bidding/internal/repository"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
)

type BiddingServicer interface {
	PlaceBid(ctx context.Context, p PlaceBidParams) (BidResult, error)
	RegisterProxyBid(ctx context.Context, p RegisterProxyParams) ([]model.Bid, error)
	GetLot(ctx context.Context, tenantID, lotID uuid.UUID) (model.Lot, error)
	ListBids(ctx context.Context, tenantID, lotID uuid.UUID, limit int) ([]model.Bid, error)
}

type BidResult struct {
	Bid       model.Bid             `json:"bid"`
	ProxyBids []model.Bid           `json:"proxy_bids"`
	SoftClose *model.SoftCloseEvent `json:"soft_close,omitempty"`
}

// BiddingService runs a human bid through the arbitrator, then lets standing
// proxy ceilings answer it.
type BiddingService struct {
	store    repository.Store
	arbiter  *Arbitrator
	resolver *ProxyResolver
	cache    LotCache
	log      *logger.Logger
}

func NewBiddingService(store repository.Store, arbiter *Arbitrator, resolver *ProxyResolver, cache LotCache, log *logger.Logger) *BiddingService {
	return &BiddingService{
		store:    store,
		arbiter:  arbiter,
		resolver: resolver,
		cache:    cache,
		log:      log.Component("bidding"),
	}
}

func (s *BiddingService) PlaceBid(ctx context.Context, p PlaceBidParams) (BidResult, error) {
	p.Origin = model.OriginHuman
	out, err := s.arbiter.Commit(ctx, p)
	if err != nil {
		return BidResult{}, err
	}

	result := BidResult{
		Bid:       out.Bid,
		ProxyBids: []model.Bid{},
		SoftClose: out.SoftClose,
	}

	// The human bid is committed. A failure while resolving proxies is logged
	// and never turns it into an error.
	proxyBids, err := s.resolver.ResolveProxyBids(ctx, out.Lot, out.Bid)
	if err != nil {
		s.log.Errorw("proxy resolution failed", "lot_id", p.LotID, "error", err)
	}
	if len(proxyBids) > 0 {
		result.ProxyBids = proxyBids
	}

	return result, nil
}

func (s *BiddingService) RegisterProxyBid(ctx context.Context, p RegisterProxyParams) ([]model.Bid, error) {
	placed, err := s.resolver.RegisterProxyBid(ctx, p)
	if err != nil {
		return nil, err
	}
	if placed == nil {
		placed = []model.Bid{}
	}
	return placed, nil
}

// GetLot serves from the snapshot cache when possible. A cache failure falls
// through to the store. The snapshot written back here loses against any
// newer one the arbitrator stored meanwhile.
func (s *BiddingService) GetLot(ctx context.Context, tenantID, lotID uuid.UUID) (model.Lot, error) {
	if s.cache != nil {
		lot, ok, err := s.cache.GetLot(ctx, tenantID, lotID)
		if err != nil {
			s.log.Warnw("lot cache read failed", "lot_id", lotID, "error", err)
		} else if ok {
			return lot, nil
		}
	}

	lot, err := s.store.GetLot(ctx, tenantID, lotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Lot{}, ErrLotNotFound
		}
		return model.Lot{}, unavailable("get lot", err)
	}

	if s.cache != nil {
		if err := s.cache.SetLot(ctx, lot); err != nil {
			s.log.Warnw("lot cache write failed", "lot_id", lotID, "error", err)
		}
	}
	return lot, nil
}

func (s *BiddingService) ListBids(ctx context.Context, tenantID, lotID uuid.UUID, limit int) ([]model.Bid, error) {
	if _, err := s.store.GetLot(ctx, tenantID, lotID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLotNotFound
		}
		return nil, unavailable("get lot", err)
	}
	bids, err := s.store.ListBids(ctx, tenantID, lotID, limit)
	if err != nil {
		return nil, unavailable("list bids", err)
	}
	return bids, nil
}
