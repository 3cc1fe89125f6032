package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
)

type lotRecord struct {
	mu   sync.Mutex
	lot  model.Lot
	bids []model.Bid
}

// MemoryStore is an in-process Store. Each lot has its own mutex, so the
// check-and-set never serializes unrelated lots.
type MemoryStore struct {
	mu      sync.RWMutex
	lots    map[uuid.UUID]*lotRecord
	proxies map[uuid.UUID]map[uuid.UUID]model.ProxyBid
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lots:    make(map[uuid.UUID]*lotRecord),
		proxies: make(map[uuid.UUID]map[uuid.UUID]model.ProxyBid),
	}
}

func (s *MemoryStore) record(tenantID, lotID uuid.UUID) (*lotRecord, error) {
	s.mu.RLock()
	rec, ok := s.lots[lotID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	tenant := rec.lot.TenantID
	rec.mu.Unlock()
	if tenant != tenantID {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) CreateLot(_ context.Context, lot model.Lot) (model.Lot, error) {
	if lot.ID == uuid.Nil {
		lot.ID = uuid.New()
	}
	if lot.Status == "" {
		lot.Status = model.LotPreOpen
	}
	if lot.Price == 0 {
		lot.Price = lot.InitialPrice
	}
	if lot.ScheduledEndTime == nil && lot.EndTime != nil {
		t := *lot.EndTime
		lot.ScheduledEndTime = &t
	}
	lot.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lots[lot.ID] = &lotRecord{lot: lot}
	return lot, nil
}

func (s *MemoryStore) GetLot(_ context.Context, tenantID, lotID uuid.UUID) (model.Lot, error) {
	rec, err := s.record(tenantID, lotID)
	if err != nil {
		return model.Lot{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.lot, nil
}

func (s *MemoryStore) FindOpenLot(_ context.Context, tenantID uuid.UUID) (model.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	for _, rec := range s.lots {
		rec.mu.Lock()
		lot := rec.lot
		rec.mu.Unlock()
		if lot.TenantID == tenantID && lot.Status == model.LotOpen && !lot.ExpiredAt(now) {
			return lot, nil
		}
	}
	return model.Lot{}, ErrNotFound
}

func (s *MemoryStore) CommitBid(_ context.Context, p CommitBidParams) (model.Lot, error) {
	rec, err := s.record(p.TenantID, p.LotID)
	if err != nil {
		return model.Lot{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	lot := rec.lot
	if lot.Status != model.LotOpen ||
		lot.ExpiredAt(p.Now) ||
		lot.Price != p.ExpectedPrice ||
		lot.BidsCount != p.ExpectedBidsCount {
		return model.Lot{}, ErrConflict
	}

	bid := p.Bid
	bid.Sequence = lot.BidsCount + 1

	lot.Price = bid.Amount
	lot.BidsCount = bid.Sequence
	lot.LeaderID = bid.BidderID
	lot.UpdatedAt = p.Now
	if p.NewEndTime != nil && lot.EndTime != nil && p.NewEndTime.After(*lot.EndTime) {
		end := *p.NewEndTime
		lot.EndTime = &end
		lot.Extensions++
	}

	rec.lot = lot
	rec.bids = append(rec.bids, bid)
	return lot, nil
}

func (s *MemoryStore) ListBids(_ context.Context, tenantID, lotID uuid.UUID, limit int) ([]model.Bid, error) {
	rec, err := s.record(tenantID, lotID)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	bids := rec.bids
	if limit > 0 && len(bids) > limit {
		bids = bids[len(bids)-limit:]
	}
	out := make([]model.Bid, len(bids))
	copy(out, bids)
	return out, nil
}

func (s *MemoryStore) UpsertProxyBid(_ context.Context, p model.ProxyBid) error {
	if _, err := s.record(p.TenantID, p.LotID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byBidder, ok := s.proxies[p.LotID]
	if !ok {
		byBidder = make(map[uuid.UUID]model.ProxyBid)
		s.proxies[p.LotID] = byBidder
	}
	byBidder[p.BidderID] = p
	return nil
}

func (s *MemoryStore) ListProxyBids(_ context.Context, tenantID, lotID uuid.UUID) ([]model.ProxyBid, error) {
	if _, err := s.record(tenantID, lotID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ProxyBid, 0, len(s.proxies[lotID]))
	for _, p := range s.proxies[lotID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out, nil
}

func (s *MemoryStore) OpenAuctionLots(_ context.Context, tenantID, auctionID uuid.UUID) ([]model.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var opened []model.Lot
	now := time.Now().UTC()
	for _, rec := range s.lots {
		rec.mu.Lock()
		if rec.lot.TenantID == tenantID && rec.lot.AuctionID == auctionID && rec.lot.Status == model.LotPreOpen {
			rec.lot.Status = model.LotOpen
			rec.lot.UpdatedAt = now
			opened = append(opened, rec.lot)
		}
		rec.mu.Unlock()
	}
	return opened, nil
}

func (s *MemoryStore) ListExpiredLots(_ context.Context, now time.Time, limit int) ([]model.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Lot
	for _, rec := range s.lots {
		rec.mu.Lock()
		lot := rec.lot
		rec.mu.Unlock()
		if lot.Status == model.LotOpen && lot.ExpiredAt(now) {
			out = append(out, lot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(*out[j].EndTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CloseLot(_ context.Context, tenantID, lotID uuid.UUID, now time.Time) (model.Lot, error) {
	rec, err := s.record(tenantID, lotID)
	if err != nil {
		return model.Lot{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.lot.Status != model.LotOpen || !rec.lot.ExpiredAt(now) {
		return model.Lot{}, ErrConflict
	}
	rec.lot.Status = closedStatus(rec.lot.BidsCount)
	rec.lot.UpdatedAt = now
	return rec.lot, nil
}
