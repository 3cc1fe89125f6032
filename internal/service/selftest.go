package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
	"github.com/itsDrac/e-auc-bidding/internal/repository"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
)

type ProbeParams struct {
	TenantID uuid.UUID
	// LotID picks the lot to probe. uuid.Nil picks any open lot of the tenant.
	LotID     uuid.UUID
	BidderIDs [2]uuid.UUID
}

type ProbeReport struct {
	LotID           uuid.UUID `json:"lot_id"`
	Amount          int64     `json:"amount"`
	Accepted        int       `json:"accepted"`
	StalePrice      int       `json:"stale_price"`
	Other           []string  `json:"other"`
	BidsCountBefore int64     `json:"bids_count_before"`
	BidsCountAfter  int64     `json:"bids_count_after"`
	Passed          bool      `json:"passed"`
}

type Prober interface {
	Run(ctx context.Context, p ProbeParams) (ProbeReport, error)
}

// SelfTest fires two identical bids at one lot at the same instant and
// checks that exactly one commits.
type SelfTest struct {
	store   repository.Store
	arbiter *Arbitrator
	log     *logger.Logger
}

func NewSelfTest(store repository.Store, arbiter *Arbitrator, log *logger.Logger) *SelfTest {
	return &SelfTest{
		store:   store,
		arbiter: arbiter,
		log:     log.Component("selftest"),
	}
}

func (s *SelfTest) Run(ctx context.Context, p ProbeParams) (ProbeReport, error) {
	if p.BidderIDs[0] == uuid.Nil || p.BidderIDs[1] == uuid.Nil || p.BidderIDs[0] == p.BidderIDs[1] {
		return ProbeReport{}, ErrProbeBidders
	}

	lot, err := s.pickLot(ctx, p)
	if err != nil {
		return ProbeReport{}, err
	}

	report := ProbeReport{
		LotID:           lot.ID,
		Amount:          lot.MinimumBid(),
		BidsCountBefore: lot.BidsCount,
		Other:           []string{},
	}

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  [2]error
	)
	for i, bidder := range p.BidderIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = s.arbiter.PlaceBid(ctx, PlaceBidParams{
				TenantID:      lot.TenantID,
				LotID:         lot.ID,
				BidderID:      bidder,
				BidderDisplay: "probe",
				Amount:        report.Amount,
				Origin:        model.OriginHuman,
			})
		}()
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		switch {
		case err == nil:
			report.Accepted++
		case errors.Is(err, ErrStalePrice):
			report.StalePrice++
		default:
			report.Other = append(report.Other, err.Error())
		}
	}

	after, err := s.store.GetLot(ctx, lot.TenantID, lot.ID)
	if err != nil {
		return report, unavailable("reload probed lot", err)
	}
	report.BidsCountAfter = after.BidsCount
	report.Passed = report.Accepted == 1 &&
		report.StalePrice == 1 &&
		report.BidsCountAfter == report.BidsCountBefore+1

	s.log.Infow("concurrency probe finished",
		"lot_id", lot.ID,
		"accepted", report.Accepted,
		"stale", report.StalePrice,
		"passed", report.Passed,
	)
	return report, nil
}

func (s *SelfTest) pickLot(ctx context.Context, p ProbeParams) (model.Lot, error) {
	var (
		lot model.Lot
		err error
	)
	if p.LotID != uuid.Nil {
		lot, err = s.store.GetLot(ctx, p.TenantID, p.LotID)
	} else {
		lot, err = s.store.FindOpenLot(ctx, p.TenantID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if p.LotID == uuid.Nil {
				return model.Lot{}, ErrNoOpenLot
			}
			return model.Lot{}, ErrLotNotFound
		}
		return model.Lot{}, unavailable("pick probe lot", err)
	}
	return lot, nil
}
