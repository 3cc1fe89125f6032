package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
)

var (
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict means a conditional update matched no row: the lot no longer
	// has the state the caller read.
	ErrConflict = errors.New("repository: conditional update conflict")
)

// Store persists lots, the bid ledger and proxy bids. Every call is tenant
// scoped except the closer sweep, which runs for the whole platform.
type Store interface {
	CreateLot(ctx context.Context, lot model.Lot) (model.Lot, error)
	GetLot(ctx context.Context, tenantID, lotID uuid.UUID) (model.Lot, error)
	FindOpenLot(ctx context.Context, tenantID uuid.UUID) (model.Lot, error)

	// CommitBid is a check-and-set on the lot row: it applies only if the lot
	// is open, not past p.Now, and still has ExpectedPrice and
	// ExpectedBidsCount. The bid is inserted in the same transaction.
	CommitBid(ctx context.Context, p CommitBidParams) (model.Lot, error)
	ListBids(ctx context.Context, tenantID, lotID uuid.UUID, limit int) ([]model.Bid, error)

	UpsertProxyBid(ctx context.Context, p model.ProxyBid) error
	ListProxyBids(ctx context.Context, tenantID, lotID uuid.UUID) ([]model.ProxyBid, error)

	OpenAuctionLots(ctx context.Context, tenantID, auctionID uuid.UUID) ([]model.Lot, error)
	ListExpiredLots(ctx context.Context, now time.Time, limit int) ([]model.Lot, error)
	// CloseLot moves an open lot whose end time is before now to its terminal
	// state. ErrConflict when the lot was extended or already closed.
	CloseLot(ctx context.Context, tenantID, lotID uuid.UUID, now time.Time) (model.Lot, error)
}

type CommitBidParams struct {
	TenantID          uuid.UUID
	LotID             uuid.UUID
	ExpectedPrice     int64
	ExpectedBidsCount int64
	Now               time.Time
	// NewEndTime is set when the bid triggers a soft-close extension. The
	// store never moves the end time backwards.
	NewEndTime *time.Time
	// Bid.Sequence is assigned by the store.
	Bid model.Bid
}

// closedStatus picks the terminal state for a lot that reached its end time.
func closedStatus(bidsCount int64) model.LotStatus {
	if bidsCount > 0 {
		return model.LotSold
	}
	return model.LotClosedNoBids
}
