package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
)

// EventEmitter receives committed facts. Implementations must not block.
type EventEmitter interface {
	EmitBid(bid model.Bid)
	EmitSoftClose(ev model.SoftCloseEvent)
	EmitLotClosed(ev model.LotClosedEvent)
}

// LotCache holds read-only lot snapshots for the lot endpoint. SetLot must
// keep the snapshot with the highest model.Lot.Version.
type LotCache interface {
	GetLot(ctx context.Context, tenantID, lotID uuid.UUID) (model.Lot, bool, error)
	SetLot(ctx context.Context, lot model.Lot) error
}

// LedgerArchiver stores the bid ledger of a closed lot.
type LedgerArchiver interface {
	ArchiveLedger(ctx context.Context, lot model.Lot, bids []model.Bid) error
}

type PlaceBidParams struct {
	TenantID uuid.UUID
	LotID    uuid.UUID
	// AuctionID is optional. When set it must match the lot.
	AuctionID     uuid.UUID
	BidderID      uuid.UUID
	BidderDisplay string
	Amount        int64
	Origin        model.BidOrigin
}

type RegisterProxyParams struct {
	TenantID      uuid.UUID
	LotID         uuid.UUID
	BidderID      uuid.UUID
	BidderDisplay string
	MaxAmount     int64
}

type nopEmitter struct{}

func (nopEmitter) EmitBid(model.Bid)                  {}
func (nopEmitter) EmitSoftClose(model.SoftCloseEvent) {}
func (nopEmitter) EmitLotClosed(model.LotClosedEvent) {}
