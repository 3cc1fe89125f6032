package model

import (
	"time"

	"github.com/google/uuid"
)

type BidOrigin string

const (
	OriginHuman BidOrigin = "human"
	OriginProxy BidOrigin = "proxy"
)

// Bid is an immutable row of the append-only ledger.
type Bid struct {
	ID            uuid.UUID `json:"id"`
	LotID         uuid.UUID `json:"lot_id"`
	AuctionID     uuid.UUID `json:"auction_id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	BidderID      uuid.UUID `json:"bidder_id"`
	BidderDisplay string    `json:"bidder_display"`
	Amount        int64     `json:"amount"`
	Origin        BidOrigin `json:"origin"`
	// Sequence is the lot's bid count after this bid was accepted.
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}

// ProxyBid is a standing ceiling. One per (lot, bidder); a later
// registration replaces the earlier one.
type ProxyBid struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	LotID         uuid.UUID `json:"lot_id"`
	BidderID      uuid.UUID `json:"bidder_id"`
	BidderDisplay string    `json:"bidder_display"`
	MaxAmount     int64     `json:"max_amount"`
	RegisteredAt  time.Time `json:"registered_at"`
}
