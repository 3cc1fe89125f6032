package model

import (
	"time"

	"github.com/google/uuid"
)

type LotStatus string

const (
	LotPreOpen      LotStatus = "pre_open"
	LotOpen         LotStatus = "open"
	LotSold         LotStatus = "sold"
	LotClosedNoBids LotStatus = "closed_no_bids"
)

// Terminal reports whether the lot can no longer change state.
func (s LotStatus) Terminal() bool {
	return s == LotSold || s == LotClosedNoBids
}

// Lot is the unit being bid on. Price only ever moves up and always equals the
// amount of the last accepted bid, or InitialPrice when there is none.
type Lot struct {
	ID               uuid.UUID  `json:"id"`
	TenantID         uuid.UUID  `json:"tenant_id"`
	AuctionID        uuid.UUID  `json:"auction_id"`
	Title            string     `json:"title"`
	Price            int64      `json:"price"`
	InitialPrice     int64      `json:"initial_price"`
	Increment        int64      `json:"increment"`
	Status           LotStatus  `json:"status"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	ScheduledEndTime *time.Time `json:"scheduled_end_time,omitempty"`
	BidsCount        int64      `json:"bids_count"`
	LeaderID         uuid.UUID  `json:"leader_id"`
	SoftCloseEnabled bool       `json:"soft_close_enabled"`
	Extensions       int        `json:"extensions"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Version orders snapshots of one lot. Every accepted bid and every status
// transition yields a larger value.
func (l Lot) Version() int64 {
	var rank int64
	switch {
	case l.Status == LotOpen:
		rank = 1
	case l.Status.Terminal():
		rank = 2
	}
	return l.BidsCount*4 + rank
}

// MinimumBid is the lowest amount the next bid may carry.
func (l Lot) MinimumBid() int64 {
	return l.Price + l.Increment
}

// ExpiredAt reports whether the lot's end time is strictly before t.
func (l Lot) ExpiredAt(t time.Time) bool {
	return l.EndTime != nil && t.After(*l.EndTime)
}

// HasLeader is false until the first bid is accepted.
func (l Lot) HasLeader() bool {
	return l.LeaderID != uuid.Nil
}
