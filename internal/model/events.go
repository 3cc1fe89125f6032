package model

import (
	"time"

	"github.com/google/uuid"
)

// SoftCloseEvent is emitted each time a lot's end time is pushed forward.
type SoftCloseEvent struct {
	TenantID        uuid.UUID `json:"tenant_id"`
	LotID           uuid.UUID `json:"lot_id"`
	AuctionID       uuid.UUID `json:"auction_id"`
	MinutesAdded    float64   `json:"minutes_added"`
	PreviousEndTime time.Time `json:"previous_end_time"`
	NewEndTime      time.Time `json:"new_end_time"`
	Sequence        int64     `json:"sequence"`
	Timestamp       time.Time `json:"timestamp"`
}

type LotClosedEvent struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	LotID      uuid.UUID `json:"lot_id"`
	AuctionID  uuid.UUID `json:"auction_id"`
	Status     LotStatus `json:"status"`
	FinalPrice int64     `json:"final_price"`
	WinnerID   uuid.UUID `json:"winner_id"`
	Sequence   int64     `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
}
