package model

type PlaceBidRequest struct {
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	AuctionID string `json:"auction_id" validate:"omitempty,uuid"`
}

type RegisterProxyBidRequest struct {
	MaxAmount int64 `json:"max_amount" validate:"required,gt=0"`
}

type ConcurrencyProbeRequest struct {
	LotID     string   `json:"lot_id" validate:"omitempty,uuid"`
	BidderIDs []string `json:"bidder_ids" validate:"required,len=2,unique,dive,uuid"`
}
