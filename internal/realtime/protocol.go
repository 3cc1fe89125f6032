// Package realtime delivers committed bidding events to connected viewers
// and relays them between server instances over a shared backbone.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/events"
	"github.com/itsDrac/e-auc-bidding/internal/model"
)

type MessageType string

const (
	MsgBid       MessageType = "bid"
	MsgSoftClose MessageType = "soft_close"
	MsgLotClosed MessageType = "lot_closed"
	MsgJoined    MessageType = "joined"
	MsgLeft      MessageType = "left"
	MsgError     MessageType = "error"
)

const (
	ScopeLot     = "lot"
	ScopeAuction = "auction"
)

// ClientMessage is what a viewer sends over the socket.
type ClientMessage struct {
	Type  string `json:"type" validate:"required,oneof=join leave"`
	Scope string `json:"scope" validate:"required,scope"`
	ID    string `json:"id" validate:"required,uuid"`
}

type Outbound struct {
	Type MessageType `json:"type"`
	Data any         `json:"data,omitempty"`
}

type BidPayload struct {
	TenantID      uuid.UUID       `json:"tenant_id"`
	LotID         uuid.UUID       `json:"lot_id"`
	AuctionID     uuid.UUID       `json:"auction_id"`
	Amount        int64           `json:"amount"`
	BidderID      uuid.UUID       `json:"bidder_id"`
	BidderDisplay string          `json:"bidder_display"`
	Origin        model.BidOrigin `json:"origin"`
	Sequence      int64           `json:"sequence"`
	Timestamp     time.Time       `json:"timestamp"`
}

type SoftClosePayload struct {
	LotID        uuid.UUID `json:"lot_id"`
	AuctionID    uuid.UUID `json:"auction_id"`
	MinutesAdded float64   `json:"minutes_added"`
	NewEndTime   time.Time `json:"new_end_time"`
	Sequence     int64     `json:"sequence"`
	Timestamp    time.Time `json:"timestamp"`
}

type GroupAck struct {
	Scope string `json:"scope"`
	ID    string `json:"id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Envelope is the unit published on the backbone. Data is the rendered
// viewer payload, so receiving instances forward it without decoding.
type Envelope struct {
	Origin    string          `json:"origin"`
	Type      MessageType     `json:"type"`
	TenantID  uuid.UUID       `json:"tenant_id"`
	LotID     uuid.UUID       `json:"lot_id"`
	AuctionID uuid.UUID       `json:"auction_id"`
	Sequence  int64           `json:"sequence"`
	Data      json.RawMessage `json:"data"`
}

// NewEnvelope renders a bus event into the viewer wire format.
func NewEnvelope(origin string, ev events.Event) (Envelope, error) {
	var (
		typ     MessageType
		payload any
	)
	switch ev.Kind {
	case events.KindBid:
		if ev.Bid == nil {
			return Envelope{}, fmt.Errorf("bid event without payload")
		}
		b := ev.Bid
		typ = MsgBid
		payload = BidPayload{
			TenantID:      b.TenantID,
			LotID:         b.LotID,
			AuctionID:     b.AuctionID,
			Amount:        b.Amount,
			BidderID:      b.BidderID,
			BidderDisplay: b.BidderDisplay,
			Origin:        b.Origin,
			Sequence:      b.Sequence,
			Timestamp:     b.CreatedAt,
		}
	case events.KindSoftClose:
		if ev.SoftClose == nil {
			return Envelope{}, fmt.Errorf("soft close event without payload")
		}
		s := ev.SoftClose
		typ = MsgSoftClose
		payload = SoftClosePayload{
			LotID:        s.LotID,
			AuctionID:    s.AuctionID,
			MinutesAdded: s.MinutesAdded,
			NewEndTime:   s.NewEndTime,
			Sequence:     s.Sequence,
			Timestamp:    s.Timestamp,
		}
	case events.KindLotClosed:
		if ev.LotClosed == nil {
			return Envelope{}, fmt.Errorf("lot closed event without payload")
		}
		typ = MsgLotClosed
		payload = ev.LotClosed
	default:
		return Envelope{}, fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Origin:    origin,
		Type:      typ,
		TenantID:  ev.TenantID,
		LotID:     ev.LotID,
		AuctionID: ev.AuctionID,
		Sequence:  ev.Sequence,
		Data:      data,
	}, nil
}

func lotGroup(tenantID, lotID uuid.UUID) string {
	return "lot:" + tenantID.String() + ":" + lotID.String()
}

func auctionGroup(tenantID, auctionID uuid.UUID) string {
	return "auction:" + tenantID.String() + ":" + auctionID.String()
}

func groupKey(tenantID uuid.UUID, scope string, id uuid.UUID) string {
	if scope == ScopeAuction {
		return auctionGroup(tenantID, id)
	}
	return lotGroup(tenantID, id)
}

func encode(msg Outbound) []byte {
	b, _ := json.Marshal(msg)
	return b
}
