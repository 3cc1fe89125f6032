package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/events"
	"github.com/itsDrac/e-auc-bidding/internal/model"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type instance struct {
	bus    *events.Bus
	hub    *Hub
	bridge *Bridge
}

func startInstance(t *testing.T, id string, backbone Backbone) instance {
	t.Helper()
	log := logger.NewNop()
	inst := instance{
		bus: events.NewBus(4, 256, log),
		hub: NewHub(256, log),
	}
	inst.bridge = NewBridge(id, inst.hub, backbone, log)
	inst.bus.Subscribe(inst.bridge.HandleEvent)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = inst.bus.Run(ctx) }()
	go func() { _ = inst.bridge.Run(ctx) }()
	return inst
}

func TestBridge_RelaysAcrossInstancesInOrder(t *testing.T) {
	backbone := NewLocalBackbone(1024)
	a := startInstance(t, "a", backbone)
	b := startInstance(t, "b", backbone)

	tenant, lot, auction := uuid.New(), uuid.New(), uuid.New()
	local := a.hub.Register(tenant, uuid.New())
	a.hub.Join(local, ScopeLot, lot)
	remote := b.hub.Register(tenant, uuid.New())
	b.hub.Join(remote, ScopeAuction, auction)

	// Let both bridges subscribe before publishing.
	time.Sleep(50 * time.Millisecond)

	const n = 50
	for seq := int64(1); seq <= n; seq++ {
		a.bus.EmitBid(model.Bid{
			TenantID: tenant, LotID: lot, AuctionID: auction,
			Amount: 100 + seq, Sequence: seq, Origin: model.OriginHuman,
		})
	}
	a.bus.EmitSoftClose(model.SoftCloseEvent{
		TenantID: tenant, LotID: lot, AuctionID: auction, Sequence: n, MinutesAdded: 2,
	})

	for _, c := range []*Client{local, remote} {
		var got []json.RawMessage
		require.Eventually(t, func() bool {
			for {
				select {
				case raw := <-c.Send():
					got = append(got, raw)
				default:
					return len(got) == n+1
				}
			}
		}, 2*time.Second, 10*time.Millisecond)

		for i := 0; i < n; i++ {
			var msg struct {
				Type MessageType `json:"type"`
				Data BidPayload  `json:"data"`
			}
			require.NoError(t, json.Unmarshal(got[i], &msg))
			assert.Equal(t, MsgBid, msg.Type)
			assert.Equal(t, int64(i+1), msg.Data.Sequence)
		}
		var last struct {
			Type MessageType      `json:"type"`
			Data SoftClosePayload `json:"data"`
		}
		require.NoError(t, json.Unmarshal(got[n], &last))
		assert.Equal(t, MsgSoftClose, last.Type)
	}

	// Instance a ignores its own echo from the backbone.
	assert.Zero(t, a.hub.Stats().Stale)
}

type failingBackbone struct{}

func (failingBackbone) Publish(context.Context, Envelope) error { return assert.AnError }

func (failingBackbone) Subscribe(ctx context.Context, _ func(Envelope)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (failingBackbone) Close() error { return nil }

func TestBridge_BackboneFailureStillDeliversLocally(t *testing.T) {
	log := logger.NewNop()
	hub := NewHub(8, log)
	bridge := NewBridge("a", hub, failingBackbone{}, log)

	tenant, lot := uuid.New(), uuid.New()
	c := hub.Register(tenant, uuid.New())
	hub.Join(c, ScopeLot, lot)

	bridge.HandleEvent(events.Event{
		Kind: events.KindBid, TenantID: tenant, LotID: lot, Sequence: 1,
		Bid: &model.Bid{TenantID: tenant, LotID: lot, Sequence: 1},
	})
	assert.Len(t, drain(c), 1)
}

func TestNewEnvelope_RejectsMissingPayload(t *testing.T) {
	_, err := NewEnvelope("a", events.Event{Kind: events.KindBid})
	assert.Error(t, err)
	_, err = NewEnvelope("a", events.Event{Kind: "unknown"})
	assert.Error(t, err)
}
