package realtime

import (
	"context"
	"time"

	"github.com/itsDrac/e-auc-bidding/internal/events"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
)

const publishTimeout = 2 * time.Second

// Bridge connects the local event bus to the hub and the backbone.
type Bridge struct {
	instanceID string
	hub        *Hub
	backbone   Backbone
	log        *logger.Logger
}

func NewBridge(instanceID string, hub *Hub, backbone Backbone, log *logger.Logger) *Bridge {
	return &Bridge{
		instanceID: instanceID,
		hub:        hub,
		backbone:   backbone,
		log:        log.Component("bridge"),
	}
}

// HandleEvent is subscribed to the bus. It delivers locally first, then
// republishes for the other instances. A backbone failure is only logged.
func (b *Bridge) HandleEvent(ev events.Event) {
	env, err := NewEnvelope(b.instanceID, ev)
	if err != nil {
		b.log.Errorw("failed to render event", "kind", ev.Kind, "lot_id", ev.LotID, "error", err)
		return
	}

	b.hub.Deliver(env)

	if b.backbone == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.backbone.Publish(ctx, env); err != nil {
		b.log.Warnw("backbone publish failed", "kind", ev.Kind, "lot_id", ev.LotID, "error", err)
	}
}

// Run delivers envelopes from other instances to local viewers until ctx is
// cancelled, resubscribing after backbone errors.
func (b *Bridge) Run(ctx context.Context) error {
	if b.backbone == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		err := b.backbone.Subscribe(ctx, func(env Envelope) {
			if env.Origin == b.instanceID {
				return
			}
			b.hub.Deliver(env)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.log.Errorw("backbone subscription ended, retrying", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
