package service

import (
	"time"

	"github.com/itsDrac/e-auc-bidding/internal/model"
	"github.com/itsDrac/e-auc-bidding/pkg/config"
)

// SoftCloseController pushes a lot's end time back when a bid lands inside
// the closing window.
type SoftCloseController struct {
	cfg config.SoftCloseConfig
}

func NewSoftCloseController(cfg config.SoftCloseConfig) *SoftCloseController {
	return &SoftCloseController{cfg: cfg}
}

// MaybeExtend returns the extension a bid accepted at acceptedAt applies to
// lot, or nil when the end time stays put. The new end is acceptedAt+Window
// and is only ever later than the current end.
func (c *SoftCloseController) MaybeExtend(lot model.Lot, acceptedAt time.Time) *model.SoftCloseEvent {
	if !lot.SoftCloseEnabled || lot.EndTime == nil || c.cfg.Window <= 0 {
		return nil
	}
	end := *lot.EndTime

	remaining := end.Sub(acceptedAt)
	if remaining < 0 || remaining > c.cfg.Window {
		return nil
	}
	if c.cfg.MaxExtensions > 0 && lot.Extensions >= c.cfg.MaxExtensions {
		return nil
	}

	newEnd := acceptedAt.Add(c.cfg.Window)
	if c.cfg.MaxTotalExtension > 0 {
		scheduled := end
		if lot.ScheduledEndTime != nil {
			scheduled = *lot.ScheduledEndTime
		}
		if limit := scheduled.Add(c.cfg.MaxTotalExtension); newEnd.After(limit) {
			newEnd = limit
		}
	}
	if !newEnd.After(end) {
		return nil
	}

	return &model.SoftCloseEvent{
		TenantID:        lot.TenantID,
		LotID:           lot.ID,
		AuctionID:       lot.AuctionID,
		MinutesAdded:    newEnd.Sub(end).Minutes(),
		PreviousEndTime: end,
		NewEndTime:      newEnd,
		Timestamp:       acceptedAt,
	}
}
