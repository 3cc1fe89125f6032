package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
)

// LotCache stores JSON lot snapshots for the read endpoint. Bidding never
// reads from it. Writes carry the lot version, so a reader that loaded the
// lot before a commit cannot overwrite the committed snapshot.
type LotCache struct {
	c   Cacher
	ttl time.Duration
}

func NewLotCache(c Cacher, ttl time.Duration) *LotCache {
	return &LotCache{c: c, ttl: ttl}
}

func lotKey(tenantID, lotID uuid.UUID) string {
	return fmt.Sprintf("lot:%s:%s", tenantID, lotID)
}

func (l *LotCache) GetLot(ctx context.Context, tenantID, lotID uuid.UUID) (model.Lot, bool, error) {
	raw, ok, err := l.c.Get(ctx, lotKey(tenantID, lotID))
	if err != nil || !ok {
		return model.Lot{}, false, err
	}
	var lot model.Lot
	_, body, framed := SplitVersioned(raw)
	if !framed || json.Unmarshal([]byte(body), &lot) != nil {
		// A snapshot we cannot read is a miss.
		_ = l.c.Delete(ctx, lotKey(tenantID, lotID))
		return model.Lot{}, false, nil
	}
	return lot, true, nil
}

// SetLot stores the snapshot unless a newer one is already cached.
func (l *LotCache) SetLot(ctx context.Context, lot model.Lot) error {
	b, err := json.Marshal(lot)
	if err != nil {
		return err
	}
	_, err = l.c.SetIfNewer(ctx, lotKey(lot.TenantID, lot.ID), string(b), lot.Version(), l.ttl)
	return err
}
