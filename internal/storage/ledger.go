package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
)

// LedgerDocument is the archived record of a closed lot.
type LedgerDocument struct {
	Lot        model.Lot   `json:"lot"`
	Bids       []model.Bid `json:"bids"`
	ArchivedAt time.Time   `json:"archived_at"`
}

// LedgerArchive writes closed lots' bid ledgers as JSON objects.
type LedgerArchive struct {
	storage Storager
	bucket  string
}

func NewLedgerArchive(s Storager, bucket string) *LedgerArchive {
	return &LedgerArchive{storage: s, bucket: bucket}
}

func LedgerKey(tenantID, auctionID, lotID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/%s.json", tenantID, auctionID, lotID)
}

func (a *LedgerArchive) ArchiveLedger(ctx context.Context, lot model.Lot, bids []model.Bid) error {
	if bids == nil {
		bids = []model.Bid{}
	}
	doc, err := json.Marshal(LedgerDocument{Lot: lot, Bids: bids, ArchivedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = a.storage.PutObject(ctx, a.bucket, LedgerKey(lot.TenantID, lot.AuctionID, lot.ID), doc, "application/json")
	return err
}

// Ledger reads an archived ledger back.
func (a *LedgerArchive) Ledger(ctx context.Context, tenantID, auctionID, lotID uuid.UUID) (LedgerDocument, error) {
	raw, err := a.storage.GetFile(ctx, a.bucket, LedgerKey(tenantID, auctionID, lotID))
	if err != nil {
		return LedgerDocument{}, err
	}
	var doc LedgerDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return LedgerDocument{}, fmt.Errorf("decode ledger: %w", err)
	}
	return doc, nil
}

// LedgerURL returns a presigned download link for an archived ledger.
func (a *LedgerArchive) LedgerURL(ctx context.Context, lot model.Lot) (string, error) {
	return a.storage.GetFileUrl(ctx, a.bucket, LedgerKey(lot.TenantID, lot.AuctionID, lot.ID))
}
