package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/db"
	"github.com/itsDrac/e-auc-bidding/internal/model"
	"github.com/jackc/pgx/v5"
)

const lotColumns = `
	l.id,
	l.tenant_id,
	l.auction_id,
	l.title,
	l.price,
	l.initial_price,
	l.increment,
	l.status,
	l.end_time,
	l.scheduled_end_time,
	l.bids_count,
	l.leader_id,
	l.soft_close_enabled,
	l.extensions,
	l.updated_at`

type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(db *db.DB) *PostgresStore {
	return &PostgresStore{
		db: db,
	}
}

func scanLot(row pgx.Row) (model.Lot, error) {
	var (
		l      model.Lot
		leader *uuid.UUID
	)
	err := row.Scan(
		&l.ID,
		&l.TenantID,
		&l.AuctionID,
		&l.Title,
		&l.Price,
		&l.InitialPrice,
		&l.Increment,
		&l.Status,
		&l.EndTime,
		&l.ScheduledEndTime,
		&l.BidsCount,
		&leader,
		&l.SoftCloseEnabled,
		&l.Extensions,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Lot{}, ErrNotFound
		}
		return model.Lot{}, err
	}
	if leader != nil {
		l.LeaderID = *leader
	}
	return l, nil
}

func collectLots(rows pgx.Rows) ([]model.Lot, error) {
	defer rows.Close()
	var lots []model.Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

func (s *PostgresStore) CreateLot(ctx context.Context, lot model.Lot) (model.Lot, error) {
	if lot.ID == uuid.Nil {
		lot.ID = uuid.New()
	}
	if lot.Status == "" {
		lot.Status = model.LotPreOpen
	}
	if lot.Price == 0 {
		lot.Price = lot.InitialPrice
	}
	if lot.ScheduledEndTime == nil {
		lot.ScheduledEndTime = lot.EndTime
	}

	const q = `
		INSERT INTO lots AS l (
			id, tenant_id, auction_id, title, price, initial_price, increment,
			status, end_time, scheduled_end_time, soft_close_enabled
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING` + lotColumns + `;`

	return scanLot(s.db.Pool.QueryRow(ctx, q,
		lot.ID,
		lot.TenantID,
		lot.AuctionID,
		lot.Title,
		lot.Price,
		lot.InitialPrice,
		lot.Increment,
		lot.Status,
		lot.EndTime,
		lot.ScheduledEndTime,
		lot.SoftCloseEnabled,
	))
}

func (s *PostgresStore) GetLot(ctx context.Context, tenantID, lotID uuid.UUID) (model.Lot, error) {
	const q = `
		SELECT` + lotColumns + `
		FROM lots l
		WHERE l.id = $1 AND l.tenant_id = $2
		LIMIT 1;
	`
	return scanLot(s.db.Pool.QueryRow(ctx, q, lotID, tenantID))
}

func (s *PostgresStore) FindOpenLot(ctx context.Context, tenantID uuid.UUID) (model.Lot, error) {
	const q = `
		SELECT` + lotColumns + `
		FROM lots l
		WHERE l.tenant_id = $1
		  AND l.status = 'open'
		  AND (l.end_time IS NULL OR l.end_time >= NOW())
		ORDER BY l.updated_at DESC
		LIMIT 1;
	`
	return scanLot(s.db.Pool.QueryRow(ctx, q, tenantID))
}

func (s *PostgresStore) CommitBid(ctx context.Context, p CommitBidParams) (model.Lot, error) {
	const update = `
		UPDATE lots AS l SET
			price      = $5,
			bids_count = l.bids_count + 1,
			leader_id  = $6,
			end_time   = CASE
				WHEN $7::timestamptz IS NOT NULL AND l.end_time IS NOT NULL AND $7::timestamptz > l.end_time
				THEN $7::timestamptz
				ELSE l.end_time
			END,
			extensions = CASE
				WHEN $7::timestamptz IS NOT NULL AND l.end_time IS NOT NULL AND $7::timestamptz > l.end_time
				THEN l.extensions + 1
				ELSE l.extensions
			END,
			updated_at = $8
		WHERE l.id = $1
		  AND l.tenant_id = $2
		  AND l.price = $3
		  AND l.bids_count = $4
		  AND l.status = 'open'
		  AND (l.end_time IS NULL OR l.end_time >= $8)
		RETURNING` + lotColumns + `;`

	const insert = `
		INSERT INTO bids (
			id, tenant_id, lot_id, auction_id, bidder_id, bidder_display,
			amount, origin, sequence, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`

	var updated model.Lot
	err := s.db.RunTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		lot, err := scanLot(tx.QueryRow(ctx, update,
			p.LotID,
			p.TenantID,
			p.ExpectedPrice,
			p.ExpectedBidsCount,
			p.Bid.Amount,
			p.Bid.BidderID,
			p.NewEndTime,
			p.Now,
		))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrConflict
			}
			return fmt.Errorf("update lot: %w", err)
		}

		b := p.Bid
		_, err = tx.Exec(ctx, insert,
			b.ID,
			p.TenantID,
			p.LotID,
			b.AuctionID,
			b.BidderID,
			b.BidderDisplay,
			b.Amount,
			b.Origin,
			lot.BidsCount,
			b.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert bid: %w", err)
		}

		updated = lot
		return nil
	})
	if err != nil {
		return model.Lot{}, err
	}
	return updated, nil
}

func (s *PostgresStore) ListBids(ctx context.Context, tenantID, lotID uuid.UUID, limit int) ([]model.Bid, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
		SELECT * FROM (
			SELECT
				b.id,
				b.lot_id,
				b.auction_id,
				b.tenant_id,
				b.bidder_id,
				b.bidder_display,
				b.amount,
				b.origin,
				b.sequence,
				b.created_at
			FROM bids b
			WHERE b.tenant_id = $1 AND b.lot_id = $2
			ORDER BY b.sequence DESC
			LIMIT $3
		) recent
		ORDER BY sequence ASC;
	`

	rows, err := s.db.Pool.Query(ctx, q, tenantID, lotID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bids := []model.Bid{}
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(
			&b.ID,
			&b.LotID,
			&b.AuctionID,
			&b.TenantID,
			&b.BidderID,
			&b.BidderDisplay,
			&b.Amount,
			&b.Origin,
			&b.Sequence,
			&b.CreatedAt,
		); err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

func (s *PostgresStore) UpsertProxyBid(ctx context.Context, p model.ProxyBid) error {
	const q = `
		INSERT INTO proxy_bids (tenant_id, lot_id, bidder_id, bidder_display, max_amount, registered_at)
		SELECT $1, l.id, $3, $4, $5, $6
		FROM lots l
		WHERE l.id = $2 AND l.tenant_id = $1
		ON CONFLICT (lot_id, bidder_id) DO UPDATE SET
			bidder_display = EXCLUDED.bidder_display,
			max_amount     = EXCLUDED.max_amount,
			registered_at  = EXCLUDED.registered_at;
	`
	tag, err := s.db.Pool.Exec(ctx, q, p.TenantID, p.LotID, p.BidderID, p.BidderDisplay, p.MaxAmount, p.RegisteredAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListProxyBids(ctx context.Context, tenantID, lotID uuid.UUID) ([]model.ProxyBid, error) {
	const q = `
		SELECT p.tenant_id, p.lot_id, p.bidder_id, p.bidder_display, p.max_amount, p.registered_at
		FROM proxy_bids p
		WHERE p.tenant_id = $1 AND p.lot_id = $2
		ORDER BY p.registered_at ASC;
	`
	rows, err := s.db.Pool.Query(ctx, q, tenantID, lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProxyBid
	for rows.Next() {
		var p model.ProxyBid
		if err := rows.Scan(&p.TenantID, &p.LotID, &p.BidderID, &p.BidderDisplay, &p.MaxAmount, &p.RegisteredAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) OpenAuctionLots(ctx context.Context, tenantID, auctionID uuid.UUID) ([]model.Lot, error) {
	const q = `
		UPDATE lots AS l SET status = 'open', updated_at = NOW()
		WHERE l.tenant_id = $1 AND l.auction_id = $2 AND l.status = 'pre_open'
		RETURNING` + lotColumns + `;`

	rows, err := s.db.Pool.Query(ctx, q, tenantID, auctionID)
	if err != nil {
		return nil, err
	}
	return collectLots(rows)
}

func (s *PostgresStore) ListExpiredLots(ctx context.Context, now time.Time, limit int) ([]model.Lot, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
		SELECT` + lotColumns + `
		FROM lots l
		WHERE l.status = 'open' AND l.end_time < $1
		ORDER BY l.end_time ASC
		LIMIT $2;
	`
	rows, err := s.db.Pool.Query(ctx, q, now, limit)
	if err != nil {
		return nil, err
	}
	return collectLots(rows)
}

func (s *PostgresStore) CloseLot(ctx context.Context, tenantID, lotID uuid.UUID, now time.Time) (model.Lot, error) {
	const q = `
		UPDATE lots AS l SET
			status = CASE WHEN l.bids_count > 0 THEN 'sold' ELSE 'closed_no_bids' END,
			updated_at = $3
		WHERE l.id = $1
		  AND l.tenant_id = $2
		  AND l.status = 'open'
		  AND l.end_time < $3
		RETURNING` + lotColumns + `;`

	lot, err := scanLot(s.db.Pool.QueryRow(ctx, q, lotID, tenantID, now))
	if errors.Is(err, ErrNotFound) {
		return model.Lot{}, ErrConflict
	}
	return lot, err
}
