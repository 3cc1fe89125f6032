package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
	"github.com/itsDrac/e-auc-bidding/internal/service"
)

const (
	lotParamKey     string = "lotId"
	auctionParamKey string = "auctionId"

	defaultBidsLimit = 50
	maxBidsLimit     = 500
)

type BidHandler struct {
	svc     service.BiddingServicer
	timeout time.Duration
}

func NewBidHandler(svc service.BiddingServicer, timeout time.Duration) (*BidHandler, error) {
	if svc == nil {
		return nil, errors.New("bidding service is required")
	}
	return &BidHandler{
		svc:     svc,
		timeout: timeout,
	}, nil
}

// PlaceBid godoc
//
//	@Summary		Place a bid
//	@Description	Place a bid on an open lot. Standing proxy ceilings may answer it immediately.
//	@Tags			Bids
//	@Accept			json
//	@Produce		json
//	@Param			lotId	path		string					true	"Lot ID"
//	@Param			bid		body		model.PlaceBidRequest	true	"Bid amount"
//	@Success		201		{object}	map[string]any
//	@Failure		409		{object}	map[string]any
//	@Failure		422		{object}	map[string]any
//	@Failure		503		{object}	map[string]any
//	@Failure		504		{object}	map[string]any
//	@Router			/lots/{lotId}/bids [post]
func (h *BidHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	lotID, ok := uuidParam(w, r, chi.URLParam(r, lotParamKey), lotParamKey)
	if !ok {
		return
	}

	var req model.PlaceBidRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	var auctionID uuid.UUID
	if req.AuctionID != "" {
		auctionID = uuid.MustParse(req.AuctionID)
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.svc.PlaceBid(ctx, service.PlaceBidParams{
		TenantID:      claims.TenantID,
		LotID:         lotID,
		AuctionID:     auctionID,
		BidderID:      claims.UserID,
		BidderDisplay: claims.DisplayName,
		Amount:        req.Amount,
	})
	if err != nil {
		// The commit may have landed before the deadline fired.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !service.IsRejection(err) {
			err = context.DeadlineExceeded
		}
		RespondServiceError(w, r, err)
		return
	}

	RespondSuccessJSON(w, r, http.StatusCreated, "bid accepted", result)
}

// ListBids godoc
//
//	@Summary		List a lot's bid ledger
//	@Tags			Bids
//	@Produce		json
//	@Param			lotId	path		string	true	"Lot ID"
//	@Param			limit	query		int		false	"Most recent N bids"
//	@Success		200		{object}	map[string]any
//	@Router			/lots/{lotId}/bids [get]
func (h *BidHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	lotID, ok := uuidParam(w, r, chi.URLParam(r, lotParamKey), lotParamKey)
	if !ok {
		return
	}
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	limit := defaultBidsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			RespondErrorJSON(w, r, http.StatusBadRequest, ErrInvalidRequest.Error(), "limit must be a positive integer", nil)
			return
		}
		limit = min(n, maxBidsLimit)
	}

	bids, err := h.svc.ListBids(r.Context(), claims.TenantID, lotID, limit)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	if bids == nil {
		bids = []model.Bid{}
	}
	RespondSuccessJSON(w, r, http.StatusOK, "", map[string]any{
		"lot_id": lotID,
		"bids":   bids,
	})
}

// RegisterProxyBid godoc
//
//	@Summary		Register or replace a proxy ceiling
//	@Description	The ceiling is never revealed. Any bids it places right away are returned.
//	@Tags			Bids
//	@Accept			json
//	@Produce		json
//	@Param			lotId	path		string							true	"Lot ID"
//	@Param			proxy	body		model.RegisterProxyBidRequest	true	"Ceiling"
//	@Success		200		{object}	map[string]any
//	@Failure		422		{object}	map[string]any
//	@Router			/lots/{lotId}/proxy-bid [put]
func (h *BidHandler) RegisterProxyBid(w http.ResponseWriter, r *http.Request) {
	lotID, ok := uuidParam(w, r, chi.URLParam(r, lotParamKey), lotParamKey)
	if !ok {
		return
	}

	var req model.RegisterProxyBidRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	placed, err := h.svc.RegisterProxyBid(r.Context(), service.RegisterProxyParams{
		TenantID:      claims.TenantID,
		LotID:         lotID,
		BidderID:      claims.UserID,
		BidderDisplay: claims.DisplayName,
		MaxAmount:     req.MaxAmount,
	})
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondSuccessJSON(w, r, http.StatusOK, "proxy bid registered", map[string]any{
		"lot_id":     lotID,
		"proxy_bids": placed,
	})
}
