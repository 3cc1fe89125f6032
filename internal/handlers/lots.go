package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/itsDrac/e-auc-bidding/internal/model"
	"github.com/itsDrac/e-auc-bidding/internal/service"
)

// LedgerLinker hands out download links for archived ledgers of closed lots.
type LedgerLinker interface {
	LedgerURL(ctx context.Context, lot model.Lot) (string, error)
}

type LotHandler struct {
	bidding   service.BiddingServicer
	lifecycle service.AuctionOpener
	ledger    LedgerLinker
}

func NewLotHandler(bidding service.BiddingServicer, lifecycle service.AuctionOpener, ledger LedgerLinker) (*LotHandler, error) {
	if bidding == nil || lifecycle == nil || ledger == nil {
		return nil, errors.New("lot handler needs bidding, lifecycle and ledger services")
	}
	return &LotHandler{
		bidding:   bidding,
		lifecycle: lifecycle,
		ledger:    ledger,
	}, nil
}

// GetLot godoc
//
//	@Summary		Get a lot
//	@Tags			Lots
//	@Produce		json
//	@Param			lotId	path		string	true	"Lot ID"
//	@Success		200		{object}	map[string]any
//	@Failure		404		{object}	map[string]any
//	@Router			/lots/{lotId} [get]
func (h *LotHandler) GetLot(w http.ResponseWriter, r *http.Request) {
	lotID, ok := uuidParam(w, r, chi.URLParam(r, lotParamKey), lotParamKey)
	if !ok {
		return
	}
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	lot, err := h.bidding.GetLot(r.Context(), claims.TenantID, lotID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondSuccessJSON(w, r, http.StatusOK, "", map[string]any{
		"lot":         lot,
		"minimum_bid": lot.MinimumBid(),
	})
}

// GetLedger godoc
//
//	@Summary		Download link for a closed lot's bid ledger
//	@Tags			Lots
//	@Produce		json
//	@Param			lotId	path		string	true	"Lot ID"
//	@Success		200		{object}	map[string]any
//	@Failure		409		{object}	map[string]any
//	@Router			/lots/{lotId}/ledger [get]
func (h *LotHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	lotID, ok := uuidParam(w, r, chi.URLParam(r, lotParamKey), lotParamKey)
	if !ok {
		return
	}
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	lot, err := h.bidding.GetLot(r.Context(), claims.TenantID, lotID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	if !lot.Status.Terminal() {
		RespondErrorJSON(w, r, http.StatusConflict, ErrLotNotClosed.Error(), "the ledger is archived once the lot closes", nil)
		return
	}

	url, err := h.ledger.LedgerURL(r.Context(), lot)
	if err != nil {
		slog.Error("[Ledger] presign failed -> ", "lot_id", lotID, "error", err.Error())
		RespondErrorJSON(w, r, http.StatusInternalServerError, ErrInternalServer.Error(), "Internal server error", nil)
		return
	}
	RespondSuccessJSON(w, r, http.StatusOK, "", map[string]any{
		"lot_id": lotID,
		"url":    url,
	})
}

// OpenAuction godoc
//
//	@Summary		Open an auction
//	@Description	Moves every pre-open lot of the auction to open.
//	@Tags			Lots
//	@Produce		json
//	@Param			auctionId	path		string	true	"Auction ID"
//	@Success		200			{object}	map[string]any
//	@Router			/auctions/{auctionId}/open [post]
func (h *LotHandler) OpenAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := uuidParam(w, r, chi.URLParam(r, auctionParamKey), auctionParamKey)
	if !ok {
		return
	}
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	lots, err := h.lifecycle.OpenAuction(r.Context(), claims.TenantID, auctionID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondSuccessJSON(w, r, http.StatusOK, "auction opened", map[string]any{
		"auction_id": auctionID,
		"opened":     lots,
	})
}
