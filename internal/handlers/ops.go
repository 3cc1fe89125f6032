package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
	"github.com/itsDrac/e-auc-bidding/internal/service"
)

type OpsHandler struct {
	prober service.Prober
}

func NewOpsHandler(prober service.Prober) (*OpsHandler, error) {
	if prober == nil {
		return nil, errors.New("prober is required")
	}
	return &OpsHandler{prober: prober}, nil
}

// ConcurrencyProbe godoc
//
//	@Summary		Run the concurrency probe
//	@Description	Fires two identical bids at one lot at once. Exactly one must be accepted.
//	@Tags			Ops
//	@Accept			json
//	@Produce		json
//	@Param			probe	body		model.ConcurrencyProbeRequest	true	"Probe"
//	@Success		200		{object}	map[string]any
//	@Failure		404		{object}	map[string]any
//	@Router			/ops/concurrency-probe [post]
func (h *OpsHandler) ConcurrencyProbe(w http.ResponseWriter, r *http.Request) {
	var req model.ConcurrencyProbeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	claims := requireClaims(w, r)
	if claims == nil {
		return
	}

	p := service.ProbeParams{TenantID: claims.TenantID}
	if req.LotID != "" {
		p.LotID = uuid.MustParse(req.LotID)
	}
	for i, id := range req.BidderIDs {
		p.BidderIDs[i] = uuid.MustParse(id)
	}

	report, err := h.prober.Run(r.Context(), p)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}

	message := "concurrency probe passed"
	if !report.Passed {
		message = "concurrency probe failed"
	}
	RespondSuccessJSON(w, r, http.StatusOK, message, report)
}
