package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
	"github.com/itsDrac/e-auc-bidding/internal/service"
	"github.com/itsDrac/e-auc-bidding/pkg/config"
	valid "github.com/itsDrac/e-auc-bidding/pkg/validator"
)

var validate = valid.GetValidator()

var requestIDKey = "X-Request-ID"

// Seconds a client should wait before retrying after STORE_UNAVAILABLE.
const retryAfterSeconds = 1

func writeJson(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to write json response", "status", status, "error", err)
	}
}

func GetUserClaims(ctx context.Context) *config.UserClaims {
	claims, ok := ctx.Value(config.UserClaimKey).(*config.UserClaims)
	if !ok {
		return nil
	}
	return claims
}

func requestID(w http.ResponseWriter, r *http.Request) string {
	// fetch request ID , if not found generate new UUID
	reqID := r.Header.Get(requestIDKey)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	// This ensures the client gets the ID whether they sent it or we created it.
	w.Header().Set(requestIDKey, reqID)
	return reqID
}

func RespondSuccessJSON[T any](w http.ResponseWriter, r *http.Request, status int, message string, data T) {
	payload := model.APIResponse[T]{
		Status:  "success",
		Message: message,
		Metadata: model.Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: requestID(w, r),
		},
		Data:  data,
		Error: nil,
	}
	writeJson(w, status, payload)
}

func RespondErrorJSON(w http.ResponseWriter, r *http.Request, status int, code string, message string, details []model.ErrorDetails) {
	respondError(w, r, status, &model.APIError{
		Code:    code,
		Message: message,
		Details: details,
	})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, apiErr *model.APIError) {
	payload := model.APIResponse[any]{
		Status: "error",
		Metadata: model.Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: requestID(w, r),
		},
		Error: apiErr,
	}
	writeJson(w, status, payload)
}

// RespondServiceError maps errors returned by the bidding services onto
// response codes. Rejections carry the lot's price so clients can re-bid.
func RespondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := http.StatusInternalServerError, ErrInternalServer, "Internal server error"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status, code, message = http.StatusGatewayTimeout, ErrOutcomeUnknown, "bid outcome unknown, re-read the lot before retrying"
	case errors.Is(err, service.ErrUnavailable):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		status, code, message = http.StatusServiceUnavailable, ErrUnavailable, "bid store unavailable, retry later"
	case errors.Is(err, service.ErrLotNotFound):
		status, code, message = http.StatusNotFound, ErrLotNotFound, "lot not found"
	case errors.Is(err, service.ErrLotNotOpen):
		status, code, message = http.StatusConflict, ErrLotNotOpen, "lot is not open for bidding"
	case errors.Is(err, service.ErrLotExpired):
		status, code, message = http.StatusConflict, ErrLotExpired, "lot has closed"
	case errors.Is(err, service.ErrStalePrice):
		status, code, message = http.StatusConflict, ErrStalePrice, "the price moved before your bid landed"
	case errors.Is(err, service.ErrBidTooLow):
		status, code, message = http.StatusUnprocessableEntity, ErrBidLow, "Your bid must reach the minimum bid"
	case errors.Is(err, service.ErrCeilingTooLow):
		status, code, message = http.StatusUnprocessableEntity, ErrCeilingLow, "Your ceiling must be above the current price"
	case errors.Is(err, service.ErrNoOpenLot):
		status, code, message = http.StatusNotFound, ErrNoOpenLot, "no open lot to probe"
	case errors.Is(err, service.ErrProbeBidders):
		status, code, message = http.StatusBadRequest, ErrProbeBidders, "probe needs two distinct bidders"
	default:
		slog.Error("[HANDLER] unexpected service error -> ", "path", r.URL.Path, "error", err)
	}

	apiErr := &model.APIError{Code: code.Error(), Message: message}
	var rej *service.RejectionError
	if errors.As(err, &rej) && !errors.Is(err, service.ErrLotNotFound) {
		apiErr.Context = map[string]any{
			"lot_id":        rej.LotID,
			"current_price": rej.CurrentPrice,
			"minimum_bid":   rej.MinimumBid,
		}
	}
	respondError(w, r, status, apiErr)
}

func validationDetails(err error) []model.ErrorDetails {
	var details []model.ErrorDetails
	if validErrs, ok := err.(validator.ValidationErrors); ok {
		for _, vErr := range validErrs {
			details = append(details, model.ErrorDetails{
				Field: vErr.Field(),
				Issue: fmt.Sprintf("failed on tag '%s' with param '%s'", vErr.Tag(), vErr.Param()),
			})
		}
	}
	return details
}

// decodeAndValidate reports false after writing the error response.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		RespondErrorJSON(w, r, http.StatusBadRequest, ErrInvalidJson.Error(), "invalid json format", nil)
		return false
	}
	if err := validate.Struct(req); err != nil {
		RespondErrorJSON(w, r, http.StatusBadRequest, ErrInvalidRequest.Error(), "Input validation failed", validationDetails(err))
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, raw, name string) (uuid.UUID, bool) {
	if raw == "" {
		RespondErrorJSON(w, r, http.StatusBadRequest, ErrMissingParam.Error(), name+" is required", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		RespondErrorJSON(w, r, http.StatusBadRequest, ErrInvalidRequest.Error(), "invalid "+name, []model.ErrorDetails{
			{Field: name, Issue: "must be a uuid"},
		})
		return uuid.Nil, false
	}
	return id, true
}

func requireClaims(w http.ResponseWriter, r *http.Request) *config.UserClaims {
	claims := GetUserClaims(r.Context())
	if claims == nil {
		RespondErrorJSON(w, r, http.StatusUnauthorized, ErrAuthFailed.Error(), "user claims not found in context", nil)
	}
	return claims
}
