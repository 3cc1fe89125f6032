package handlers

import "errors"

var (
	// common error code
	ErrInternalServer = errors.New("INTERNAL_SERVER_ERROR")
	ErrInvalidRequest = errors.New("VALIDATION_FAILED")
	ErrInvalidJson    = errors.New("INVALID_JSON_FORMAT")
	ErrMissingParam   = errors.New("MISSING_PARAM")
	ErrUnavailable    = errors.New("STORE_UNAVAILABLE")

	// auth error code
	ErrAuthFailed   = errors.New("AUTH_FAILED")
	ErrMissingToken = errors.New("MISSING_TOKEN")
	ErrToken        = errors.New("TOKEN_ERROR")
	ErrForbidden    = errors.New("FORBIDDEN")

	// lot error code
	ErrLotNotFound  = errors.New("LOT_NOT_FOUND")
	ErrLotNotOpen   = errors.New("LOT_NOT_OPEN")
	ErrLotExpired   = errors.New("LOT_EXPIRED")
	ErrNoOpenLot    = errors.New("NO_OPEN_LOT")
	ErrLotNotClosed = errors.New("LOT_NOT_CLOSED")

	// bid error code
	ErrBidLow         = errors.New("BID_TOO_LOW")
	ErrStalePrice     = errors.New("STALE_PRICE")
	ErrCeilingLow     = errors.New("CEILING_TOO_LOW")
	ErrOutcomeUnknown = errors.New("BID_OUTCOME_UNKNOWN")
	ErrProbeBidders   = errors.New("PROBE_BIDDERS_INVALID")
)
