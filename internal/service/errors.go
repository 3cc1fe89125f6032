package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/itsDrac/e-auc-bidding/internal/model"
)

var (
	// bid rejections
	ErrLotNotFound   = errors.New("lot not found")
	ErrLotNotOpen    = errors.New("lot is not open for bidding")
	ErrLotExpired    = errors.New("lot has passed its end time")
	ErrBidTooLow     = errors.New("bid is below the minimum bid")
	ErrStalePrice    = errors.New("lot price changed before the bid could commit")
	ErrCeilingTooLow = errors.New("proxy ceiling is below the current price")

	// ErrUnavailable marks store failures. The caller may retry with backoff.
	ErrUnavailable = errors.New("bid store unavailable")

	ErrNoOpenLot    = errors.New("no open lot to probe")
	ErrProbeBidders = errors.New("probe needs two distinct bidders")
)

// RejectionError is an ordinary bid outcome, not a failure. It unwraps to the
// reason sentinel and carries the authoritative lot state at rejection time.
type RejectionError struct {
	Reason       error
	LotID        uuid.UUID
	CurrentPrice int64
	MinimumBid   int64
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("bid on lot %s rejected: %v (current price %d, minimum bid %d)",
		e.LotID, e.Reason, e.CurrentPrice, e.MinimumBid)
}

func (e *RejectionError) Unwrap() error {
	return e.Reason
}

func reject(reason error, lot model.Lot) error {
	return &RejectionError{
		Reason:       reason,
		LotID:        lot.ID,
		CurrentPrice: lot.Price,
		MinimumBid:   lot.MinimumBid(),
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// IsRejection reports whether err is a bid rejection rather than a failure.
func IsRejection(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej)
}
