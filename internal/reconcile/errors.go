package reconcile

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned (wrapped) when a referenced row does not exist.
	ErrNotFound = gorm.ErrRecordNotFound

	ErrInvalidInput = errors.New("invalid input")

	ErrArrivalConfirmed       = errors.New("arrival is already confirmed")
	ErrInvalidStatus          = errors.New("status cannot be set here")
	ErrAddedRowLocked         = errors.New("status of an added item can only be undone")
	ErrItemConfirmedElsewhere = errors.New("item is already confirmed on another arrival")
	ErrItemNotScheduled       = errors.New("item has no scheduled vehicle")
	ErrItemOnVehicle          = errors.New("item is already scheduled for this vehicle")
	ErrItemMovedOn            = errors.New("item has since moved to another vehicle")
	ErrNotReassigned          = errors.New("confirmation is not a reassignment")
	ErrReportResolved         = errors.New("report is already resolved")
	ErrInvalidTime            = errors.New("times must be HH:MM")
	ErrModelPickActive        = errors.New("model pick is already running")
)

// IsInvalid reports whether err was caused by malformed caller input.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidStatus) || errors.Is(err, ErrInvalidTime)
}

// IsPrecondition reports whether err is a rejected-by-state error rather than
// a store or input failure.
func IsPrecondition(err error) bool {
	for _, target := range []error{
		ErrArrivalConfirmed, ErrAddedRowLocked, ErrItemConfirmedElsewhere,
		ErrItemNotScheduled, ErrItemOnVehicle, ErrItemMovedOn, ErrNotReassigned,
		ErrReportResolved, ErrModelPickActive,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
