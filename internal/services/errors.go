package services

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// booking ledger
	ErrInvalidWindow    = errors.New("end_at must be after start_at")
	ErrSlotTaken        = errors.New("property is not available for that slot")
	ErrAlreadyCanceled  = errors.New("booking already canceled")
	ErrCannotCancelPaid = errors.New("cannot cancel a paid booking")

	// admission control
	ErrAlreadyPaid      = errors.New("booking already paid")
	ErrAlreadyCompleted = errors.New("payment already completed for this booking")
	ErrBookingCanceled  = errors.New("booking is canceled")
)
