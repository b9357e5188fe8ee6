package service

import "errors"

var (
	// ErrForbidden актор не владелец брони и не имеет подтверждающей роли
	ErrForbidden = errors.New("actor is not allowed to perform this action")

	// ErrNotCancellable отменить можно только pending или confirmed бронь
	ErrNotCancellable = errors.New("only pending or confirmed bookings can be cancelled")
)
