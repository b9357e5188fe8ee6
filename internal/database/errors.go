package database

import "errors"

var (
	// ErrNotAvailable бронирование пересекается с подтверждённой бронью того же оборудования
	ErrNotAvailable = errors.New("equipment is already booked for the requested window")

	// ErrInvalidWindow окно брони пустое или вывернутое
	ErrInvalidWindow = errors.New("booking window must end after it starts")

	// ErrEquipmentLabMismatch оборудование не принадлежит выбранной лаборатории
	ErrEquipmentLabMismatch = errors.New("equipment does not belong to the selected lab")

	// ErrUnknownStatus статус вне закрытого перечня
	ErrUnknownStatus = errors.New("unknown booking status")

	// ErrNotPending подтверждать можно только заявки в статусе pending
	ErrNotPending = errors.New("only pending bookings can be approved")

	// ErrNotEligible бронь не в статусе, допускающем выдачу QR или сканирование
	ErrNotEligible = errors.New("booking not eligible for check-in/out")

	// ErrTokenNotFound токен не найден
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenInvalid токен просрочен или уже использован
	ErrTokenInvalid = errors.New("token expired or already used")

	// ErrBookingNotFound бронь не найдена
	ErrBookingNotFound = errors.New("booking not found")

	// ErrLabNotFound лаборатория не найдена
	ErrLabNotFound = errors.New("lab not found")

	// ErrEquipmentNotFound оборудование не найдено
	ErrEquipmentNotFound = errors.New("equipment not found")

	// ErrUserNotFound пользователь не найден
	ErrUserNotFound = errors.New("user not found")

	// ErrConcurrentModification конфликт версий при оптимистичной блокировке
	ErrConcurrentModification = errors.New("booking was modified concurrently")
)
