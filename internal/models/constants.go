package models

const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusCheckedOut = "checked_out"
	StatusReturned   = "returned"
	StatusCancelled  = "cancelled"
)

const (
	RoleAdmin    = "Admin"
	RoleLabStaff = "LabStaff"
	RoleStudent  = "Student"
)

const (
	// ActionCheckIn обозначает сканирование, после которого оборудование
	// уходит на руки студенту. Метка унаследована от киоск-клиентов и
	// намеренно инвертирована относительно привычного смысла.
	ActionCheckIn = "check_in"

	// ActionCheckOut обозначает сканирование, возвращающее оборудование в лабораторию.
	ActionCheckOut = "check_out"
)

const (
	// DefaultTokenTTLMinutes время жизни QR-токена по умолчанию
	DefaultTokenTTLMinutes = 15

	// DefaultKioskLabel метка киоска, если клиент её не прислал
	DefaultKioskLabel = "Tablet Kiosk"

	// ScanSource источник, записываемый в meta журнала использования
	ScanSource = "qr"

	// WorkerQueueSize размер очереди воркера уведомлений
	WorkerQueueSize = 1000

	// RateLimitScans количество сканирований в окне на один киоск
	RateLimitScans = 30

	// RateLimitWindow окно ограничения частоты сканирований в секундах
	RateLimitWindow = 60

	// KioskStateTTL время жизни состояния киоска в Redis (секунды)
	KioskStateTTL = 24 * 60 * 60

	// SummaryTimeFormat формат границ окна брони в ответе киоска
	SummaryTimeFormat = "Jan 02, 3:04 PM"
)

// ValidStatus reports whether s is one of the five defined booking statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCheckedOut, StatusReturned, StatusCancelled:
		return true
	}
	return false
}

// TerminalStatus reports whether no transition may leave s.
func TerminalStatus(s string) bool {
	return s == StatusReturned || s == StatusCancelled
}

// QREligibleStatus reports whether a booking in status s may have a QR token
// issued for it (and be the target of a kiosk scan).
func QREligibleStatus(s string) bool {
	return s == StatusConfirmed || s == StatusCheckedOut
}
