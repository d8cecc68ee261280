package domain

import "errors"

var (
	ErrInvalidID          = errors.New("invalid id")
	ErrEmailRequired      = errors.New("name and email are required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrTitleRequired      = errors.New("title and author are required")
	ErrNameRequired       = errors.New("name is required")
	ErrBarcodeRequired    = errors.New("barcode is required")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenConsumed      = errors.New("token already used")

	ErrBookNotFound     = errors.New("book not found")
	ErrISBNTaken        = errors.New("isbn already registered")
	ErrBookInUse        = errors.New("book has active loans or reservations")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryTaken    = errors.New("category already exists")
	ErrCopyNotFound     = errors.New("copy not found")
	ErrBarcodeTaken     = errors.New("barcode already registered")
	ErrCopyNotAvailable = errors.New("copy not available")

	ErrLoanNotFound    = errors.New("loan not found")
	ErrLoanClosed      = errors.New("loan already returned")
	ErrLoanOverdue     = errors.New("loan is overdue")
	ErrLoanLimit       = errors.New("maximum active loans reached")
	ErrRenewalLimit    = errors.New("maximum renewals reached")
	ErrOutstandingFine = errors.New("member has outstanding fines")

	ErrReservationNotFound  = errors.New("reservation not found")
	ErrReservationNotActive = errors.New("reservation not active")
	ErrReservationLimit     = errors.New("maximum reservations reached")
	ErrDuplicateReservation = errors.New("book already reserved by member")
	ErrCopyAvailable        = errors.New("book has an available copy")
	ErrNotHeadOfQueue       = errors.New("reservation is not first in queue")

	ErrFineNotFound         = errors.New("fine not found")
	ErrFineAlreadySettled   = errors.New("fine already settled")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotificationNotSent  = errors.New("notification not sent yet")
)
