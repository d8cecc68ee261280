package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeInvalidID            = "invalid_id"
	codeUnauthorized         = "unauthorized"
	codeForbidden            = "forbidden"
	codeEmailRequired        = "email_required"
	codePasswordTooShort     = "password_too_short"
	codeEmailTaken           = "email_taken"
	codeInvalidCredentials   = "invalid_credentials"
	codeInvalidToken         = "invalid_token"
	codeTitleRequired        = "title_required"
	codeNameRequired         = "name_required"
	codeBarcodeRequired      = "barcode_required"
	codeUserNotFound         = "user_not_found"
	codeBookNotFound         = "book_not_found"
	codeISBNTaken            = "isbn_taken"
	codeBookInUse            = "book_in_use"
	codeCategoryNotFound     = "category_not_found"
	codeCategoryTaken        = "category_taken"
	codeCopyNotFound         = "copy_not_found"
	codeBarcodeTaken         = "barcode_taken"
	codeCopyNotAvailable     = "copy_not_available"
	codeLoanNotFound         = "loan_not_found"
	codeLoanClosed           = "loan_closed"
	codeLoanOverdue          = "loan_overdue"
	codeLoanLimit            = "loan_limit_reached"
	codeRenewalLimit         = "renewal_limit_reached"
	codeOutstandingFine      = "outstanding_fine"
	codeReservationNotFound  = "reservation_not_found"
	codeReservationNotActive = "reservation_not_active"
	codeReservationLimit     = "reservation_limit_reached"
	codeDuplicateReservation = "duplicate_reservation"
	codeCopyAvailable        = "copy_available"
	codeNotHeadOfQueue       = "not_head_of_queue"
	codeFineNotFound         = "fine_not_found"
	codeFineAlreadySettled   = "fine_already_settled"
	codeNotificationNotFound = "notification_not_found"
	codeNotificationNotSent  = "notification_not_sent"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
