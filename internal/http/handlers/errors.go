// Package handlers defines the error codes of the admin API envelope.
//
// Every non-2xx admin response carries an ErrorResponse with one of these
// codes. Webhook endpoints never use them for parse or pipeline problems:
// providers get 200 with a status body so they stop retrying.
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "address_taken",
//	  "message": "receiving address already belongs to a tenant"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeInvalidTenant = "invalid_tenant"
	ErrCodeInvalidMenu   = "invalid_menu"
	ErrCodeAddressTaken  = "address_taken"
	ErrCodeListFailed    = "list_failed"
)
