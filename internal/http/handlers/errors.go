// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are stable, lowercase snake_case strings returned in the "code" field
// of every error envelope. Clients branch on the code, never on the message.
//
// Example response:
//
//	{
//	  "success": false,
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "unknown_zone",
//	  "message": "zone \"Mars/Olympus\" is not in the catalog"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeUnknownZone        = "unknown_zone"
	ErrCodeSelectionNotFound  = "selection_not_found"
	ErrCodeStorageUnavailable = "storage_unavailable"
	ErrCodeIntegrity          = "integrity_error"
	ErrCodeCatalogReload      = "catalog_reload_failed"
)
