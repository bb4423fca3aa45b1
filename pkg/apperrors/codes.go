package apperrors

// ErrorCode is the machine-readable part of an error response.
type ErrorCode string

const (
	// System
	CodeInternalError        ErrorCode = "INTERNAL_ERROR"
	CodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	CodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"

	// Generic business errors (used by factories)
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeInvalidStatus    ErrorCode = "INVALID_STATUS"
	CodeInvalidOperation ErrorCode = "INVALID_OPERATION"

	// Auth
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	CodeInvalidToken       ErrorCode = "INVALID_TOKEN"

	// Marketplace specific
	CodeCompanyMismatch          ErrorCode = "COMPANY_MISMATCH"
	CodeCompanyVerificationError ErrorCode = "COMPANY_VERIFICATION_UNAVAILABLE"
	CodeOfferNotOrderable        ErrorCode = "OFFER_NOT_ORDERABLE"
	CodeBelowMinimumOrder        ErrorCode = "BELOW_MINIMUM_ORDER_VALUE"
)
