package apperrors

import (
	"net/http"
)

// =========================================================================
// Factories (wrapping repository errors)
// =========================================================================

// ErrNotFound maps a repository miss to a 404 for the given domain.
func ErrNotFound(err error, domain, message string) *AppError {
	return Wrap(err, CodeNotFound, domain, message, http.StatusNotFound)
}

func ErrAlreadyExists(err error, domain, message string) *AppError {
	return Wrap(err, CodeAlreadyExists, domain, message, http.StatusConflict)
}

func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

// =========================================================================
// Factories (new errors)
// =========================================================================

func ErrInvalidOperation(domain, message string) *AppError {
	return New(CodeInvalidOperation, domain, message, http.StatusBadRequest)
}

// ErrInvalidStatus is returned for transitions the state machine does not allow.
func ErrInvalidStatus(domain, message string) *AppError {
	return New(CodeInvalidStatus, domain, message, http.StatusConflict)
}

// ErrExternalService wraps a failure of a third-party dependency.
func ErrExternalService(err error, domain, message string) *AppError {
	return Wrap(err, CodeExternalServiceError, domain, message, http.StatusBadGateway)
}

// =========================================================================
// Auth & users
// =========================================================================

var ErrInsufficientPermissions = New(
	CodeForbidden,
	"auth",
	"Insufficient permissions",
	http.StatusForbidden,
)

var ErrEmailAlreadyExists = New(
	CodeAlreadyExists,
	"auth",
	"Email already in use",
	http.StatusConflict,
)

// ErrInvalidCredentials never says which of email/password was wrong.
var ErrInvalidCredentials = New(
	CodeInvalidCredentials,
	"auth",
	"Invalid email or password",
	http.StatusUnauthorized,
)

var ErrInvalidToken = New(
	CodeInvalidToken,
	"auth",
	"Invalid or expired token",
	http.StatusUnauthorized,
)

var ErrUserSuspended = New(
	CodeForbidden,
	"auth",
	"Your account has been suspended",
	http.StatusForbidden,
)

var ErrUserNotVerified = New(
	CodeForbidden,
	"auth",
	"Please verify your email address",
	http.StatusForbidden,
)

var ErrPasswordsDoNotMatch = New(
	CodeValidationFailed,
	"validation",
	"Passwords do not match",
	http.StatusBadRequest,
).WithDetails(map[string]string{"confirmPassword": "Must match newPassword"})

var ErrUserNotFound = New(
	CodeNotFound,
	"user",
	"User not found",
	http.StatusNotFound,
)

var ErrUserHasDependents = New(
	CodeConflict,
	"user",
	"User cannot be deleted while offers or orders reference it",
	http.StatusConflict,
)

// =========================================================================
// Company verification
// =========================================================================

var ErrCompanyNotFound = New(
	CodeValidationFailed,
	"registry",
	"Company with this ICO was not found in the business registry",
	http.StatusBadRequest,
).WithDetails(map[string]string{"ico": "Unknown registry ID"})

var ErrCompanyMismatch = New(
	CodeCompanyMismatch,
	"registry",
	"Company details do not match the business registry",
	http.StatusBadRequest,
)

var ErrCompanyVerificationUnavailable = New(
	CodeCompanyVerificationError,
	"registry",
	"Cannot verify company, try later",
	http.StatusBadRequest,
)

// =========================================================================
// Offers
// =========================================================================

var ErrOfferNotFound = New(
	CodeNotFound,
	"offer",
	"Offer not found",
	http.StatusNotFound,
)

var ErrOfferArchived = New(
	CodeInvalidStatus,
	"offer",
	"Archived offers cannot change status",
	http.StatusConflict,
)

var ErrOfferHasOrders = New(
	CodeConflict,
	"offer",
	"Offer cannot be deleted while orders reference it",
	http.StatusConflict,
)

var ErrFileTooLarge = New(
	CodeValidationFailed,
	"upload",
	"File is too large",
	http.StatusBadRequest,
).WithDetails(map[string]string{"file": "Exceeds the upload size limit"})

var ErrUnsupportedFileType = New(
	CodeValidationFailed,
	"upload",
	"Unsupported file type",
	http.StatusBadRequest,
).WithDetails(map[string]string{"file": "Must be PDF, PNG, JPEG or DOCX"})

// =========================================================================
// Orders
// =========================================================================

var ErrOrderNotFound = New(
	CodeNotFound,
	"order",
	"Order not found",
	http.StatusNotFound,
)

var ErrOfferNotOrderable = New(
	CodeOfferNotOrderable,
	"order",
	"Offer is not published or outside its validity window",
	http.StatusBadRequest,
).WithDetails(map[string]string{"offerId": "Offer is not currently orderable"})

var ErrBelowMinimumOrderValue = New(
	CodeBelowMinimumOrder,
	"order",
	"Order total is below the offer's minimum order value",
	http.StatusBadRequest,
)

var ErrOrderAlreadyClosed = New(
	CodeInvalidStatus,
	"order",
	"Order is already closed",
	http.StatusConflict,
)

var ErrOrderConcurrentUpdate = New(
	CodeConflict,
	"order",
	"Order was modified concurrently, retry the request",
	http.StatusConflict,
)

var ErrOrderNumberExhausted = New(
	CodeConflict,
	"order",
	"Could not allocate a unique order number",
	http.StatusConflict,
)
