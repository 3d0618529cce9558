// Package errors provides structured error handling for the registry.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors (resolved before any ledger submission)
	CodeValidation               Code = "VALIDATION"
	CodePropertyLocationEmpty    Code = "PROPERTY_LOCATION_EMPTY"
	CodePropertyCoordinatesEmpty Code = "PROPERTY_COORDINATES_EMPTY"
	CodePropertyAreaInvalid      Code = "PROPERTY_AREA_INVALID"
	CodePropertyValueInvalid     Code = "PROPERTY_VALUE_INVALID"
	CodePropertyDocumentEmpty    Code = "PROPERTY_DOCUMENT_REF_EMPTY"
	CodeTransferPriceInvalid     Code = "TRANSFER_PRICE_INVALID"
	CodeTransferSelfTransfer     Code = "TRANSFER_SELF_TRANSFER"
	CodeTransferReasonEmpty      Code = "TRANSFER_REASON_EMPTY"
	CodeAccountEmpty             Code = "ACCOUNT_EMPTY"

	// Authorization errors
	CodeUnauthorized Code = "UNAUTHORIZED"

	// Lifecycle errors (metadata carries the violated precondition)
	CodeInvalidState              Code = "INVALID_STATE"
	CodePropertyNotAvailable      Code = "PROPERTY_NOT_AVAILABLE"
	CodeTransferNotPending        Code = "TRANSFER_NOT_PENDING"
	CodeTransferNotApproved       Code = "TRANSFER_NOT_APPROVED"
	CodeTransferTerminal          Code = "TRANSFER_TERMINAL"
	CodeWaitingPeriodIncomplete   Code = "WAITING_PERIOD_INCOMPLETE"
	CodeDisputeWindowClosed       Code = "DISPUTE_WINDOW_CLOSED"
	CodeTransferDisputeOpen       Code = "TRANSFER_DISPUTE_OPEN"
	CodeInvalidStatusTransition   Code = "TRANSFER_INVALID_STATUS_TRANSITION"
	CodePropertyStatusDisallowsOp Code = "PROPERTY_STATUS_DISALLOWS_OPERATION"

	// Ledger errors
	CodeLedgerUnavailable Code = "LEDGER_UNAVAILABLE"
	CodeLedgerRejected    Code = "LEDGER_REJECTED"
	CodeLedgerTimeout     Code = "LEDGER_TIMEOUT"

	// Mirror errors
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeMirrorInconsistent Code = "MIRROR_INCONSISTENT"
)

// HTTPStatus maps an error code to the HTTP status surfaced by the handler layer.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeInvalidState, CodePropertyNotAvailable, CodeTransferNotPending,
		CodeTransferNotApproved, CodeTransferTerminal, CodeWaitingPeriodIncomplete,
		CodeDisputeWindowClosed, CodeTransferDisputeOpen, CodeInvalidStatusTransition,
		CodePropertyStatusDisallowsOp:
		return http.StatusConflict
	case CodeLedgerUnavailable, CodeLedgerTimeout:
		return http.StatusServiceUnavailable
	case CodeLedgerRejected:
		return http.StatusBadGateway
	case CodeMirrorInconsistent, CodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
