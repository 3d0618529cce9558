// Package transfer models the transfer-request aggregate and its state machine.
//
// Transitions happen only in response to confirmed ledger events. The waiting
// and dispute windows are computed from the ledger-confirmed approval
// timestamp, never from local receipt time, so every mirror replica agrees on
// window boundaries.
package transfer

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/terrachain/registry/internal/platform/errors"
)

// WaitingPeriod is the mandatory delay between approval and execution.
const WaitingPeriod = 7 * 24 * time.Hour

// DisputePeriod is the window after approval during which a dispute may be raised.
const DisputePeriod = 3 * 24 * time.Hour

// Status describes the lifecycle of a transfer request.
type Status int

const (
	// StatusUnspecified represents an invalid transfer status value.
	StatusUnspecified Status = iota
	// StatusPending indicates the request awaits inspector review.
	StatusPending
	// StatusApproved indicates an inspector approved the request.
	StatusApproved
	// StatusRejected indicates an inspector rejected the request (terminal).
	StatusRejected
	// StatusCompleted indicates the transfer executed on the ledger (terminal).
	StatusCompleted
	// StatusCancelled indicates the initiator withdrew the request (terminal).
	StatusCancelled
)

var (
	// ErrInvalidPrice indicates a non-positive transfer price.
	ErrInvalidPrice = apperrors.New(apperrors.CodeTransferPriceInvalid, "transfer price must be greater than zero")
	// ErrSelfTransfer indicates the buyer equals the current owner.
	ErrSelfTransfer = apperrors.New(apperrors.CodeTransferSelfTransfer, "transfer recipient must differ from the current owner")
	// ErrEmptyReason indicates a missing rejection or dispute reason.
	ErrEmptyReason = apperrors.New(apperrors.CodeTransferReasonEmpty, "a reason is required")
)

// DisputeDetails records a dispute raised against an approved transfer.
type DisputeDetails struct {
	HasDispute    bool
	DisputeDate   time.Time
	DisputeReason string
	Resolution    string
	ResolvedDate  *time.Time
}

// CompletionDetails records how a completed transfer executed on the ledger.
type CompletionDetails struct {
	TxRef          string
	CompletionDate time.Time
	ExecutedBy     string
}

// Request is the mirrored transfer-request aggregate.
type Request struct {
	// ID is the chain-assigned request identifier.
	ID uint64
	// PropertyID references the property under transfer.
	PropertyID uint64
	// From is the selling account; equals the property owner at creation time.
	From string
	// To is the buying account.
	To string
	// Price is the agreed ledger-denominated price; always positive.
	Price float64
	// RequestDate is the ledger timestamp of the TransferRequested event.
	RequestDate time.Time
	Status      Status
	// ApprovedBy and ApprovalDate are set iff status is Approved or Completed.
	ApprovedBy   string
	ApprovalDate *time.Time
	// RejectionReason is set when an inspector rejects the request.
	RejectionReason string
	// Dispute is set when a dispute was raised during the dispute window.
	Dispute *DisputeDetails
	// Completion is set iff status is Completed.
	Completion *CompletionDetails
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Terminal reports whether the request reached a terminal status.
func (r Request) Terminal() bool {
	switch r.Status {
	case StatusRejected, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// WaitingPeriodComplete reports whether the mandatory waiting period has
// elapsed. Always false outside the Approved status. The boundary is
// inclusive: execution is permitted exactly at approvalDate + WaitingPeriod.
func (r Request) WaitingPeriodComplete(now time.Time) bool {
	if r.Status != StatusApproved || r.ApprovalDate == nil {
		return false
	}
	return !now.Before(r.ApprovalDate.Add(WaitingPeriod))
}

// InDisputePeriod reports whether a dispute may still be raised. Always false
// outside the Approved status. The boundary is inclusive: a dispute raised
// exactly at approvalDate + DisputePeriod is accepted.
func (r Request) InDisputePeriod(now time.Time) bool {
	if r.Status != StatusApproved || r.ApprovalDate == nil {
		return false
	}
	return !now.After(r.ApprovalDate.Add(DisputePeriod))
}

// HasOpenDispute reports whether a dispute was raised and not yet resolved.
func (r Request) HasOpenDispute() bool {
	return r.Dispute != nil && r.Dispute.HasDispute && r.Dispute.ResolvedDate == nil
}

// NewRequest builds the mirrored request for a confirmed TransferRequested event.
func NewRequest(id, propertyID uint64, from, to string, price float64, at time.Time) (Request, error) {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" || to == "" {
		return Request{}, apperrors.New(apperrors.CodeAccountEmpty, "transfer participants are required")
	}
	if from == to {
		return Request{}, ErrSelfTransfer
	}
	if price <= 0 {
		return Request{}, ErrInvalidPrice
	}
	at = at.UTC()
	return Request{
		ID:          id,
		PropertyID:  propertyID,
		From:        from,
		To:          to,
		Price:       price,
		RequestDate: at,
		Status:      StatusPending,
		CreatedAt:   at,
		UpdatedAt:   at,
	}, nil
}

// Approve applies a confirmed TransferApproved event.
func Approve(r Request, by string, at time.Time) (Request, error) {
	if err := checkTransition(r, StatusApproved); err != nil {
		return Request{}, err
	}
	at = at.UTC()
	updated := r
	updated.Status = StatusApproved
	updated.ApprovedBy = strings.TrimSpace(by)
	updated.ApprovalDate = &at
	updated.UpdatedAt = at
	return updated, nil
}

// Reject applies a confirmed TransferRejected event. Rejection is reachable
// from Pending (inspector review) and from Approved (dispute resolution).
func Reject(r Request, reason string, at time.Time) (Request, error) {
	if err := checkTransition(r, StatusRejected); err != nil {
		return Request{}, err
	}
	at = at.UTC()
	updated := r
	updated.Status = StatusRejected
	updated.RejectionReason = strings.TrimSpace(reason)
	updated.UpdatedAt = at
	if updated.HasOpenDispute() {
		dispute := *updated.Dispute
		dispute.Resolution = strings.TrimSpace(reason)
		dispute.ResolvedDate = &at
		updated.Dispute = &dispute
	}
	return updated, nil
}

// Complete applies a confirmed TransferExecuted event.
func Complete(r Request, by, txRef string, at time.Time) (Request, error) {
	if err := checkTransition(r, StatusCompleted); err != nil {
		return Request{}, err
	}
	at = at.UTC()
	updated := r
	updated.Status = StatusCompleted
	updated.Completion = &CompletionDetails{
		TxRef:          strings.TrimSpace(txRef),
		CompletionDate: at,
		ExecutedBy:     strings.TrimSpace(by),
	}
	updated.UpdatedAt = at
	return updated, nil
}

// Cancel applies a confirmed TransferCancelled event.
func Cancel(r Request, at time.Time) (Request, error) {
	if err := checkTransition(r, StatusCancelled); err != nil {
		return Request{}, err
	}
	at = at.UTC()
	updated := r
	updated.Status = StatusCancelled
	updated.UpdatedAt = at
	return updated, nil
}

// RecordDispute applies a confirmed DisputeRaised event. The status does not
// change; downstream arbitration resolves via the rejection path.
func RecordDispute(r Request, reason string, at time.Time) (Request, error) {
	if r.Status != StatusApproved {
		return Request{}, apperrors.WithMetadata(
			apperrors.CodeTransferNotApproved,
			fmt.Sprintf("transfer request %d is not approved: %s", r.ID, StatusLabel(r.Status)),
			map[string]string{"Status": StatusLabel(r.Status)},
		)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Request{}, ErrEmptyReason
	}
	at = at.UTC()
	updated := r
	updated.Dispute = &DisputeDetails{
		HasDispute:    true,
		DisputeDate:   at,
		DisputeReason: reason,
	}
	updated.UpdatedAt = at
	return updated, nil
}

// checkTransition enforces the transfer state machine:
// Pending -> {Approved, Rejected, Cancelled}; Approved -> {Completed, Rejected};
// Rejected, Completed and Cancelled are terminal.
func checkTransition(r Request, target Status) error {
	if isTransitionAllowed(r.Status, target) {
		return nil
	}
	fromLabel := StatusLabel(r.Status)
	toLabel := StatusLabel(target)
	code := apperrors.CodeInvalidStatusTransition
	if r.Terminal() {
		code = apperrors.CodeTransferTerminal
	}
	return apperrors.WithMetadata(
		code,
		fmt.Sprintf("transfer status transition not allowed: %s -> %s", fromLabel, toLabel),
		map[string]string{"FromStatus": fromLabel, "ToStatus": toLabel},
	)
}

func isTransitionAllowed(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected || to == StatusCancelled
	case StatusApproved:
		return to == StatusCompleted || to == StatusRejected
	default:
		return false
	}
}

// StatusLabel returns a stable label for a transfer status.
func StatusLabel(status Status) string {
	switch status {
	case StatusPending:
		return "PENDING"
	case StatusApproved:
		return "APPROVED"
	case StatusRejected:
		return "REJECTED"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel parses a string label into a Status. It trims whitespace and
// matches case-insensitively.
func StatusFromLabel(value string) (Status, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return StatusUnspecified, fmt.Errorf("transfer status is required")
	}
	switch strings.ToUpper(trimmed) {
	case "PENDING":
		return StatusPending, nil
	case "APPROVED":
		return StatusApproved, nil
	case "REJECTED":
		return StatusRejected, nil
	case "COMPLETED":
		return StatusCompleted, nil
	case "CANCELLED":
		return StatusCancelled, nil
	default:
		return StatusUnspecified, fmt.Errorf("unknown transfer status: %s", trimmed)
	}
}
