// Package event defines the confirmed ledger events the mirror consumes.
//
// Event types and payload shapes mirror the registry contract's emitted
// events. A confirmed event is the only input that may mutate mirror state.
package event

import (
	"fmt"
	"strings"
	"time"
)

// Type identifies a contract-emitted event. Values match the event names the
// registry contract emits.
type Type string

const (
	// TypePropertyRegistered records a new property registration.
	TypePropertyRegistered Type = "PropertyRegistered"
	// TypePropertyVerified records an inspector verifying a property.
	TypePropertyVerified Type = "PropertyVerified"
	// TypeTransferRequested records a new transfer request.
	TypeTransferRequested Type = "TransferRequested"
	// TypeTransferApproved records an inspector approval.
	TypeTransferApproved Type = "TransferApproved"
	// TypeTransferRejected records an inspector rejection.
	TypeTransferRejected Type = "TransferRejected"
	// TypeTransferExecuted records a completed ownership transfer.
	TypeTransferExecuted Type = "TransferExecuted"
	// TypeTransferCancelled records the initiator withdrawing a request.
	TypeTransferCancelled Type = "TransferCancelled"
	// TypeDisputeRaised records a dispute against an approved transfer.
	TypeDisputeRaised Type = "DisputeRaised"
)

// KnownType reports whether t is a contract event this mirror understands.
func KnownType(t Type) bool {
	switch t {
	case TypePropertyRegistered, TypePropertyVerified, TypeTransferRequested,
		TypeTransferApproved, TypeTransferRejected, TypeTransferExecuted,
		TypeTransferCancelled, TypeDisputeRaised:
		return true
	default:
		return false
	}
}

// Event is one confirmed ledger event.
type Event struct {
	// Type is the contract event name.
	Type Type
	// TxRef is the ledger transaction reference that emitted the event.
	TxRef string
	// Timestamp is the confirmed-block timestamp; all timing windows are
	// computed in this domain.
	Timestamp time.Time
	// PropertyID identifies the affected property (zero when not applicable).
	PropertyID uint64
	// RequestID identifies the affected transfer request (zero for
	// property-only events).
	RequestID uint64
	// PayloadJSON carries the type-specific payload.
	PayloadJSON []byte
}

// ID returns the deduplication identity of the event. Ledger clients deliver
// at least once; applying an event is keyed on this identity so redelivery is
// a no-op.
func (e Event) ID() string {
	return fmt.Sprintf("%s:%s:%d:%d", e.TxRef, e.Type, e.PropertyID, e.RequestID)
}

// Validate checks the envelope fields every event must carry.
func (e Event) Validate() error {
	if !KnownType(e.Type) {
		return fmt.Errorf("unknown event type: %q", e.Type)
	}
	if strings.TrimSpace(e.TxRef) == "" {
		return fmt.Errorf("event tx ref is required")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event timestamp is required")
	}
	if e.PropertyID == 0 {
		return fmt.Errorf("event property id is required")
	}
	switch e.Type {
	case TypePropertyRegistered, TypePropertyVerified:
		// Property-only events carry no request id.
	default:
		if e.RequestID == 0 {
			return fmt.Errorf("event request id is required for %s", e.Type)
		}
	}
	return nil
}
