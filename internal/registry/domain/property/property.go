// Package property models the land-parcel aggregate mirrored from the ledger.
//
// Property state is never mutated speculatively: every change flows through a
// pure apply function driven by a confirmed ledger event, so the mirror cannot
// show a state the ledger has not finalized.
package property

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/terrachain/registry/internal/platform/errors"
)

// Status describes the transfer lifecycle of a property.
type Status int

const (
	// StatusUnspecified represents an invalid property status value.
	StatusUnspecified Status = iota
	// StatusAvailable indicates the property has no active transfer request.
	StatusAvailable
	// StatusPendingTransfer indicates exactly one active transfer request exists.
	StatusPendingTransfer
	// StatusLocked indicates the property is administratively frozen.
	StatusLocked
)

var (
	// ErrEmptyLocation indicates a missing property location.
	ErrEmptyLocation = apperrors.New(apperrors.CodePropertyLocationEmpty, "property location is required")
	// ErrEmptyCoordinates indicates missing property coordinates.
	ErrEmptyCoordinates = apperrors.New(apperrors.CodePropertyCoordinatesEmpty, "property coordinates are required")
	// ErrInvalidArea indicates a non-positive property area.
	ErrInvalidArea = apperrors.New(apperrors.CodePropertyAreaInvalid, "property area must be greater than zero")
	// ErrInvalidValue indicates a non-positive property value.
	ErrInvalidValue = apperrors.New(apperrors.CodePropertyValueInvalid, "property value must be greater than zero")
	// ErrEmptyDocumentRef indicates a missing document reference.
	ErrEmptyDocumentRef = apperrors.New(apperrors.CodePropertyDocumentEmpty, "property document reference is required")
)

// TransferRecord is one completed transfer in a property's append-only history.
type TransferRecord struct {
	From  string
	To    string
	Date  time.Time
	Price float64
	// TxRef is the ledger transaction reference of the executing transaction.
	TxRef string
}

// Metadata carries opaque descriptive attributes supplied at registration.
type Metadata struct {
	PropertyType string
	YearBuilt    int
	Zoning       string
}

// Property is the mirrored land-parcel aggregate.
type Property struct {
	// ID is the chain-assigned property identifier.
	ID          uint64
	Location    string
	Coordinates string
	// Area is the parcel area; always positive.
	Area float64
	// Value is the ledger-denominated parcel value; always positive.
	Value float64
	// Owner is the account identifier of the current owner.
	Owner    string
	Status   Status
	Verified bool
	// DocumentRef is an opaque content-addressed pointer to the title documents.
	DocumentRef string
	Metadata    Metadata
	// TransferHistory is the append-only sequence of completed transfers.
	TransferHistory []TransferRecord
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RegistrationInput describes the caller-supplied fields of a registration.
type RegistrationInput struct {
	Location    string
	Coordinates string
	Area        float64
	Value       float64
	DocumentRef string
	Metadata    Metadata
}

// NormalizeRegistrationInput validates and trims registration input before it
// reaches the ledger.
func NormalizeRegistrationInput(input RegistrationInput) (RegistrationInput, error) {
	normalized := input
	normalized.Location = strings.TrimSpace(input.Location)
	normalized.Coordinates = strings.TrimSpace(input.Coordinates)
	normalized.DocumentRef = strings.TrimSpace(input.DocumentRef)
	if normalized.Location == "" {
		return RegistrationInput{}, ErrEmptyLocation
	}
	if normalized.Coordinates == "" {
		return RegistrationInput{}, ErrEmptyCoordinates
	}
	if normalized.Area <= 0 {
		return RegistrationInput{}, ErrInvalidArea
	}
	if normalized.Value <= 0 {
		return RegistrationInput{}, ErrInvalidValue
	}
	if normalized.DocumentRef == "" {
		return RegistrationInput{}, ErrEmptyDocumentRef
	}
	return normalized, nil
}

// ApplyRegistered builds the mirrored property for a confirmed
// PropertyRegistered event.
func ApplyRegistered(id uint64, input RegistrationInput, owner string, at time.Time) (Property, error) {
	normalized, err := NormalizeRegistrationInput(input)
	if err != nil {
		return Property{}, err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return Property{}, apperrors.New(apperrors.CodeAccountEmpty, "property owner account is required")
	}
	at = at.UTC()
	return Property{
		ID:          id,
		Location:    normalized.Location,
		Coordinates: normalized.Coordinates,
		Area:        normalized.Area,
		Value:       normalized.Value,
		Owner:       owner,
		Status:      StatusAvailable,
		Verified:    false,
		DocumentRef: normalized.DocumentRef,
		Metadata:    normalized.Metadata,
		CreatedAt:   at,
		UpdatedAt:   at,
	}, nil
}

// ApplyVerified marks the property verified for a confirmed PropertyVerified event.
func ApplyVerified(p Property, at time.Time) Property {
	updated := p
	updated.Verified = true
	updated.UpdatedAt = at.UTC()
	return updated
}

// BeginTransfer moves an available property to PendingTransfer for a confirmed
// TransferRequested event.
func BeginTransfer(p Property, at time.Time) (Property, error) {
	if p.Status != StatusAvailable {
		return Property{}, apperrors.WithMetadata(
			apperrors.CodePropertyNotAvailable,
			fmt.Sprintf("property %d is not available for transfer: %s", p.ID, StatusLabel(p.Status)),
			map[string]string{"Status": StatusLabel(p.Status)},
		)
	}
	updated := p
	updated.Status = StatusPendingTransfer
	updated.UpdatedAt = at.UTC()
	return updated, nil
}

// ReleaseTransfer returns a pending property to Available after a confirmed
// rejection or cancellation of its active transfer request.
func ReleaseTransfer(p Property, at time.Time) Property {
	updated := p
	updated.Status = StatusAvailable
	updated.UpdatedAt = at.UTC()
	return updated
}

// CompleteTransfer applies a confirmed TransferExecuted event: ownership moves
// to the buyer, the property becomes available again, and the transfer history
// gains one record.
func CompleteTransfer(p Property, record TransferRecord, at time.Time) (Property, error) {
	if p.Status != StatusPendingTransfer {
		return Property{}, apperrors.WithMetadata(
			apperrors.CodePropertyStatusDisallowsOp,
			fmt.Sprintf("property %d is not pending transfer: %s", p.ID, StatusLabel(p.Status)),
			map[string]string{"Status": StatusLabel(p.Status)},
		)
	}
	at = at.UTC()
	record.Date = record.Date.UTC()
	updated := p
	updated.Owner = record.To
	updated.Status = StatusAvailable
	updated.UpdatedAt = at
	history := make([]TransferRecord, len(p.TransferHistory), len(p.TransferHistory)+1)
	copy(history, p.TransferHistory)
	updated.TransferHistory = append(history, record)
	return updated, nil
}

// StatusLabel returns a stable label for a property status.
func StatusLabel(status Status) string {
	switch status {
	case StatusAvailable:
		return "AVAILABLE"
	case StatusPendingTransfer:
		return "PENDING_TRANSFER"
	case StatusLocked:
		return "LOCKED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel parses a string label into a Status. It trims whitespace and
// matches case-insensitively.
func StatusFromLabel(value string) (Status, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return StatusUnspecified, fmt.Errorf("property status is required")
	}
	switch strings.ToUpper(trimmed) {
	case "AVAILABLE":
		return StatusAvailable, nil
	case "PENDING_TRANSFER", "PENDINGTRANSFER":
		return StatusPendingTransfer, nil
	case "LOCKED":
		return StatusLocked, nil
	default:
		return StatusUnspecified, fmt.Errorf("unknown property status: %s", trimmed)
	}
}
