// Package storage defines the persistence interfaces for the off-chain
// mirror. The mirror is a queryable copy of confirmed ledger state; it is
// mutated only through the projection layer.
package storage

import (
	"context"
	"time"

	apperrors "github.com/terrachain/registry/internal/platform/errors"
	"github.com/terrachain/registry/internal/registry/domain/event"
	"github.com/terrachain/registry/internal/registry/domain/property"
	"github.com/terrachain/registry/internal/registry/domain/transfer"
)

// ErrNotFound is returned when a queried record does not exist.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrAlreadyExists is returned when inserting a record that already exists.
var ErrAlreadyExists = apperrors.New(apperrors.CodeAlreadyExists, "record already exists")

// PropertyFilter narrows property listings. Zero values match everything.
type PropertyFilter struct {
	Owner            string
	Status           property.Status
	LocationContains string
}

// TransferFilter narrows transfer listings. Participant matches either side
// of the request.
type TransferFilter struct {
	PropertyID  uint64
	Participant string
	Status      transfer.Status
}

// Page bounds a listing. A zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

// PropertyStore persists the property mirror.
type PropertyStore interface {
	GetProperty(ctx context.Context, id uint64) (property.Property, error)
	PutProperty(ctx context.Context, p property.Property) error
	ListProperties(ctx context.Context, filter PropertyFilter, page Page) ([]property.Property, error)
}

// TransferStore persists the transfer-request mirror.
type TransferStore interface {
	GetTransfer(ctx context.Context, id uint64) (transfer.Request, error)
	PutTransfer(ctx context.Context, r transfer.Request) error
	ListTransfers(ctx context.Context, filter TransferFilter, page Page) ([]transfer.Request, error)
}

// ParkedEvent is a confirmed ledger event that could not be projected because
// the mirror was missing the aggregate it targets. Parked events are retried
// by the reconciliation engine.
type ParkedEvent struct {
	Event    event.Event
	Reason   string
	ParkedAt time.Time
	Attempts int
}

// ParkedEventStore persists events awaiting replay.
type ParkedEventStore interface {
	Park(ctx context.Context, parked ParkedEvent) error
	ListParked(ctx context.Context, page Page) ([]ParkedEvent, error)
	RemoveParked(ctx context.Context, eventID string) error
}

// AppliedEventStore records event ids that have been projected, making
// at-least-once delivery idempotent.
type AppliedEventStore interface {
	MarkApplied(ctx context.Context, eventID string, at time.Time) error
	WasApplied(ctx context.Context, eventID string) (bool, error)
}

// Store bundles every mirror store backed by a single database.
type Store interface {
	PropertyStore
	TransferStore
	ParkedEventStore
	AppliedEventStore
}
