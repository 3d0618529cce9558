// Package projection applies confirmed ledger events to the mirror stores.
//
// The projection layer is the only writer of mirrored aggregates. Each handler
// loads the current aggregate, feeds it through a pure domain apply function,
// and persists the result. A missing aggregate is a mirror inconsistency, not
// a caller error: the engine parks such events for replay.
package projection

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/terrachain/registry/internal/platform/errors"
	"github.com/terrachain/registry/internal/registry/domain/event"
	"github.com/terrachain/registry/internal/registry/domain/property"
	"github.com/terrachain/registry/internal/registry/domain/transfer"
	"github.com/terrachain/registry/internal/registry/storage"
)

// Applier routes confirmed ledger events to mirror store writes.
type Applier struct {
	// Properties writes the property mirror.
	Properties storage.PropertyStore
	// Transfers writes the transfer-request mirror.
	Transfers storage.TransferStore
}

// Apply projects one confirmed ledger event into the mirror. Events carrying
// an unknown type are rejected; events targeting aggregates the mirror does
// not hold return a mirror-inconsistency error.
func (a Applier) Apply(ctx context.Context, evt event.Event) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	switch evt.Type {
	case event.TypePropertyRegistered:
		return a.applyPropertyRegistered(ctx, evt)
	case event.TypePropertyVerified:
		return a.applyPropertyVerified(ctx, evt)
	case event.TypeTransferRequested:
		return a.applyTransferRequested(ctx, evt)
	case event.TypeTransferApproved:
		return a.applyTransferApproved(ctx, evt)
	case event.TypeTransferRejected:
		return a.applyTransferRejected(ctx, evt)
	case event.TypeTransferExecuted:
		return a.applyTransferExecuted(ctx, evt)
	case event.TypeTransferCancelled:
		return a.applyTransferCancelled(ctx, evt)
	case event.TypeDisputeRaised:
		return a.applyDisputeRaised(ctx, evt)
	default:
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unknown event type: %s", evt.Type))
	}
}

func (a Applier) applyPropertyRegistered(ctx context.Context, evt event.Event) error {
	var payload event.PropertyRegisteredPayload
	if err := event.DecodePayload(evt, &payload); err != nil {
		return err
	}
	input := property.RegistrationInput{
		Location:    payload.Location,
		Coordinates: payload.Coordinates,
		Area:        payload.Area,
		Value:       payload.Value,
		DocumentRef: payload.DocumentRef,
		Metadata: property.Metadata{
			PropertyType: payload.PropertyType,
			YearBuilt:    payload.YearBuilt,
			Zoning:       payload.Zoning,
		},
	}
	p, err := property.ApplyRegistered(evt.PropertyID, input, payload.Owner, evt.Timestamp)
	if err != nil {
		return err
	}
	return a.Properties.PutProperty(ctx, p)
}

func (a Applier) applyPropertyVerified(ctx context.Context, evt event.Event) error {
	p, err := a.loadProperty(ctx, evt)
	if err != nil {
		return err
	}
	return a.Properties.PutProperty(ctx, property.ApplyVerified(p, evt.Timestamp))
}

func (a Applier) applyTransferRequested(ctx context.Context, evt event.Event) error {
	var payload event.TransferRequestedPayload
	if err := event.DecodePayload(evt, &payload); err != nil {
		return err
	}
	p, err := a.loadProperty(ctx, evt)
	if err != nil {
		return err
	}
	request, err := transfer.NewRequest(evt.RequestID, evt.PropertyID, payload.From, payload.To, payload.Price, evt.Timestamp)
	if err != nil {
		return err
	}
	pending, err := property.BeginTransfer(p, evt.Timestamp)
	if err != nil {
		return err
	}
	if err := a.Transfers.PutTransfer(ctx, request); err != nil {
		return err
	}
	return a.Properties.PutProperty(ctx, pending)
}

func (a Applier) applyTransferApproved(ctx context.Context, evt event.Event) error {
	var payload event.TransferApprovedPayload
	if err := event.DecodePayload(evt, &payload); err != nil {
		return err
	}
	request, err := a.loadTransfer(ctx, evt)
	if err != nil {
		return err
	}
	approved, err := transfer.Approve(request, payload.ApprovedBy, evt.Timestamp)
	if err != nil {
		return err
	}
	return a.Transfers.PutTransfer(ctx, approved)
}

func (a Applier) applyTransferRejected(ctx context.Context, evt event.Event) error {
	var payload event.TransferRejectedPayload
	if err := event.DecodePayload(evt, &payload); err != nil {
		return err
	}
	request, err := a.loadTransfer(ctx, evt)
	if err != nil {
		return err
	}
	rejected, err := transfer.Reject(request, payload.Reason, evt.Timestamp)
	if err != nil {
		return err
	}
	p, err := a.loadProperty(ctx, evt)
	if err != nil {
		return err
	}
	if err := a.Transfers.PutTransfer(ctx, rejected); err != nil {
		return err
	}
	return a.Properties.PutProperty(ctx, property.ReleaseTransfer(p, evt.Timestamp))
}

func (a Applier) applyTransferExecuted(ctx context.Context, evt event.Event) error {
	var payload event.TransferExecutedPayload
	if err := event.DecodePayload(evt, &payload); err != nil {
		return err
	}
	request, err := a.loadTransfer(ctx, evt)
	if err != nil {
		return err
	}
	completed, err := transfer.Complete(request, payload.ExecutedBy, evt.TxRef, evt.Timestamp)
	if err != nil {
		return err
	}
	p, err := a.loadProperty(ctx, evt)
	if err != nil {
		return err
	}
	record := property.TransferRecord{
		From:  completed.From,
		To:    completed.To,
		Date:  evt.Timestamp,
		Price: completed.Price,
		TxRef: evt.TxRef,
	}
	transferred, err := property.CompleteTransfer(p, record, evt.Timestamp)
	if err != nil {
		return err
	}
	if err := a.Transfers.PutTransfer(ctx, completed); err != nil {
		return err
	}
	return a.Properties.PutProperty(ctx, transferred)
}

func (a Applier) applyTransferCancelled(ctx context.Context, evt event.Event) error {
	request, err := a.loadTransfer(ctx, evt)
	if err != nil {
		return err
	}
	cancelled, err := transfer.Cancel(request, evt.Timestamp)
	if err != nil {
		return err
	}
	p, err := a.loadProperty(ctx, evt)
	if err != nil {
		return err
	}
	if err := a.Transfers.PutTransfer(ctx, cancelled); err != nil {
		return err
	}
	return a.Properties.PutProperty(ctx, property.ReleaseTransfer(p, evt.Timestamp))
}

func (a Applier) applyDisputeRaised(ctx context.Context, evt event.Event) error {
	var payload event.DisputeRaisedPayload
	if err := event.DecodePayload(evt, &payload); err != nil {
		return err
	}
	request, err := a.loadTransfer(ctx, evt)
	if err != nil {
		return err
	}
	disputed, err := transfer.RecordDispute(request, payload.Reason, evt.Timestamp)
	if err != nil {
		return err
	}
	return a.Transfers.PutTransfer(ctx, disputed)
}

func (a Applier) loadProperty(ctx context.Context, evt event.Event) (property.Property, error) {
	p, err := a.Properties.GetProperty(ctx, evt.PropertyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return property.Property{}, apperrors.WithMetadata(
				apperrors.CodeMirrorInconsistent,
				fmt.Sprintf("property %d missing from mirror for event %s", evt.PropertyID, evt.ID()),
				map[string]string{"EventID": evt.ID()},
			)
		}
		return property.Property{}, err
	}
	return p, nil
}

func (a Applier) loadTransfer(ctx context.Context, evt event.Event) (transfer.Request, error) {
	request, err := a.Transfers.GetTransfer(ctx, evt.RequestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return transfer.Request{}, apperrors.WithMetadata(
				apperrors.CodeMirrorInconsistent,
				fmt.Sprintf("transfer request %d missing from mirror for event %s", evt.RequestID, evt.ID()),
				map[string]string{"EventID": evt.ID()},
			)
		}
		return transfer.Request{}, err
	}
	return request, nil
}
