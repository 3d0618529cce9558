package engine

import (
	"context"
	"errors"
	"log"

	apperrors "github.com/terrachain/registry/internal/platform/errors"
	"github.com/terrachain/registry/internal/registry/domain/event"
	"github.com/terrachain/registry/internal/registry/ledger"
	"github.com/terrachain/registry/internal/registry/storage"
)

// OnLedgerEvent projects one confirmed ledger event into the mirror. Delivery
// is at least once: an event already applied is skipped, and application for
// one property is serialized so redeliveries and concurrent confirmations
// cannot interleave writes. Events the mirror cannot place are parked for
// replay and the inconsistency is reported.
func (e *Engine) OnLedgerEvent(ctx context.Context, evt event.Event) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	unlock := e.locks.lock(propertyKey(evt.PropertyID))
	defer unlock()

	applied, err := e.store.WasApplied(ctx, evt.ID())
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	if err := e.applier.Apply(ctx, evt); err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeMirrorInconsistent {
			parkErr := e.store.Park(ctx, storage.ParkedEvent{
				Event:    evt,
				Reason:   err.Error(),
				ParkedAt: e.now(),
				Attempts: 1,
			})
			if parkErr != nil {
				return parkErr
			}
			log.Printf("parked event %s: %v", evt.ID(), err)
		}
		return err
	}
	if err := e.store.MarkApplied(ctx, evt.ID(), e.now()); err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		return err
	}
	return nil
}

// RunIngestion subscribes to confirmed ledger events and projects them until
// ctx is done. Projection failures are logged and do not stop the stream.
func (e *Engine) RunIngestion(ctx context.Context) error {
	events, err := e.ledger.Subscribe(ctx, ledger.EventFilter{})
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if err := e.OnLedgerEvent(ctx, evt); err != nil {
				log.Printf("ingest event %s: %v", evt.ID(), err)
			}
		}
	}
}

// ReplayParked retries every parked event in parked order. Events that apply
// cleanly are removed from the parking lot; events that still fail stay
// parked with a bumped attempt count and do not stop the sweep, so one bad
// entry cannot starve the rest. It returns how many events were successfully
// replayed.
func (e *Engine) ReplayParked(ctx context.Context) (int, error) {
	parked, err := e.store.ListParked(ctx, storage.Page{})
	if err != nil {
		return 0, err
	}
	replayed := 0
	for _, entry := range parked {
		if ctx.Err() != nil {
			return replayed, ctx.Err()
		}
		ok, err := e.replayOne(ctx, entry)
		if err != nil {
			return replayed, err
		}
		if ok {
			replayed++
		}
	}
	return replayed, nil
}

// replayOne re-applies one parked event. Apply failures keep the event parked
// and are logged, not returned; only storage errors surface to the caller.
func (e *Engine) replayOne(ctx context.Context, entry storage.ParkedEvent) (bool, error) {
	evt := entry.Event
	unlock := e.locks.lock(propertyKey(evt.PropertyID))
	defer unlock()

	applied, err := e.store.WasApplied(ctx, evt.ID())
	if err != nil {
		return false, err
	}
	if applied {
		// A redelivery already applied it; just clear the parking lot.
		return false, e.store.RemoveParked(ctx, evt.ID())
	}

	if err := e.applier.Apply(ctx, evt); err != nil {
		entry.Reason = err.Error()
		if parkErr := e.store.Park(ctx, entry); parkErr != nil {
			return false, parkErr
		}
		log.Printf("replay event %s: %v", evt.ID(), err)
		return false, nil
	}
	if err := e.store.MarkApplied(ctx, evt.ID(), e.now()); err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		return false, err
	}
	if err := e.store.RemoveParked(ctx, evt.ID()); err != nil {
		return false, err
	}
	return true, nil
}
