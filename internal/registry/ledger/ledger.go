// Package ledger defines the typed interface to the chain-resident registry
// contract. The reconciliation engine treats this client as the sole source of
// truth: it never infers a state transition from anything but a confirmed
// event returned or streamed by implementations of Client.
package ledger

import (
	"context"

	apperrors "github.com/terrachain/registry/internal/platform/errors"
	"github.com/terrachain/registry/internal/registry/domain/event"
)

// Action names a contract transaction the engine may submit.
type Action string

const (
	// ActionRegisterProperty registers a new land parcel.
	ActionRegisterProperty Action = "RegisterProperty"
	// ActionVerifyProperty marks a parcel verified by an inspector.
	ActionVerifyProperty Action = "VerifyProperty"
	// ActionInitiateTransfer opens a transfer request.
	ActionInitiateTransfer Action = "InitiateTransfer"
	// ActionApproveTransfer approves a pending request.
	ActionApproveTransfer Action = "ApproveTransfer"
	// ActionRejectTransfer rejects a pending or disputed request.
	ActionRejectTransfer Action = "RejectTransfer"
	// ActionExecuteTransfer completes an approved request.
	ActionExecuteTransfer Action = "ExecuteTransfer"
	// ActionCancelTransfer withdraws a pending request.
	ActionCancelTransfer Action = "CancelTransfer"
	// ActionRaiseDispute flags an approved request as disputed.
	ActionRaiseDispute Action = "RaiseDispute"
)

// RoleInspector is the contract role required to approve, reject, and verify.
const RoleInspector = "INSPECTOR_ROLE"

var (
	// ErrUnavailable indicates a transient ledger failure; the caller may
	// retry the whole submission.
	ErrUnavailable = apperrors.New(apperrors.CodeLedgerUnavailable, "ledger is unavailable")
	// ErrRejected indicates the ledger refused or reverted the transaction;
	// retrying without changing inputs will fail again.
	ErrRejected = apperrors.New(apperrors.CodeLedgerRejected, "ledger rejected the transaction")
	// ErrTimedOut indicates confirmation was not observed in time. The
	// transaction may still commit; only subsequent event ingestion decides
	// mirror state.
	ErrTimedOut = apperrors.New(apperrors.CodeLedgerTimeout, "timed out awaiting ledger confirmation")
)

// Args are the positional string arguments of a contract transaction.
type Args []string

// Outcome is the terminal result of a submitted transaction.
type Outcome struct {
	// Event is the confirmed event the transaction emitted.
	Event event.Event
	// Err is set when the transaction failed (ErrRejected or ErrUnavailable).
	Err error
}

// PendingTx is a handle to a submitted, not-yet-confirmed transaction.
type PendingTx struct {
	// TxRef is the ledger transaction reference, when already known.
	TxRef string
	// Result receives exactly one Outcome once the ledger decides the
	// transaction's fate.
	Result <-chan Outcome
}

// EventFilter restricts a subscription to the named event types. Empty means
// all registry events.
type EventFilter struct {
	Types []event.Type
}

// Matches reports whether the filter admits t.
func (f EventFilter) Matches(t event.Type) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, candidate := range f.Types {
		if candidate == t {
			return true
		}
	}
	return false
}

// Client is the typed interface to the registry contract.
//
// Implementations are constructed once per process and passed in; the engine
// holds exactly one client for its lifetime.
type Client interface {
	// Submit sends a transaction to the ledger signed by signer. It returns
	// once the transaction is accepted for ordering; confirmation is awaited
	// separately. Fails with ErrUnavailable or ErrRejected.
	Submit(ctx context.Context, action Action, args Args, signer string) (PendingTx, error)

	// AwaitConfirmation blocks until the pending transaction is confirmed,
	// definitively rejected, or ctx is done. An abandoned wait does not
	// cancel the transaction itself.
	AwaitConfirmation(ctx context.Context, tx PendingTx) (event.Event, error)

	// Subscribe streams confirmed events matching the filter. Delivery is at
	// least once: reconnects may redeliver events already seen. The channel
	// closes when ctx is done.
	Subscribe(ctx context.Context, filter EventFilter) (<-chan event.Event, error)

	// HasRole queries role membership against ledger-fresh state.
	HasRole(ctx context.Context, account, role string) (bool, error)

	// QueryState evaluates a read-only contract view.
	QueryState(ctx context.Context, view string, args Args) ([]byte, error)
}
