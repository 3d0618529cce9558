// Package engine coordinates the ledger and the mirror.
//
// Commands follow one flow: validate against the mirror to fail fast, submit
// the transaction to the ledger, await confirmation, project the confirmed
// event, and return the refreshed aggregate. The ledger stays authoritative;
// the mirror check only spares callers a doomed round trip, and the contract
// re-validates every precondition.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/terrachain/registry/internal/platform/errors"
	"github.com/terrachain/registry/internal/registry/domain/event"
	"github.com/terrachain/registry/internal/registry/domain/property"
	"github.com/terrachain/registry/internal/registry/domain/transfer"
	"github.com/terrachain/registry/internal/registry/ledger"
	"github.com/terrachain/registry/internal/registry/projection"
	"github.com/terrachain/registry/internal/registry/storage"
)

// Policy tunes reconciliation behavior that the contract leaves to operators.
type Policy struct {
	// BlockExecuteOnOpenDispute makes ExecuteTransfer fail locally while a
	// dispute is unresolved. The contract itself permits execution once the
	// waiting period elapses; arbitration normally resolves disputes through
	// the rejection path before that.
	BlockExecuteOnOpenDispute bool
}

// Options configures a reconciliation engine.
type Options struct {
	Ledger ledger.Client
	Store  storage.Store
	Policy Policy
	// RoleCacheTTL bounds staleness of contract role lookups. Zero uses
	// DefaultRoleCacheTTL.
	RoleCacheTTL time.Duration
	// Now supplies the engine clock; defaults to time.Now. Timing windows are
	// still computed from ledger timestamps, the clock only positions "now"
	// inside them.
	Now func() time.Time
}

// Engine is the reconciliation engine between the ledger and the mirror.
type Engine struct {
	ledger  ledger.Client
	store   storage.Store
	applier projection.Applier
	roles   *roleCache
	policy  Policy
	locks   keyLocks
	now     func() time.Time
}

// New constructs a reconciliation engine.
func New(opts Options) (*Engine, error) {
	if opts.Ledger == nil {
		return nil, fmt.Errorf("ledger client is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("mirror store is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		ledger:  opts.Ledger,
		store:   opts.Store,
		applier: projection.Applier{Properties: opts.Store, Transfers: opts.Store},
		roles:   newRoleCache(opts.Ledger, opts.RoleCacheTTL, now),
		policy:  opts.Policy,
		now:     now,
	}, nil
}

// InvalidateRoles drops cached contract roles for an account, forcing the
// next precondition check to hit the ledger.
func (e *Engine) InvalidateRoles(account string) {
	e.roles.invalidate(account)
}

// RegisterProperty registers a new land parcel on the ledger and mirrors it.
func (e *Engine) RegisterProperty(ctx context.Context, account string, input property.RegistrationInput) (property.Property, error) {
	account, err := requireAccount(account)
	if err != nil {
		return property.Property{}, err
	}
	normalized, err := property.NormalizeRegistrationInput(input)
	if err != nil {
		return property.Property{}, err
	}

	evt, err := e.submit(ctx, ledger.ActionRegisterProperty, event.PropertyRegisteredPayload{
		Location:     normalized.Location,
		Coordinates:  normalized.Coordinates,
		Area:         normalized.Area,
		Value:        normalized.Value,
		DocumentRef:  normalized.DocumentRef,
		PropertyType: normalized.Metadata.PropertyType,
		YearBuilt:    normalized.Metadata.YearBuilt,
		Zoning:       normalized.Metadata.Zoning,
	}, account)
	if err != nil {
		return property.Property{}, err
	}
	return e.store.GetProperty(ctx, evt.PropertyID)
}

// VerifyProperty marks a parcel verified. The caller needs the inspector role.
func (e *Engine) VerifyProperty(ctx context.Context, account string, propertyID uint64) (property.Property, error) {
	account, err := requireAccount(account)
	if err != nil {
		return property.Property{}, err
	}
	if err := e.requireInspector(ctx, account); err != nil {
		return property.Property{}, err
	}
	if _, err := e.store.GetProperty(ctx, propertyID); err != nil {
		return property.Property{}, err
	}

	evt, err := e.submit(ctx, ledger.ActionVerifyProperty, struct {
		PropertyID uint64 `json:"propertyId"`
	}{PropertyID: propertyID}, account)
	if err != nil {
		return property.Property{}, err
	}
	return e.store.GetProperty(ctx, evt.PropertyID)
}

// InitiateTransfer opens a transfer request for a property the caller owns.
func (e *Engine) InitiateTransfer(ctx context.Context, account string, propertyID uint64, to string, price float64) (transfer.Request, error) {
	account, err := requireAccount(account)
	if err != nil {
		return transfer.Request{}, err
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return transfer.Request{}, apperrors.New(apperrors.CodeAccountEmpty, "transfer recipient account is required")
	}
	if to == account {
		return transfer.Request{}, transfer.ErrSelfTransfer
	}
	if price <= 0 {
		return transfer.Request{}, transfer.ErrInvalidPrice
	}
	p, err := e.store.GetProperty(ctx, propertyID)
	if err != nil {
		return transfer.Request{}, err
	}
	if p.Owner != account {
		return transfer.Request{}, apperrors.New(
			apperrors.CodeUnauthorized,
			fmt.Sprintf("account %s does not own property %d", account, propertyID),
		)
	}
	if p.Status != property.StatusAvailable {
		return transfer.Request{}, apperrors.WithMetadata(
			apperrors.CodePropertyNotAvailable,
			fmt.Sprintf("property %d is not available for transfer: %s", propertyID, property.StatusLabel(p.Status)),
			map[string]string{"Status": property.StatusLabel(p.Status)},
		)
	}

	evt, err := e.submit(ctx, ledger.ActionInitiateTransfer, struct {
		PropertyID uint64  `json:"propertyId"`
		To         string  `json:"to"`
		Price      float64 `json:"price"`
	}{PropertyID: propertyID, To: to, Price: price}, account)
	if err != nil {
		return transfer.Request{}, err
	}
	return e.store.GetTransfer(ctx, evt.RequestID)
}

// ApproveTransfer approves a pending request. The caller needs the inspector role.
func (e *Engine) ApproveTransfer(ctx context.Context, account string, requestID uint64) (transfer.Request, error) {
	account, err := requireAccount(account)
	if err != nil {
		return transfer.Request{}, err
	}
	if err := e.requireInspector(ctx, account); err != nil {
		return transfer.Request{}, err
	}
	request, err := e.store.GetTransfer(ctx, requestID)
	if err != nil {
		return transfer.Request{}, err
	}
	if request.Status != transfer.StatusPending {
		return transfer.Request{}, notPending(request)
	}

	evt, err := e.submit(ctx, ledger.ActionApproveTransfer, requestParams{RequestID: requestID}, account)
	if err != nil {
		return transfer.Request{}, err
	}
	return e.store.GetTransfer(ctx, evt.RequestID)
}

// RejectTransfer rejects a pending request, or an approved one during dispute
// resolution. The caller needs the inspector role.
func (e *Engine) RejectTransfer(ctx context.Context, account string, requestID uint64, reason string) (transfer.Request, error) {
	account, err := requireAccount(account)
	if err != nil {
		return transfer.Request{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return transfer.Request{}, transfer.ErrEmptyReason
	}
	if err := e.requireInspector(ctx, account); err != nil {
		return transfer.Request{}, err
	}
	request, err := e.store.GetTransfer(ctx, requestID)
	if err != nil {
		return transfer.Request{}, err
	}
	if request.Terminal() {
		return transfer.Request{}, terminalRequest(request)
	}

	evt, err := e.submit(ctx, ledger.ActionRejectTransfer, struct {
		RequestID uint64 `json:"requestId"`
		Reason    string `json:"reason"`
	}{RequestID: requestID, Reason: reason}, account)
	if err != nil {
		return transfer.Request{}, err
	}
	return e.store.GetTransfer(ctx, evt.RequestID)
}

// ExecuteTransfer completes an approved request once the waiting period has
// elapsed. Either participant may execute.
func (e *Engine) ExecuteTransfer(ctx context.Context, account string, requestID uint64) (transfer.Request, error) {
	account, err := requireAccount(account)
	if err != nil {
		return transfer.Request{}, err
	}
	request, err := e.store.GetTransfer(ctx, requestID)
	if err != nil {
		return transfer.Request{}, err
	}
	if account != request.From && account != request.To {
		return transfer.Request{}, apperrors.New(
			apperrors.CodeUnauthorized,
			fmt.Sprintf("account %s is not a participant of transfer request %d", account, requestID),
		)
	}
	if request.Terminal() {
		return transfer.Request{}, terminalRequest(request)
	}
	if request.Status != transfer.StatusApproved {
		return transfer.Request{}, notApproved(request)
	}
	now := e.now()
	if !request.WaitingPeriodComplete(now) {
		executableAt := request.ApprovalDate.Add(transfer.WaitingPeriod)
		return transfer.Request{}, apperrors.WithMetadata(
			apperrors.CodeWaitingPeriodIncomplete,
			fmt.Sprintf("transfer request %d is executable at %s", requestID, executableAt.Format(time.RFC3339)),
			map[string]string{"ExecutableAt": executableAt.Format(time.RFC3339)},
		)
	}
	if e.policy.BlockExecuteOnOpenDispute && request.HasOpenDispute() {
		return transfer.Request{}, apperrors.New(
			apperrors.CodeTransferDisputeOpen,
			fmt.Sprintf("transfer request %d has an unresolved dispute", requestID),
		)
	}

	evt, err := e.submit(ctx, ledger.ActionExecuteTransfer, requestParams{RequestID: requestID}, account)
	if err != nil {
		return transfer.Request{}, err
	}
	return e.store.GetTransfer(ctx, evt.RequestID)
}

// CancelTransfer withdraws a pending request. Only the initiator may cancel.
func (e *Engine) CancelTransfer(ctx context.Context, account string, requestID uint64) (transfer.Request, error) {
	account, err := requireAccount(account)
	if err != nil {
		return transfer.Request{}, err
	}
	request, err := e.store.GetTransfer(ctx, requestID)
	if err != nil {
		return transfer.Request{}, err
	}
	if account != request.From {
		return transfer.Request{}, apperrors.New(
			apperrors.CodeUnauthorized,
			fmt.Sprintf("account %s did not initiate transfer request %d", account, requestID),
		)
	}
	if request.Terminal() {
		return transfer.Request{}, terminalRequest(request)
	}
	if request.Status != transfer.StatusPending {
		return transfer.Request{}, notPending(request)
	}

	evt, err := e.submit(ctx, ledger.ActionCancelTransfer, requestParams{RequestID: requestID}, account)
	if err != nil {
		return transfer.Request{}, err
	}
	return e.store.GetTransfer(ctx, evt.RequestID)
}

// RaiseDispute flags an approved request as disputed. Disputes are accepted
// during the dispute window only, measured from the ledger approval timestamp.
func (e *Engine) RaiseDispute(ctx context.Context, account string, requestID uint64, reason string) (transfer.Request, error) {
	account, err := requireAccount(account)
	if err != nil {
		return transfer.Request{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return transfer.Request{}, transfer.ErrEmptyReason
	}
	request, err := e.store.GetTransfer(ctx, requestID)
	if err != nil {
		return transfer.Request{}, err
	}
	if request.Status != transfer.StatusApproved {
		return transfer.Request{}, notApproved(request)
	}
	if !request.InDisputePeriod(e.now()) {
		closedAt := request.ApprovalDate.Add(transfer.DisputePeriod)
		return transfer.Request{}, apperrors.WithMetadata(
			apperrors.CodeDisputeWindowClosed,
			fmt.Sprintf("dispute window for transfer request %d closed at %s", requestID, closedAt.Format(time.RFC3339)),
			map[string]string{"ClosedAt": closedAt.Format(time.RFC3339)},
		)
	}

	evt, err := e.submit(ctx, ledger.ActionRaiseDispute, struct {
		RequestID uint64 `json:"requestId"`
		Reason    string `json:"reason"`
	}{RequestID: requestID, Reason: reason}, account)
	if err != nil {
		return transfer.Request{}, err
	}
	return e.store.GetTransfer(ctx, evt.RequestID)
}

// GetProperty reads one mirrored property.
func (e *Engine) GetProperty(ctx context.Context, id uint64) (property.Property, error) {
	return e.store.GetProperty(ctx, id)
}

// ListProperties reads mirrored properties matching the filter.
func (e *Engine) ListProperties(ctx context.Context, filter storage.PropertyFilter, page storage.Page) ([]property.Property, error) {
	return e.store.ListProperties(ctx, filter, page)
}

// GetTransfer reads one mirrored transfer request.
func (e *Engine) GetTransfer(ctx context.Context, id uint64) (transfer.Request, error) {
	return e.store.GetTransfer(ctx, id)
}

// ListTransfers reads mirrored transfer requests matching the filter.
func (e *Engine) ListTransfers(ctx context.Context, filter storage.TransferFilter, page storage.Page) ([]transfer.Request, error) {
	return e.store.ListTransfers(ctx, filter, page)
}

type requestParams struct {
	RequestID uint64 `json:"requestId"`
}

// submit sends one transaction, awaits its confirmation, and projects the
// confirmed event before returning it.
func (e *Engine) submit(ctx context.Context, action ledger.Action, params any, signer string) (event.Event, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return event.Event{}, fmt.Errorf("encode %s params: %w", action, err)
	}
	tx, err := e.ledger.Submit(ctx, action, ledger.Args{string(raw)}, signer)
	if err != nil {
		return event.Event{}, err
	}
	evt, err := e.ledger.AwaitConfirmation(ctx, tx)
	if err != nil {
		return event.Event{}, err
	}
	if err := e.OnLedgerEvent(ctx, evt); err != nil {
		return event.Event{}, err
	}
	return evt, nil
}

func (e *Engine) requireInspector(ctx context.Context, account string) error {
	granted, err := e.roles.has(ctx, account, ledger.RoleInspector)
	if err != nil {
		return err
	}
	if !granted {
		return apperrors.New(
			apperrors.CodeUnauthorized,
			fmt.Sprintf("account %s lacks the inspector role", account),
		)
	}
	return nil
}

func requireAccount(account string) (string, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return "", apperrors.New(apperrors.CodeAccountEmpty, "caller account is required")
	}
	return account, nil
}

func notPending(request transfer.Request) error {
	return apperrors.WithMetadata(
		apperrors.CodeTransferNotPending,
		fmt.Sprintf("transfer request %d is not pending: %s", request.ID, transfer.StatusLabel(request.Status)),
		map[string]string{"Status": transfer.StatusLabel(request.Status)},
	)
}

func notApproved(request transfer.Request) error {
	return apperrors.WithMetadata(
		apperrors.CodeTransferNotApproved,
		fmt.Sprintf("transfer request %d is not approved: %s", request.ID, transfer.StatusLabel(request.Status)),
		map[string]string{"Status": transfer.StatusLabel(request.Status)},
	)
}

func terminalRequest(request transfer.Request) error {
	return apperrors.WithMetadata(
		apperrors.CodeTransferTerminal,
		fmt.Sprintf("transfer request %d reached terminal status %s", request.ID, transfer.StatusLabel(request.Status)),
		map[string]string{"Status": transfer.StatusLabel(request.Status)},
	)
}
