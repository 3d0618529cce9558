// Package ledgertest provides an in-memory scripted ledger for tests.
//
// The fake models the authoritative registry contract: it keeps its own chain
// state, assigns identifiers, enforces the contract's preconditions, and emits
// confirmed events with block timestamps taken from a controllable clock. It
// can also redeliver past events to exercise at-least-once subscribers.
package ledgertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/terrachain/registry/internal/platform/errors"
	"github.com/terrachain/registry/internal/registry/domain/event"
	"github.com/terrachain/registry/internal/registry/ledger"
)

type chainProperty struct {
	owner    string
	pending  bool
	verified bool
}

type chainRequest struct {
	propertyID uint64
	from       string
	to         string
	price      float64
	status     string // pending, approved, rejected, completed, cancelled
	approvedAt time.Time
	disputed   bool
}

type subscriber struct {
	filter ledger.EventFilter
	ch     chan event.Event
	done   <-chan struct{}
}

// Ledger is an in-memory ledger.Client implementation.
type Ledger struct {
	mu sync.Mutex

	now        time.Time
	txSeq      uint64
	nextProp   uint64
	nextReq    uint64
	properties map[uint64]*chainProperty
	requests   map[uint64]*chainRequest
	roles      map[string]map[string]bool

	log         []event.Event
	subscribers []*subscriber

	failNextSubmit error
}

var _ ledger.Client = (*Ledger)(nil)

// New creates an empty fake ledger whose clock starts at start.
func New(start time.Time) *Ledger {
	return &Ledger{
		now:        start.UTC(),
		nextProp:   1,
		nextReq:    1,
		properties: make(map[uint64]*chainProperty),
		requests:   make(map[uint64]*chainRequest),
		roles:      make(map[string]map[string]bool),
	}
}

// Now returns the current block-timestamp clock.
func (l *Ledger) Now() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now
}

// Advance moves the block-timestamp clock forward.
func (l *Ledger) Advance(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = l.now.Add(d)
}

// GrantRole adds a contract role to an account.
func (l *Ledger) GrantRole(account, role string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.roles[account] == nil {
		l.roles[account] = make(map[string]bool)
	}
	l.roles[account][role] = true
}

// RevokeRole removes a contract role from an account.
func (l *Ledger) RevokeRole(account, role string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.roles[account], role)
}

// FailNextSubmit makes the next Submit call fail with err.
func (l *Ledger) FailNextSubmit(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNextSubmit = err
}

// Events returns a copy of every confirmed event in emission order.
func (l *Ledger) Events() []event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]event.Event, len(l.log))
	copy(out, l.log)
	return out
}

// Redeliver sends an already-confirmed event to all subscribers again,
// simulating at-least-once redelivery after a reconnect.
func (l *Ledger) Redeliver(evt event.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.broadcastLocked(evt)
}

// Submit validates the transaction against chain state, applies it, and
// confirms immediately on the returned handle.
func (l *Ledger) Submit(_ context.Context, action ledger.Action, args ledger.Args, signer string) (ledger.PendingTx, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.failNextSubmit; err != nil {
		l.failNextSubmit = nil
		return ledger.PendingTx{}, err
	}

	evt, err := l.applyLocked(action, args, signer)
	result := make(chan ledger.Outcome, 1)
	if err != nil {
		result <- ledger.Outcome{Err: err}
	} else {
		result <- ledger.Outcome{Event: evt}
	}
	return ledger.PendingTx{TxRef: evt.TxRef, Result: result}, nil
}

// AwaitConfirmation resolves the pending handle.
func (l *Ledger) AwaitConfirmation(ctx context.Context, tx ledger.PendingTx) (event.Event, error) {
	if tx.Result == nil {
		return event.Event{}, fmt.Errorf("pending transaction has no result channel")
	}
	select {
	case outcome := <-tx.Result:
		if outcome.Err != nil {
			return event.Event{}, outcome.Err
		}
		return outcome.Event, nil
	case <-ctx.Done():
		return event.Event{}, ctx.Err()
	}
}

// Subscribe streams confirmed events until ctx is done.
func (l *Ledger) Subscribe(ctx context.Context, filter ledger.EventFilter) (<-chan event.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sub := &subscriber{
		filter: filter,
		ch:     make(chan event.Event, 64),
		done:   ctx.Done(),
	}
	l.subscribers = append(l.subscribers, sub)
	go func() {
		<-ctx.Done()
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, candidate := range l.subscribers {
			if candidate == sub {
				l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
				close(sub.ch)
				break
			}
		}
	}()
	return sub.ch, nil
}

// HasRole reports contract role membership.
func (l *Ledger) HasRole(_ context.Context, account, role string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.roles[account][role], nil
}

// QueryState reports raw chain state for the GetProperty and
// GetTransferRequest views, each taking a single JSON id argument.
func (l *Ledger) QueryState(_ context.Context, view string, args ledger.Args) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch view {
	case "GetProperty":
		var params struct {
			PropertyID uint64 `json:"propertyId"`
		}
		if err := decodeParams(args, &params); err != nil {
			return nil, err
		}
		prop, ok := l.properties[params.PropertyID]
		if !ok {
			return nil, reject("query: unknown property %d", params.PropertyID)
		}
		return json.Marshal(map[string]any{
			"owner":    prop.owner,
			"pending":  prop.pending,
			"verified": prop.verified,
		})

	case "GetTransferRequest":
		req, _, err := l.lookupRequest(args)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{
			"propertyId": req.propertyID,
			"from":       req.from,
			"to":         req.to,
			"price":      req.price,
			"status":     req.status,
			"disputed":   req.disputed,
		})

	default:
		return nil, reject("unknown view %s", view)
	}
}

func (l *Ledger) broadcastLocked(evt event.Event) {
	for _, sub := range l.subscribers {
		if !sub.filter.Matches(evt.Type) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Slow subscriber; the real ledger would buffer and redeliver.
		}
	}
}

func (l *Ledger) emitLocked(t event.Type, propertyID, requestID uint64, payload any) (event.Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return event.Event{}, err
	}
	l.txSeq++
	evt := event.Event{
		Type:        t,
		TxRef:       fmt.Sprintf("0x%08x", l.txSeq),
		Timestamp:   l.now,
		PropertyID:  propertyID,
		RequestID:   requestID,
		PayloadJSON: raw,
	}
	l.log = append(l.log, evt)
	l.broadcastLocked(evt)
	return evt, nil
}

func reject(format string, args ...any) error {
	return apperrors.Wrap(apperrors.CodeLedgerRejected, fmt.Sprintf(format, args...), ledger.ErrRejected)
}

func (l *Ledger) applyLocked(action ledger.Action, args ledger.Args, signer string) (event.Event, error) {
	switch action {
	case ledger.ActionRegisterProperty:
		var params event.PropertyRegisteredPayload
		if err := decodeParams(args, &params); err != nil {
			return event.Event{}, err
		}
		if params.Area <= 0 || params.Value <= 0 {
			return event.Event{}, reject("register: area and value must be positive")
		}
		id := l.nextProp
		l.nextProp++
		l.properties[id] = &chainProperty{owner: signer}
		params.Owner = signer
		return l.emitLocked(event.TypePropertyRegistered, id, 0, params)

	case ledger.ActionVerifyProperty:
		var params struct {
			PropertyID uint64 `json:"propertyId"`
		}
		if err := decodeParams(args, &params); err != nil {
			return event.Event{}, err
		}
		if !l.roles[signer][ledger.RoleInspector] {
			return event.Event{}, reject("verify: %s lacks %s", signer, ledger.RoleInspector)
		}
		prop, ok := l.properties[params.PropertyID]
		if !ok {
			return event.Event{}, reject("verify: unknown property %d", params.PropertyID)
		}
		prop.verified = true
		return l.emitLocked(event.TypePropertyVerified, params.PropertyID, 0,
			event.PropertyVerifiedPayload{VerifiedBy: signer})

	case ledger.ActionInitiateTransfer:
		var params struct {
			PropertyID uint64  `json:"propertyId"`
			To         string  `json:"to"`
			Price      float64 `json:"price"`
		}
		if err := decodeParams(args, &params); err != nil {
			return event.Event{}, err
		}
		prop, ok := l.properties[params.PropertyID]
		if !ok {
			return event.Event{}, reject("initiate: unknown property %d", params.PropertyID)
		}
		if prop.pending {
			return event.Event{}, reject("initiate: property %d already pending", params.PropertyID)
		}
		if prop.owner != signer {
			return event.Event{}, reject("initiate: %s does not own property %d", signer, params.PropertyID)
		}
		if params.To == prop.owner || params.Price <= 0 {
			return event.Event{}, reject("initiate: invalid recipient or price")
		}
		id := l.nextReq
		l.nextReq++
		l.requests[id] = &chainRequest{
			propertyID: params.PropertyID,
			from:       signer,
			to:         params.To,
			price:      params.Price,
			status:     "pending",
		}
		prop.pending = true
		return l.emitLocked(event.TypeTransferRequested, params.PropertyID, id,
			event.TransferRequestedPayload{From: signer, To: params.To, Price: params.Price})

	case ledger.ActionApproveTransfer:
		req, id, err := l.lookupRequest(args)
		if err != nil {
			return event.Event{}, err
		}
		if !l.roles[signer][ledger.RoleInspector] {
			return event.Event{}, reject("approve: %s lacks %s", signer, ledger.RoleInspector)
		}
		if req.status != "pending" {
			return event.Event{}, reject("approve: request %d is %s", id, req.status)
		}
		req.status = "approved"
		req.approvedAt = l.now
		return l.emitLocked(event.TypeTransferApproved, req.propertyID, id,
			event.TransferApprovedPayload{ApprovedBy: signer})

	case ledger.ActionRejectTransfer:
		var params struct {
			RequestID uint64 `json:"requestId"`
			Reason    string `json:"reason"`
		}
		if err := decodeParams(args, &params); err != nil {
			return event.Event{}, err
		}
		if !l.roles[signer][ledger.RoleInspector] {
			return event.Event{}, reject("reject: %s lacks %s", signer, ledger.RoleInspector)
		}
		req, ok := l.requests[params.RequestID]
		if !ok {
			return event.Event{}, reject("reject: unknown request %d", params.RequestID)
		}
		if req.status != "pending" && req.status != "approved" {
			return event.Event{}, reject("reject: request %d is %s", params.RequestID, req.status)
		}
		req.status = "rejected"
		l.properties[req.propertyID].pending = false
		return l.emitLocked(event.TypeTransferRejected, req.propertyID, params.RequestID,
			event.TransferRejectedPayload{RejectedBy: signer, Reason: params.Reason})

	case ledger.ActionExecuteTransfer:
		req, id, err := l.lookupRequest(args)
		if err != nil {
			return event.Event{}, err
		}
		if req.status != "approved" {
			return event.Event{}, reject("execute: request %d is %s", id, req.status)
		}
		if l.now.Before(req.approvedAt.Add(7 * 24 * time.Hour)) {
			return event.Event{}, reject("execute: waiting period incomplete for request %d", id)
		}
		req.status = "completed"
		prop := l.properties[req.propertyID]
		prop.owner = req.to
		prop.pending = false
		return l.emitLocked(event.TypeTransferExecuted, req.propertyID, id,
			event.TransferExecutedPayload{ExecutedBy: signer})

	case ledger.ActionCancelTransfer:
		req, id, err := l.lookupRequest(args)
		if err != nil {
			return event.Event{}, err
		}
		if req.from != signer {
			return event.Event{}, reject("cancel: %s did not initiate request %d", signer, id)
		}
		if req.status != "pending" {
			return event.Event{}, reject("cancel: request %d is %s", id, req.status)
		}
		req.status = "cancelled"
		l.properties[req.propertyID].pending = false
		return l.emitLocked(event.TypeTransferCancelled, req.propertyID, id,
			event.TransferCancelledPayload{CancelledBy: signer})

	case ledger.ActionRaiseDispute:
		var params struct {
			RequestID uint64 `json:"requestId"`
			Reason    string `json:"reason"`
		}
		if err := decodeParams(args, &params); err != nil {
			return event.Event{}, err
		}
		req, ok := l.requests[params.RequestID]
		if !ok {
			return event.Event{}, reject("dispute: unknown request %d", params.RequestID)
		}
		if req.status != "approved" {
			return event.Event{}, reject("dispute: request %d is %s", params.RequestID, req.status)
		}
		if l.now.After(req.approvedAt.Add(3 * 24 * time.Hour)) {
			return event.Event{}, reject("dispute: window closed for request %d", params.RequestID)
		}
		req.disputed = true
		return l.emitLocked(event.TypeDisputeRaised, req.propertyID, params.RequestID,
			event.DisputeRaisedPayload{RaisedBy: signer, Reason: params.Reason})

	default:
		return event.Event{}, reject("unknown action %s", action)
	}
}

func (l *Ledger) lookupRequest(args ledger.Args) (*chainRequest, uint64, error) {
	var params struct {
		RequestID uint64 `json:"requestId"`
	}
	if err := decodeParams(args, &params); err != nil {
		return nil, 0, err
	}
	req, ok := l.requests[params.RequestID]
	if !ok {
		return nil, 0, reject("unknown request %d", params.RequestID)
	}
	return req, params.RequestID, nil
}

func decodeParams(args ledger.Args, target any) error {
	if len(args) != 1 {
		return reject("expected one JSON params argument, got %d", len(args))
	}
	if err := json.Unmarshal([]byte(args[0]), target); err != nil {
		return reject("malformed params: %v", err)
	}
	return nil
}
