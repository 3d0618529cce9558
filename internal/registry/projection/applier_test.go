package projection

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	apperrors "github.com/terrachain/registry/internal/platform/errors"
	"github.com/terrachain/registry/internal/registry/domain/event"
	"github.com/terrachain/registry/internal/registry/domain/property"
	"github.com/terrachain/registry/internal/registry/domain/transfer"
	"github.com/terrachain/registry/internal/testkit/registryfakes"
)

func mustPayload(t *testing.T, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

func newApplier() (Applier, *registryfakes.Store) {
	store := registryfakes.NewStore()
	return Applier{Properties: store, Transfers: store}, store
}

func TestApplyPropertyRegisteredCreatesMirrorRow(t *testing.T) {
	t.Parallel()

	applier, store := newApplier()
	at := time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)
	evt := event.Event{
		Type:       event.TypePropertyRegistered,
		TxRef:      "0x01",
		Timestamp:  at,
		PropertyID: 1,
		PayloadJSON: mustPayload(t, event.PropertyRegisteredPayload{
			Location:    "12 Harbor Road",
			Coordinates: "43.65,-79.38",
			Area:        640,
			Value:       250000,
			Owner:       "acct-alice",
			DocumentRef: "doc://deed/1",
			Zoning:      "R2",
		}),
	}
	if err := applier.Apply(context.Background(), evt); err != nil {
		t.Fatalf("apply: %v", err)
	}

	p := store.Properties[1]
	if p.Owner != "acct-alice" {
		t.Fatalf("owner = %q, want acct-alice", p.Owner)
	}
	if p.Status != property.StatusAvailable {
		t.Fatalf("status = %v, want available", p.Status)
	}
	if p.Verified {
		t.Fatal("expected unverified property at registration")
	}
	if !p.CreatedAt.Equal(at) {
		t.Fatalf("created_at = %v, want ledger timestamp %v", p.CreatedAt, at)
	}
}

func TestApplyTransferRequestedMarksPropertyPending(t *testing.T) {
	t.Parallel()

	applier, store := newApplier()
	at := time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)
	store.Properties[1] = property.Property{ID: 1, Location: "x", Coordinates: "y", Area: 1, Value: 1, Owner: "acct-alice", Status: property.StatusAvailable, DocumentRef: "d", CreatedAt: at, UpdatedAt: at}

	evt := event.Event{
		Type:        event.TypeTransferRequested,
		TxRef:       "0x02",
		Timestamp:   at.Add(time.Hour),
		PropertyID:  1,
		RequestID:   5,
		PayloadJSON: mustPayload(t, event.TransferRequestedPayload{From: "acct-alice", To: "acct-bob", Price: 100}),
	}
	if err := applier.Apply(context.Background(), evt); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if store.Properties[1].Status != property.StatusPendingTransfer {
		t.Fatalf("property status = %v, want pending transfer", store.Properties[1].Status)
	}
	request := store.Transfers[5]
	if request.Status != transfer.StatusPending {
		t.Fatalf("request status = %v, want pending", request.Status)
	}
	if request.From != "acct-alice" || request.To != "acct-bob" {
		t.Fatalf("participants = %q -> %q", request.From, request.To)
	}
}

func TestApplyTransferApprovedSetsLedgerApprovalDate(t *testing.T) {
	t.Parallel()

	applier, store := newApplier()
	at := time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)
	store.Transfers[5] = transfer.Request{ID: 5, PropertyID: 1, From: "acct-alice", To: "acct-bob", Price: 100, RequestDate: at, Status: transfer.StatusPending, CreatedAt: at, UpdatedAt: at}

	approvedAt := at.Add(2 * time.Hour)
	evt := event.Event{
		Type:        event.TypeTransferApproved,
		TxRef:       "0x03",
		Timestamp:   approvedAt,
		PropertyID:  1,
		RequestID:   5,
		PayloadJSON: mustPayload(t, event.TransferApprovedPayload{ApprovedBy: "acct-inspector"}),
	}
	if err := applier.Apply(context.Background(), evt); err != nil {
		t.Fatalf("apply: %v", err)
	}

	request := store.Transfers[5]
	if request.Status != transfer.StatusApproved {
		t.Fatalf("status = %v, want approved", request.Status)
	}
	if request.ApprovalDate == nil || !request.ApprovalDate.Equal(approvedAt) {
		t.Fatalf("approval date = %v, want ledger timestamp %v", request.ApprovalDate, approvedAt)
	}
	if request.ApprovedBy != "acct-inspector" {
		t.Fatalf("approved by = %q, want acct-inspector", request.ApprovedBy)
	}
}

func TestApplyTransferExecutedMovesOwnershipAndAppendsHistory(t *testing.T) {
	t.Parallel()

	applier, store := newApplier()
	at := time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)
	approval := at.Add(time.Hour)
	store.Properties[1] = property.Property{ID: 1, Location: "x", Coordinates: "y", Area: 1, Value: 1, Owner: "acct-alice", Status: property.StatusPendingTransfer, DocumentRef: "d", CreatedAt: at, UpdatedAt: at}
	store.Transfers[5] = transfer.Request{ID: 5, PropertyID: 1, From: "acct-alice", To: "acct-bob", Price: 100, RequestDate: at, Status: transfer.StatusApproved, ApprovedBy: "acct-inspector", ApprovalDate: &approval, CreatedAt: at, UpdatedAt: approval}

	executedAt := approval.Add(transfer.WaitingPeriod)
	evt := event.Event{
		Type:        event.TypeTransferExecuted,
		TxRef:       "0x04",
		Timestamp:   executedAt,
		PropertyID:  1,
		RequestID:   5,
		PayloadJSON: mustPayload(t, event.TransferExecutedPayload{ExecutedBy: "acct-alice"}),
	}
	if err := applier.Apply(context.Background(), evt); err != nil {
		t.Fatalf("apply: %v", err)
	}

	p := store.Properties[1]
	if p.Owner != "acct-bob" {
		t.Fatalf("owner = %q, want acct-bob", p.Owner)
	}
	if p.Status != property.StatusAvailable {
		t.Fatalf("property status = %v, want available", p.Status)
	}
	if len(p.TransferHistory) != 1 || p.TransferHistory[0].TxRef != "0x04" {
		t.Fatalf("history = %+v, want one record with tx 0x04", p.TransferHistory)
	}
	request := store.Transfers[5]
	if request.Status != transfer.StatusCompleted {
		t.Fatalf("request status = %v, want completed", request.Status)
	}
	if request.Completion == nil || !request.Completion.CompletionDate.Equal(executedAt) {
		t.Fatalf("completion = %+v, want date %v", request.Completion, executedAt)
	}
}

func TestApplyTransferRejectedReleasesPropertyAndResolvesDispute(t *testing.T) {
	t.Parallel()

	applier, store := newApplier()
	at := time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)
	approval := at.Add(time.Hour)
	store.Properties[1] = property.Property{ID: 1, Location: "x", Coordinates: "y", Area: 1, Value: 1, Owner: "acct-alice", Status: property.StatusPendingTransfer, DocumentRef: "d", CreatedAt: at, UpdatedAt: at}
	store.Transfers[5] = transfer.Request{
		ID: 5, PropertyID: 1, From: "acct-alice", To: "acct-bob", Price: 100,
		RequestDate: at, Status: transfer.StatusApproved, ApprovedBy: "acct-inspector", ApprovalDate: &approval,
		Dispute:   &transfer.DisputeDetails{HasDispute: true, DisputeDate: approval.Add(time.Hour), DisputeReason: "boundary mismatch"},
		CreatedAt: at, UpdatedAt: approval,
	}

	rejectedAt := approval.Add(2 * 24 * time.Hour)
	evt := event.Event{
		Type:        event.TypeTransferRejected,
		TxRef:       "0x05",
		Timestamp:   rejectedAt,
		PropertyID:  1,
		RequestID:   5,
		PayloadJSON: mustPayload(t, event.TransferRejectedPayload{RejectedBy: "acct-inspector", Reason: "boundary mismatch"}),
	}
	if err := applier.Apply(context.Background(), evt); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if store.Properties[1].Status != property.StatusAvailable {
		t.Fatalf("property status = %v, want available", store.Properties[1].Status)
	}
	request := store.Transfers[5]
	if request.Status != transfer.StatusRejected {
		t.Fatalf("request status = %v, want rejected", request.Status)
	}
	if request.Dispute == nil || request.Dispute.ResolvedDate == nil {
		t.Fatal("expected dispute to be resolved by the rejection")
	}
}

func TestApplyMissingAggregateReturnsMirrorInconsistency(t *testing.T) {
	t.Parallel()

	applier, _ := newApplier()
	evt := event.Event{
		Type:        event.TypeTransferApproved,
		TxRef:       "0x06",
		Timestamp:   time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC),
		PropertyID:  1,
		RequestID:   99,
		PayloadJSON: mustPayload(t, event.TransferApprovedPayload{ApprovedBy: "acct-inspector"}),
	}
	err := applier.Apply(context.Background(), evt)
	if apperrors.CodeOf(err) != apperrors.CodeMirrorInconsistent {
		t.Fatalf("error code = %v, want mirror inconsistency", apperrors.CodeOf(err))
	}
}

func TestApplyUnknownEventTypeRejected(t *testing.T) {
	t.Parallel()

	applier, _ := newApplier()
	evt := event.Event{
		Type:       event.Type("PropertyRenamed"),
		TxRef:      "0x07",
		Timestamp:  time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC),
		PropertyID: 1,
	}
	if err := applier.Apply(context.Background(), evt); err == nil {
		t.Fatal("expected unknown event type error")
	}
}
