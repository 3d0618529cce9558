package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/terrachain/registry/internal/registry/domain/event"
	"github.com/terrachain/registry/internal/registry/domain/property"
	"github.com/terrachain/registry/internal/registry/domain/transfer"
	"github.com/terrachain/registry/internal/registry/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestPutGetPropertyRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	input := property.Property{
		ID:          7,
		Location:    "12 Harbor Road",
		Coordinates: "43.6532,-79.3832",
		Area:        640,
		Value:       250000,
		Owner:       "acct-alice",
		Status:      property.StatusAvailable,
		Verified:    true,
		DocumentRef: "doc://deed/7",
		Metadata: property.Metadata{
			PropertyType: "residential",
			YearBuilt:    1987,
			Zoning:       "R2",
		},
		TransferHistory: []property.TransferRecord{
			{From: "acct-zoe", To: "acct-alice", Date: now.Add(-30 * 24 * time.Hour), Price: 200000, TxRef: "0x01"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.PutProperty(context.Background(), input); err != nil {
		t.Fatalf("put property: %v", err)
	}

	got, err := store.GetProperty(context.Background(), 7)
	if err != nil {
		t.Fatalf("get property: %v", err)
	}
	if got.Owner != input.Owner {
		t.Fatalf("owner = %q, want %q", got.Owner, input.Owner)
	}
	if got.Status != property.StatusAvailable {
		t.Fatalf("status = %v, want available", got.Status)
	}
	if !got.Verified {
		t.Fatal("expected verified property")
	}
	if got.Metadata.YearBuilt != 1987 {
		t.Fatalf("year built = %d, want 1987", got.Metadata.YearBuilt)
	}
	if len(got.TransferHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(got.TransferHistory))
	}
	if got.TransferHistory[0].TxRef != "0x01" {
		t.Fatalf("history tx ref = %q, want 0x01", got.TransferHistory[0].TxRef)
	}
	if !got.TransferHistory[0].Date.Equal(input.TransferHistory[0].Date) {
		t.Fatalf("history date = %v, want %v", got.TransferHistory[0].Date, input.TransferHistory[0].Date)
	}
}

func TestPutPropertyUpsertsExistingRow(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	input := property.Property{
		ID:          9,
		Location:    "4 Quarry Lane",
		Coordinates: "45.0,-75.0",
		Area:        100,
		Value:       80000,
		Owner:       "acct-bob",
		Status:      property.StatusAvailable,
		DocumentRef: "doc://deed/9",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.PutProperty(context.Background(), input); err != nil {
		t.Fatalf("put property: %v", err)
	}
	input.Status = property.StatusPendingTransfer
	input.UpdatedAt = now.Add(time.Hour)
	if err := store.PutProperty(context.Background(), input); err != nil {
		t.Fatalf("upsert property: %v", err)
	}

	got, err := store.GetProperty(context.Background(), 9)
	if err != nil {
		t.Fatalf("get property: %v", err)
	}
	if got.Status != property.StatusPendingTransfer {
		t.Fatalf("status = %v, want pending transfer", got.Status)
	}
	if !got.UpdatedAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("updated_at = %v, want %v", got.UpdatedAt, now.Add(time.Hour))
	}
}

func TestGetPropertyReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	_, err := store.GetProperty(context.Background(), 404)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestListPropertiesFilters(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	seed := []property.Property{
		{ID: 1, Location: "1 North Street", Coordinates: "a", Area: 1, Value: 1, Owner: "acct-alice", Status: property.StatusAvailable, DocumentRef: "d1", CreatedAt: now, UpdatedAt: now},
		{ID: 2, Location: "2 North Street", Coordinates: "b", Area: 1, Value: 1, Owner: "acct-bob", Status: property.StatusPendingTransfer, DocumentRef: "d2", CreatedAt: now, UpdatedAt: now},
		{ID: 3, Location: "3 South Avenue", Coordinates: "c", Area: 1, Value: 1, Owner: "acct-alice", Status: property.StatusPendingTransfer, DocumentRef: "d3", CreatedAt: now, UpdatedAt: now},
	}
	for _, p := range seed {
		if err := store.PutProperty(context.Background(), p); err != nil {
			t.Fatalf("seed property %d: %v", p.ID, err)
		}
	}

	byOwner, err := store.ListProperties(context.Background(), storage.PropertyFilter{Owner: "acct-alice"}, storage.Page{})
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if len(byOwner) != 2 {
		t.Fatalf("owner matches = %d, want 2", len(byOwner))
	}

	byStatus, err := store.ListProperties(context.Background(), storage.PropertyFilter{Status: property.StatusPendingTransfer}, storage.Page{})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(byStatus) != 2 {
		t.Fatalf("status matches = %d, want 2", len(byStatus))
	}

	byLocation, err := store.ListProperties(context.Background(), storage.PropertyFilter{LocationContains: "North"}, storage.Page{})
	if err != nil {
		t.Fatalf("list by location: %v", err)
	}
	if len(byLocation) != 2 {
		t.Fatalf("location matches = %d, want 2", len(byLocation))
	}

	limited, err := store.ListProperties(context.Background(), storage.PropertyFilter{}, storage.Page{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("list with page: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != 2 {
		t.Fatalf("page = %v, want ids 2,3", limited)
	}
}

func TestPutGetTransferRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)
	approval := now.Add(time.Hour)
	resolved := approval.Add(2 * 24 * time.Hour)
	input := transfer.Request{
		ID:              11,
		PropertyID:      7,
		From:            "acct-alice",
		To:              "acct-bob",
		Price:           300000,
		RequestDate:     now,
		Status:          transfer.StatusRejected,
		ApprovedBy:      "acct-inspector",
		ApprovalDate:    &approval,
		RejectionReason: "fraudulent deed",
		Dispute: &transfer.DisputeDetails{
			HasDispute:    true,
			DisputeDate:   approval.Add(24 * time.Hour),
			DisputeReason: "fraudulent deed",
			Resolution:    "fraudulent deed",
			ResolvedDate:  &resolved,
		},
		CreatedAt: now,
		UpdatedAt: resolved,
	}
	if err := store.PutTransfer(context.Background(), input); err != nil {
		t.Fatalf("put transfer: %v", err)
	}

	got, err := store.GetTransfer(context.Background(), 11)
	if err != nil {
		t.Fatalf("get transfer: %v", err)
	}
	if got.Status != transfer.StatusRejected {
		t.Fatalf("status = %v, want rejected", got.Status)
	}
	if got.ApprovalDate == nil || !got.ApprovalDate.Equal(approval) {
		t.Fatalf("approval date = %v, want %v", got.ApprovalDate, approval)
	}
	if got.Dispute == nil || !got.Dispute.HasDispute {
		t.Fatal("expected dispute details")
	}
	if got.Dispute.ResolvedDate == nil || !got.Dispute.ResolvedDate.Equal(resolved) {
		t.Fatalf("resolved date = %v, want %v", got.Dispute.ResolvedDate, resolved)
	}
	if got.Completion != nil {
		t.Fatal("expected no completion details")
	}
}

func TestPutTransferCompletionDetails(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)
	approval := now.Add(time.Hour)
	input := transfer.Request{
		ID:           12,
		PropertyID:   7,
		From:         "acct-alice",
		To:           "acct-bob",
		Price:        300000,
		RequestDate:  now,
		Status:       transfer.StatusCompleted,
		ApprovedBy:   "acct-inspector",
		ApprovalDate: &approval,
		Completion: &transfer.CompletionDetails{
			TxRef:          "0xbeef",
			CompletionDate: approval.Add(transfer.WaitingPeriod),
			ExecutedBy:     "acct-alice",
		},
		CreatedAt: now,
		UpdatedAt: approval.Add(transfer.WaitingPeriod),
	}
	if err := store.PutTransfer(context.Background(), input); err != nil {
		t.Fatalf("put transfer: %v", err)
	}

	got, err := store.GetTransfer(context.Background(), 12)
	if err != nil {
		t.Fatalf("get transfer: %v", err)
	}
	if got.Completion == nil || got.Completion.TxRef != "0xbeef" {
		t.Fatalf("completion = %+v, want tx ref 0xbeef", got.Completion)
	}
}

func TestListTransfersFilters(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)
	seed := []transfer.Request{
		{ID: 1, PropertyID: 7, From: "acct-alice", To: "acct-bob", Price: 1, RequestDate: now, Status: transfer.StatusPending, CreatedAt: now, UpdatedAt: now},
		{ID: 2, PropertyID: 8, From: "acct-bob", To: "acct-carol", Price: 1, RequestDate: now, Status: transfer.StatusApproved, CreatedAt: now, UpdatedAt: now},
		{ID: 3, PropertyID: 7, From: "acct-carol", To: "acct-alice", Price: 1, RequestDate: now, Status: transfer.StatusPending, CreatedAt: now, UpdatedAt: now},
	}
	for _, r := range seed {
		if err := store.PutTransfer(context.Background(), r); err != nil {
			t.Fatalf("seed transfer %d: %v", r.ID, err)
		}
	}

	byProperty, err := store.ListTransfers(context.Background(), storage.TransferFilter{PropertyID: 7}, storage.Page{})
	if err != nil {
		t.Fatalf("list by property: %v", err)
	}
	if len(byProperty) != 2 {
		t.Fatalf("property matches = %d, want 2", len(byProperty))
	}

	byParticipant, err := store.ListTransfers(context.Background(), storage.TransferFilter{Participant: "acct-alice"}, storage.Page{})
	if err != nil {
		t.Fatalf("list by participant: %v", err)
	}
	if len(byParticipant) != 2 {
		t.Fatalf("participant matches = %d, want 2", len(byParticipant))
	}

	byStatus, err := store.ListTransfers(context.Background(), storage.TransferFilter{Status: transfer.StatusApproved}, storage.Page{})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != 2 {
		t.Fatalf("status matches = %v, want request 2", byStatus)
	}
}

func TestMarkAppliedIsIdempotentGuard(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC)
	id := "0x01:TransferApproved:7:11"
	if err := store.MarkApplied(context.Background(), id, now); err != nil {
		t.Fatalf("mark applied: %v", err)
	}

	applied, err := store.WasApplied(context.Background(), id)
	if err != nil {
		t.Fatalf("was applied: %v", err)
	}
	if !applied {
		t.Fatal("expected event to be marked applied")
	}

	err = store.MarkApplied(context.Background(), id, now.Add(time.Minute))
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate mark error = %v, want %v", err, storage.ErrAlreadyExists)
	}

	applied, err = store.WasApplied(context.Background(), "0x02:TransferApproved:7:11")
	if err != nil {
		t.Fatalf("was applied: %v", err)
	}
	if applied {
		t.Fatal("expected unknown event to be unapplied")
	}
}

func TestParkListRemoveParkedEvent(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC)
	evt := event.Event{
		Type:        event.TypeTransferApproved,
		TxRef:       "0xfeed",
		Timestamp:   now,
		PropertyID:  7,
		RequestID:   11,
		PayloadJSON: []byte(`{"approvedBy":"acct-inspector"}`),
	}
	parked := storage.ParkedEvent{Event: evt, Reason: "transfer request 11 missing from mirror", ParkedAt: now, Attempts: 1}
	if err := store.Park(context.Background(), parked); err != nil {
		t.Fatalf("park event: %v", err)
	}

	// Reparking the same event bumps attempts instead of duplicating.
	if err := store.Park(context.Background(), parked); err != nil {
		t.Fatalf("repark event: %v", err)
	}

	entries, err := store.ListParked(context.Background(), storage.Page{})
	if err != nil {
		t.Fatalf("list parked: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("parked entries = %d, want 1", len(entries))
	}
	if entries[0].Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", entries[0].Attempts)
	}
	if entries[0].Event.ID() != evt.ID() {
		t.Fatalf("event id = %q, want %q", entries[0].Event.ID(), evt.ID())
	}
	if string(entries[0].Event.PayloadJSON) != string(evt.PayloadJSON) {
		t.Fatalf("payload = %s, want %s", entries[0].Event.PayloadJSON, evt.PayloadJSON)
	}

	if err := store.RemoveParked(context.Background(), evt.ID()); err != nil {
		t.Fatalf("remove parked: %v", err)
	}
	err = store.RemoveParked(context.Background(), evt.ID())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second remove error = %v, want %v", err, storage.ErrNotFound)
	}
}
