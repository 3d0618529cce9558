package ledgertest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/terrachain/registry/internal/registry/domain/event"
	"github.com/terrachain/registry/internal/registry/ledger"
)

func TestQueryStateReportsChainState(t *testing.T) {
	t.Parallel()

	led := New(time.Date(2026, time.May, 1, 12, 0, 0, 0, time.UTC))
	led.GrantRole("acct-inspector", ledger.RoleInspector)
	ctx := context.Background()

	confirm := func(action ledger.Action, params, signer string) event.Event {
		t.Helper()
		tx, err := led.Submit(ctx, action, ledger.Args{params}, signer)
		if err != nil {
			t.Fatalf("submit %s: %v", action, err)
		}
		evt, err := led.AwaitConfirmation(ctx, tx)
		if err != nil {
			t.Fatalf("confirm %s: %v", action, err)
		}
		return evt
	}

	registered := confirm(ledger.ActionRegisterProperty,
		`{"location":"1 Main Street","coordinates":"0,0","area":1,"value":1,"documentRef":"d"}`,
		"acct-alice")
	requested := confirm(ledger.ActionInitiateTransfer,
		fmt.Sprintf(`{"propertyId":%d,"to":"acct-bob","price":100}`, registered.PropertyID),
		"acct-alice")
	confirm(ledger.ActionApproveTransfer,
		fmt.Sprintf(`{"requestId":%d}`, requested.RequestID), "acct-inspector")
	confirm(ledger.ActionRaiseDispute,
		fmt.Sprintf(`{"requestId":%d,"reason":"boundary mismatch"}`, requested.RequestID),
		"acct-carol")

	raw, err := led.QueryState(ctx, "GetTransferRequest",
		ledger.Args{fmt.Sprintf(`{"requestId":%d}`, requested.RequestID)})
	if err != nil {
		t.Fatalf("query transfer request: %v", err)
	}
	var req struct {
		Status   string `json:"status"`
		To       string `json:"to"`
		Disputed bool   `json:"disputed"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatalf("decode transfer request view: %v", err)
	}
	if req.Status != "approved" || req.To != "acct-bob" {
		t.Fatalf("request view = %+v, want approved to acct-bob", req)
	}
	if !req.Disputed {
		t.Fatal("expected disputed flag after raised dispute")
	}

	raw, err = led.QueryState(ctx, "GetProperty",
		ledger.Args{fmt.Sprintf(`{"propertyId":%d}`, registered.PropertyID)})
	if err != nil {
		t.Fatalf("query property: %v", err)
	}
	var prop struct {
		Owner   string `json:"owner"`
		Pending bool   `json:"pending"`
	}
	if err := json.Unmarshal(raw, &prop); err != nil {
		t.Fatalf("decode property view: %v", err)
	}
	if prop.Owner != "acct-alice" {
		t.Fatalf("owner = %q, want acct-alice", prop.Owner)
	}
	if !prop.Pending {
		t.Fatal("expected property pending during active request")
	}

	if _, err := led.QueryState(ctx, "GetLien", ledger.Args{`{}`}); err == nil {
		t.Fatal("expected unknown view to be rejected")
	}
}
