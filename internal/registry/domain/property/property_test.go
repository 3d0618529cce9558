package property

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/terrachain/registry/internal/platform/errors"
)

var validInput = RegistrationInput{
	Location:    "12 Harbor Lane",
	Coordinates: "43.6532,-79.3832",
	Area:        100,
	Value:       5,
	DocumentRef: "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
}

func TestNormalizeRegistrationInputValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*RegistrationInput)
		want   error
	}{
		{"empty location", func(in *RegistrationInput) { in.Location = "  " }, ErrEmptyLocation},
		{"empty coordinates", func(in *RegistrationInput) { in.Coordinates = "" }, ErrEmptyCoordinates},
		{"zero area", func(in *RegistrationInput) { in.Area = 0 }, ErrInvalidArea},
		{"negative area", func(in *RegistrationInput) { in.Area = -10 }, ErrInvalidArea},
		{"zero value", func(in *RegistrationInput) { in.Value = 0 }, ErrInvalidValue},
		{"empty document ref", func(in *RegistrationInput) { in.DocumentRef = "" }, ErrEmptyDocumentRef},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			input := validInput
			tc.mutate(&input)
			if _, err := NormalizeRegistrationInput(input); !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestApplyRegisteredStartsAvailableAndUnverified(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	p, err := ApplyRegistered(1, validInput, "0xowner", at)
	if err != nil {
		t.Fatalf("apply registered: %v", err)
	}
	if p.Status != StatusAvailable {
		t.Fatalf("status = %s, want AVAILABLE", StatusLabel(p.Status))
	}
	if p.Verified {
		t.Fatal("expected new property to be unverified")
	}
	if p.Owner != "0xowner" {
		t.Fatalf("owner = %q, want %q", p.Owner, "0xowner")
	}
	if len(p.TransferHistory) != 0 {
		t.Fatalf("history length = %d, want 0", len(p.TransferHistory))
	}
}

func TestBeginTransferRequiresAvailable(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	p, err := ApplyRegistered(1, validInput, "0xowner", at)
	if err != nil {
		t.Fatalf("apply registered: %v", err)
	}

	pending, err := BeginTransfer(p, at.Add(time.Hour))
	if err != nil {
		t.Fatalf("begin transfer: %v", err)
	}
	if pending.Status != StatusPendingTransfer {
		t.Fatalf("status = %s, want PENDING_TRANSFER", StatusLabel(pending.Status))
	}

	if _, err := BeginTransfer(pending, at.Add(2*time.Hour)); apperrors.CodeOf(err) != apperrors.CodePropertyNotAvailable {
		t.Fatalf("second begin error = %v, want PROPERTY_NOT_AVAILABLE", err)
	}
}

func TestCompleteTransferMovesOwnershipAndAppendsHistory(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	p, err := ApplyRegistered(1, validInput, "0xowner", at)
	if err != nil {
		t.Fatalf("apply registered: %v", err)
	}
	pending, err := BeginTransfer(p, at)
	if err != nil {
		t.Fatalf("begin transfer: %v", err)
	}

	record := TransferRecord{
		From:  "0xowner",
		To:    "0xbuyer",
		Date:  at.Add(10 * 24 * time.Hour),
		Price: 4.5,
		TxRef: "0xdeadbeef",
	}
	done, err := CompleteTransfer(pending, record, record.Date)
	if err != nil {
		t.Fatalf("complete transfer: %v", err)
	}
	if done.Owner != "0xbuyer" {
		t.Fatalf("owner = %q, want buyer", done.Owner)
	}
	if done.Status != StatusAvailable {
		t.Fatalf("status = %s, want AVAILABLE", StatusLabel(done.Status))
	}
	if len(done.TransferHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(done.TransferHistory))
	}
	if len(pending.TransferHistory) != 0 {
		t.Fatal("expected original aggregate history to be untouched")
	}

	if _, err := CompleteTransfer(done, record, record.Date); apperrors.CodeOf(err) != apperrors.CodePropertyStatusDisallowsOp {
		t.Fatalf("complete on available property error = %v, want PROPERTY_STATUS_DISALLOWS_OPERATION", err)
	}
}

func TestStatusLabelRoundTrip(t *testing.T) {
	t.Parallel()

	for _, status := range []Status{StatusAvailable, StatusPendingTransfer, StatusLocked} {
		parsed, err := StatusFromLabel(StatusLabel(status))
		if err != nil {
			t.Fatalf("parse %s: %v", StatusLabel(status), err)
		}
		if parsed != status {
			t.Fatalf("round trip %s = %s", StatusLabel(status), StatusLabel(parsed))
		}
	}
	if _, err := StatusFromLabel("bogus"); err == nil {
		t.Fatal("expected parse error for unknown label")
	}
}
