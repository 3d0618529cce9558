package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Payload field names follow the contract's JSON event encoding.

// PropertyRegisteredPayload carries the registration details.
type PropertyRegisteredPayload struct {
	Location     string  `json:"location"`
	Coordinates  string  `json:"coordinates"`
	Area         float64 `json:"area"`
	Value        float64 `json:"value"`
	Owner        string  `json:"owner"`
	DocumentRef  string  `json:"documentRef"`
	PropertyType string  `json:"propertyType,omitempty"`
	YearBuilt    int     `json:"yearBuilt,omitempty"`
	Zoning       string  `json:"zoning,omitempty"`
}

// PropertyVerifiedPayload identifies the verifying inspector.
type PropertyVerifiedPayload struct {
	VerifiedBy string `json:"verifiedBy"`
}

// TransferRequestedPayload carries the new request details.
type TransferRequestedPayload struct {
	From  string  `json:"from"`
	To    string  `json:"to"`
	Price float64 `json:"price"`
}

// TransferApprovedPayload identifies the approving inspector.
type TransferApprovedPayload struct {
	ApprovedBy string `json:"approvedBy"`
}

// TransferRejectedPayload carries the rejection reason.
type TransferRejectedPayload struct {
	RejectedBy string `json:"rejectedBy"`
	Reason     string `json:"reason"`
}

// TransferExecutedPayload identifies the executing account.
type TransferExecutedPayload struct {
	ExecutedBy string `json:"executedBy"`
}

// TransferCancelledPayload identifies the cancelling account.
type TransferCancelledPayload struct {
	CancelledBy string `json:"cancelledBy"`
}

// DisputeRaisedPayload carries the dispute details.
type DisputeRaisedPayload struct {
	RaisedBy string `json:"raisedBy"`
	Reason   string `json:"reason"`
}

// DecodePayload unmarshals the event payload into target, which must be the
// payload struct matching the event type.
func DecodePayload(evt Event, target any) error {
	if len(evt.PayloadJSON) == 0 {
		return fmt.Errorf("event %s has no payload", evt.Type)
	}
	if err := json.Unmarshal(evt.PayloadJSON, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	return nil
}

// envelope is the wire encoding of a confirmed event as emitted by the
// registry contract and by submit-transaction responses.
type envelope struct {
	Type       string          `json:"type"`
	TxRef      string          `json:"txRef"`
	Timestamp  int64           `json:"timestamp"`
	PropertyID uint64          `json:"propertyId"`
	RequestID  uint64          `json:"requestId,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// Decode parses a wire-encoded confirmed event. Timestamps are contract-side
// block timestamps in Unix milliseconds.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("decode event envelope: %w", err)
	}
	evt := Event{
		Type:        Type(env.Type),
		TxRef:       env.TxRef,
		Timestamp:   time.UnixMilli(env.Timestamp).UTC(),
		PropertyID:  env.PropertyID,
		RequestID:   env.RequestID,
		PayloadJSON: []byte(env.Payload),
	}
	if env.Timestamp == 0 {
		evt.Timestamp = time.Time{}
	}
	if err := evt.Validate(); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// Encode renders an event in the contract's wire encoding. Exposed for ledger
// fakes and replay tooling.
func Encode(evt Event) ([]byte, error) {
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Type:       string(evt.Type),
		TxRef:      evt.TxRef,
		Timestamp:  evt.Timestamp.UTC().UnixMilli(),
		PropertyID: evt.PropertyID,
		RequestID:  evt.RequestID,
		Payload:    json.RawMessage(evt.PayloadJSON),
	})
}
