package httpapi

import (
	"time"

	"github.com/terrachain/registry/internal/registry/domain/property"
	"github.com/terrachain/registry/internal/registry/domain/transfer"
)

type transferRecordView struct {
	From  string  `json:"from"`
	To    string  `json:"to"`
	Date  string  `json:"date"`
	Price float64 `json:"price"`
	TxRef string  `json:"txRef"`
}

type propertyView struct {
	ID              uint64               `json:"id"`
	Location        string               `json:"location"`
	Coordinates     string               `json:"coordinates"`
	Area            float64              `json:"area"`
	Value           float64              `json:"value"`
	Owner           string               `json:"owner"`
	Status          string               `json:"status"`
	Verified        bool                 `json:"verified"`
	DocumentRef     string               `json:"documentRef"`
	PropertyType    string               `json:"propertyType,omitempty"`
	YearBuilt       int                  `json:"yearBuilt,omitempty"`
	Zoning          string               `json:"zoning,omitempty"`
	TransferHistory []transferRecordView `json:"transferHistory"`
	CreatedAt       string               `json:"createdAt"`
	UpdatedAt       string               `json:"updatedAt"`
}

type disputeView struct {
	DisputeDate   string `json:"disputeDate"`
	DisputeReason string `json:"disputeReason"`
	Resolution    string `json:"resolution,omitempty"`
	ResolvedDate  string `json:"resolvedDate,omitempty"`
}

type completionView struct {
	TxRef          string `json:"txRef"`
	CompletionDate string `json:"completionDate"`
	ExecutedBy     string `json:"executedBy"`
}

type transferView struct {
	ID              uint64          `json:"id"`
	PropertyID      uint64          `json:"propertyId"`
	From            string          `json:"from"`
	To              string          `json:"to"`
	Price           float64         `json:"price"`
	RequestDate     string          `json:"requestDate"`
	Status          string          `json:"status"`
	ApprovedBy      string          `json:"approvedBy,omitempty"`
	ApprovalDate    string          `json:"approvalDate,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	Dispute         *disputeView    `json:"dispute,omitempty"`
	Completion      *completionView `json:"completion,omitempty"`
	CreatedAt       string          `json:"createdAt"`
	UpdatedAt       string          `json:"updatedAt"`
}

func formatTime(at time.Time) string {
	return at.UTC().Format(time.RFC3339)
}

func toPropertyView(p property.Property) propertyView {
	history := make([]transferRecordView, 0, len(p.TransferHistory))
	for _, record := range p.TransferHistory {
		history = append(history, transferRecordView{
			From:  record.From,
			To:    record.To,
			Date:  formatTime(record.Date),
			Price: record.Price,
			TxRef: record.TxRef,
		})
	}
	return propertyView{
		ID:              p.ID,
		Location:        p.Location,
		Coordinates:     p.Coordinates,
		Area:            p.Area,
		Value:           p.Value,
		Owner:           p.Owner,
		Status:          property.StatusLabel(p.Status),
		Verified:        p.Verified,
		DocumentRef:     p.DocumentRef,
		PropertyType:    p.Metadata.PropertyType,
		YearBuilt:       p.Metadata.YearBuilt,
		Zoning:          p.Metadata.Zoning,
		TransferHistory: history,
		CreatedAt:       formatTime(p.CreatedAt),
		UpdatedAt:       formatTime(p.UpdatedAt),
	}
}

func toTransferView(r transfer.Request) transferView {
	view := transferView{
		ID:              r.ID,
		PropertyID:      r.PropertyID,
		From:            r.From,
		To:              r.To,
		Price:           r.Price,
		RequestDate:     formatTime(r.RequestDate),
		Status:          transfer.StatusLabel(r.Status),
		ApprovedBy:      r.ApprovedBy,
		RejectionReason: r.RejectionReason,
		CreatedAt:       formatTime(r.CreatedAt),
		UpdatedAt:       formatTime(r.UpdatedAt),
	}
	if r.ApprovalDate != nil {
		view.ApprovalDate = formatTime(*r.ApprovalDate)
	}
	if r.Dispute != nil && r.Dispute.HasDispute {
		dispute := &disputeView{
			DisputeDate:   formatTime(r.Dispute.DisputeDate),
			DisputeReason: r.Dispute.DisputeReason,
			Resolution:    r.Dispute.Resolution,
		}
		if r.Dispute.ResolvedDate != nil {
			dispute.ResolvedDate = formatTime(*r.Dispute.ResolvedDate)
		}
		view.Dispute = dispute
	}
	if r.Completion != nil {
		view.Completion = &completionView{
			TxRef:          r.Completion.TxRef,
			CompletionDate: formatTime(r.Completion.CompletionDate),
			ExecutedBy:     r.Completion.ExecutedBy,
		}
	}
	return view
}
