package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/terrachain/registry/internal/registry/domain/transfer"
	"github.com/terrachain/registry/internal/registry/storage"
)

// PutTransfer inserts or replaces one mirrored transfer request.
func (s *Store) PutTransfer(ctx context.Context, r transfer.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if r.ID == 0 {
		return fmt.Errorf("transfer request id is required")
	}

	var (
		hasDispute        int
		disputeDate       sql.NullInt64
		disputeReason     string
		disputeResolution string
		disputeResolved   sql.NullInt64
	)
	if r.Dispute != nil {
		hasDispute = boolToInt(r.Dispute.HasDispute)
		disputeDate = sql.NullInt64{Int64: toMillis(r.Dispute.DisputeDate), Valid: true}
		disputeReason = r.Dispute.DisputeReason
		disputeResolution = r.Dispute.Resolution
		disputeResolved = toNullMillis(r.Dispute.ResolvedDate)
	}
	var (
		completionTxRef string
		completionDate  sql.NullInt64
		executedBy      string
	)
	if r.Completion != nil {
		completionTxRef = r.Completion.TxRef
		completionDate = sql.NullInt64{Int64: toMillis(r.Completion.CompletionDate), Valid: true}
		executedBy = r.Completion.ExecutedBy
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO transfer_requests (
		   id, property_id, from_account, to_account, price, request_date, status,
		   approved_by, approval_date, rejection_reason,
		   has_dispute, dispute_date, dispute_reason, dispute_resolution, dispute_resolved,
		   completion_tx_ref, completion_date, executed_by,
		   created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   property_id = excluded.property_id,
		   from_account = excluded.from_account,
		   to_account = excluded.to_account,
		   price = excluded.price,
		   request_date = excluded.request_date,
		   status = excluded.status,
		   approved_by = excluded.approved_by,
		   approval_date = excluded.approval_date,
		   rejection_reason = excluded.rejection_reason,
		   has_dispute = excluded.has_dispute,
		   dispute_date = excluded.dispute_date,
		   dispute_reason = excluded.dispute_reason,
		   dispute_resolution = excluded.dispute_resolution,
		   dispute_resolved = excluded.dispute_resolved,
		   completion_tx_ref = excluded.completion_tx_ref,
		   completion_date = excluded.completion_date,
		   executed_by = excluded.executed_by,
		   updated_at = excluded.updated_at`,
		r.ID,
		r.PropertyID,
		r.From,
		r.To,
		r.Price,
		toMillis(r.RequestDate),
		int(r.Status),
		r.ApprovedBy,
		toNullMillis(r.ApprovalDate),
		r.RejectionReason,
		hasDispute,
		disputeDate,
		disputeReason,
		disputeResolution,
		disputeResolved,
		completionTxRef,
		completionDate,
		executedBy,
		toMillis(r.CreatedAt),
		toMillis(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put transfer request: %w", err)
	}
	return nil
}

// GetTransfer returns one mirrored transfer request by chain-assigned id.
func (s *Store) GetTransfer(ctx context.Context, id uint64) (transfer.Request, error) {
	if err := ctx.Err(); err != nil {
		return transfer.Request{}, err
	}
	if s == nil || s.sqlDB == nil {
		return transfer.Request{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, property_id, from_account, to_account, price, request_date, status,
		        approved_by, approval_date, rejection_reason,
		        has_dispute, dispute_date, dispute_reason, dispute_resolution, dispute_resolved,
		        completion_tx_ref, completion_date, executed_by,
		        created_at, updated_at
		   FROM transfer_requests
		  WHERE id = ?`,
		id,
	)
	r, err := scanTransfer(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return transfer.Request{}, storage.ErrNotFound
		}
		return transfer.Request{}, fmt.Errorf("get transfer request: %w", err)
	}
	return r, nil
}

// ListTransfers returns mirrored transfer requests matching the filter,
// ordered by id.
func (s *Store) ListTransfers(ctx context.Context, filter storage.TransferFilter, page storage.Page) ([]transfer.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `SELECT id, property_id, from_account, to_account, price, request_date, status,
	                 approved_by, approval_date, rejection_reason,
	                 has_dispute, dispute_date, dispute_reason, dispute_resolution, dispute_resolved,
	                 completion_tx_ref, completion_date, executed_by,
	                 created_at, updated_at
	            FROM transfer_requests`
	var clauses []string
	var args []any
	if filter.PropertyID != 0 {
		clauses = append(clauses, "property_id = ?")
		args = append(args, filter.PropertyID)
	}
	if participant := strings.TrimSpace(filter.Participant); participant != "" {
		clauses = append(clauses, "(from_account = ? OR to_account = ?)")
		args = append(args, participant, participant)
	}
	if filter.Status != transfer.StatusUnspecified {
		clauses = append(clauses, "status = ?")
		args = append(args, int(filter.Status))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id ASC"
	if page.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, page.Limit, page.Offset)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfer requests: %w", err)
	}
	defer rows.Close()

	var requests []transfer.Request
	for rows.Next() {
		r, err := scanTransfer(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list transfer requests: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transfer requests: %w", err)
	}
	return requests, nil
}

func scanTransfer(scan func(...any) error) (transfer.Request, error) {
	var r transfer.Request
	var status int
	var requestDate int64
	var approvalDate sql.NullInt64
	var hasDispute int
	var disputeDate sql.NullInt64
	var disputeReason string
	var disputeResolution string
	var disputeResolved sql.NullInt64
	var completionTxRef string
	var completionDate sql.NullInt64
	var executedBy string
	var createdAt int64
	var updatedAt int64
	err := scan(
		&r.ID,
		&r.PropertyID,
		&r.From,
		&r.To,
		&r.Price,
		&requestDate,
		&status,
		&r.ApprovedBy,
		&approvalDate,
		&r.RejectionReason,
		&hasDispute,
		&disputeDate,
		&disputeReason,
		&disputeResolution,
		&disputeResolved,
		&completionTxRef,
		&completionDate,
		&executedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return transfer.Request{}, err
	}
	r.RequestDate = fromMillis(requestDate)
	r.Status = transfer.Status(status)
	r.ApprovalDate = fromNullMillis(approvalDate)
	if disputeDate.Valid {
		r.Dispute = &transfer.DisputeDetails{
			HasDispute:    hasDispute != 0,
			DisputeDate:   fromMillis(disputeDate.Int64),
			DisputeReason: disputeReason,
			Resolution:    disputeResolution,
			ResolvedDate:  fromNullMillis(disputeResolved),
		}
	}
	if completionDate.Valid {
		r.Completion = &transfer.CompletionDetails{
			TxRef:          completionTxRef,
			CompletionDate: fromMillis(completionDate.Int64),
			ExecutedBy:     executedBy,
		}
	}
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	return r, nil
}
