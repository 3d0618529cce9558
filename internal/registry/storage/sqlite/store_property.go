package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/terrachain/registry/internal/registry/domain/property"
	"github.com/terrachain/registry/internal/registry/storage"
)

// historyRecord is the JSON encoding of one completed transfer.
type historyRecord struct {
	From  string  `json:"from"`
	To    string  `json:"to"`
	Date  int64   `json:"date"`
	Price float64 `json:"price"`
	TxRef string  `json:"txRef"`
}

func encodeHistory(records []property.TransferRecord) (string, error) {
	encoded := make([]historyRecord, 0, len(records))
	for _, record := range records {
		encoded = append(encoded, historyRecord{
			From:  record.From,
			To:    record.To,
			Date:  toMillis(record.Date),
			Price: record.Price,
			TxRef: record.TxRef,
		})
	}
	raw, err := json.Marshal(encoded)
	if err != nil {
		return "", fmt.Errorf("encode transfer history: %w", err)
	}
	return string(raw), nil
}

func decodeHistory(raw string) ([]property.TransferRecord, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var encoded []historyRecord
	if err := json.Unmarshal([]byte(raw), &encoded); err != nil {
		return nil, fmt.Errorf("decode transfer history: %w", err)
	}
	if len(encoded) == 0 {
		return nil, nil
	}
	records := make([]property.TransferRecord, 0, len(encoded))
	for _, record := range encoded {
		records = append(records, property.TransferRecord{
			From:  record.From,
			To:    record.To,
			Date:  fromMillis(record.Date),
			Price: record.Price,
			TxRef: record.TxRef,
		})
	}
	return records, nil
}

// PutProperty inserts or replaces one mirrored property.
func (s *Store) PutProperty(ctx context.Context, p property.Property) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if p.ID == 0 {
		return fmt.Errorf("property id is required")
	}
	history, err := encodeHistory(p.TransferHistory)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO properties (
		   id, location, coordinates, area, value, owner, status, verified,
		   document_ref, property_type, year_built, zoning, transfer_history,
		   created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   location = excluded.location,
		   coordinates = excluded.coordinates,
		   area = excluded.area,
		   value = excluded.value,
		   owner = excluded.owner,
		   status = excluded.status,
		   verified = excluded.verified,
		   document_ref = excluded.document_ref,
		   property_type = excluded.property_type,
		   year_built = excluded.year_built,
		   zoning = excluded.zoning,
		   transfer_history = excluded.transfer_history,
		   updated_at = excluded.updated_at`,
		p.ID,
		p.Location,
		p.Coordinates,
		p.Area,
		p.Value,
		p.Owner,
		int(p.Status),
		boolToInt(p.Verified),
		p.DocumentRef,
		p.Metadata.PropertyType,
		p.Metadata.YearBuilt,
		p.Metadata.Zoning,
		history,
		toMillis(p.CreatedAt),
		toMillis(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put property: %w", err)
	}
	return nil
}

// GetProperty returns one mirrored property by chain-assigned id.
func (s *Store) GetProperty(ctx context.Context, id uint64) (property.Property, error) {
	if err := ctx.Err(); err != nil {
		return property.Property{}, err
	}
	if s == nil || s.sqlDB == nil {
		return property.Property{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, location, coordinates, area, value, owner, status, verified,
		        document_ref, property_type, year_built, zoning, transfer_history,
		        created_at, updated_at
		   FROM properties
		  WHERE id = ?`,
		id,
	)
	p, err := scanProperty(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return property.Property{}, storage.ErrNotFound
		}
		return property.Property{}, fmt.Errorf("get property: %w", err)
	}
	return p, nil
}

// ListProperties returns mirrored properties matching the filter, ordered by id.
func (s *Store) ListProperties(ctx context.Context, filter storage.PropertyFilter, page storage.Page) ([]property.Property, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `SELECT id, location, coordinates, area, value, owner, status, verified,
	                 document_ref, property_type, year_built, zoning, transfer_history,
	                 created_at, updated_at
	            FROM properties`
	var clauses []string
	var args []any
	if owner := strings.TrimSpace(filter.Owner); owner != "" {
		clauses = append(clauses, "owner = ?")
		args = append(args, owner)
	}
	if filter.Status != property.StatusUnspecified {
		clauses = append(clauses, "status = ?")
		args = append(args, int(filter.Status))
	}
	if fragment := strings.TrimSpace(filter.LocationContains); fragment != "" {
		clauses = append(clauses, "location LIKE ?")
		args = append(args, "%"+fragment+"%")
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
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	var properties []property.Property
	for rows.Next() {
		p, err := scanProperty(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list properties: %w", err)
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	return properties, nil
}

func scanProperty(scan func(...any) error) (property.Property, error) {
	var p property.Property
	var status int
	var verified int
	var history string
	var createdAt int64
	var updatedAt int64
	err := scan(
		&p.ID,
		&p.Location,
		&p.Coordinates,
		&p.Area,
		&p.Value,
		&p.Owner,
		&status,
		&verified,
		&p.DocumentRef,
		&p.Metadata.PropertyType,
		&p.Metadata.YearBuilt,
		&p.Metadata.Zoning,
		&history,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return property.Property{}, err
	}
	p.Status = property.Status(status)
	p.Verified = verified != 0
	p.TransferHistory, err = decodeHistory(history)
	if err != nil {
		return property.Property{}, err
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
