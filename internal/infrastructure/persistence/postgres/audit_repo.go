package postgres

import (
	"context"
	"fmt"

	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
	"github.com/schoolpulse/assessment-hub/internal/domain/upload"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPLOAD AUDIT LOG
// ══════════════════════════════════════════════════════════════════════════════

// AuditLog implements upload.AuditLog for PostgreSQL.
type AuditLog struct {
	conn *Connection
}

// NewAuditLog creates a new AuditLog.
func NewAuditLog(conn *Connection) *AuditLog {
	return &AuditLog{conn: conn}
}

var _ upload.AuditLog = (*AuditLog)(nil)

// Append stores one finished batch. Re-appending the same upload id is a
// no-op.
func (r *AuditLog) Append(ctx context.Context, e *upload.AuditEntry) error {
	query := `
		INSERT INTO upload_audit_log (
			id, user_id, filename, size_bytes, checksum, row_count,
			processed_count, unmatched_count, status, error_text, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, NOW()))
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.conn.Exec(ctx, query,
		e.ID,
		e.UserID,
		e.Filename,
		e.SizeBytes,
		e.Checksum,
		e.RowCount,
		e.ProcessedCount,
		e.UnmatchedCount,
		string(e.Status),
		e.ErrorText,
		nullTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: append audit entry: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (r *AuditLog) List(ctx context.Context, limit int) ([]*upload.AuditEntry, error) {
	query := `
		SELECT id, user_id, filename, size_bytes, checksum, row_count,
			   processed_count, unmatched_count, status, error_text, created_at
		FROM upload_audit_log
		ORDER BY created_at DESC, id
		LIMIT $1
	`

	rows, err := r.conn.Query(ctx, query, shared.Limit(limit).Int())
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*upload.AuditEntry
	for rows.Next() {
		var e upload.AuditEntry
		var status string
		err := rows.Scan(
			&e.ID, &e.UserID, &e.Filename, &e.SizeBytes, &e.Checksum, &e.RowCount,
			&e.ProcessedCount, &e.UnmatchedCount, &status, &e.ErrorText, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan audit entry: %w", err)
		}
		e.Status = upload.Status(status)
		out = append(out, &e)
	}
	return out, rows.Err()
}
