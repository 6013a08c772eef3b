package upload

import (
	"context"
	"strings"
	"time"
)

// MaxErrorTextLength bounds the error text stored with an audit entry.
const MaxErrorTextLength = 8000

// AuditEntry records one upload attempt, successful or not.
type AuditEntry struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Filename       string    `json:"filename"`
	SizeBytes      int64     `json:"sizeBytes"`
	Checksum       string    `json:"checksum"`
	RowCount       int       `json:"rowCount"`
	ProcessedCount int       `json:"processedCount"`
	UnmatchedCount int       `json:"unmatchedCount"`
	Status         Status    `json:"status"`
	ErrorText      string    `json:"errorText,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AuditEntry builds the audit record for the batch in its current state.
func (b *Batch) AuditEntry(now time.Time) *AuditEntry {
	return &AuditEntry{
		ID:             b.ID,
		UserID:         b.UserID,
		Filename:       b.Filename,
		SizeBytes:      b.SizeBytes,
		Checksum:       b.Checksum,
		RowCount:       b.rowCount,
		ProcessedCount: b.processed,
		UnmatchedCount: len(b.unmatched),
		Status:         b.Status(),
		ErrorText:      truncate(strings.Join(b.errors, "\n"), MaxErrorTextLength),
		CreatedAt:      now,
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	// Do not split a multi-byte rune.
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "…"
}

// AuditLog is the append-only trail of upload attempts.
type AuditLog interface {
	// Append stores an entry.
	Append(ctx context.Context, entry *AuditEntry) error

	// List returns the most recent entries, newest first.
	List(ctx context.Context, limit int) ([]*AuditEntry, error)
}
