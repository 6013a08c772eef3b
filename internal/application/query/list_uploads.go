package query

import (
	"context"

	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
	"github.com/schoolpulse/assessment-hub/internal/domain/upload"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST UPLOADS QUERY
// Recent upload attempts from the audit log, newest first.
// ══════════════════════════════════════════════════════════════════════════════

// ListUploadsQuery pages the audit log.
type ListUploadsQuery struct {
	// Limit defaults to 20 and is capped at 100.
	Limit int
}

// ListUploadsResult holds the entries.
type ListUploadsResult struct {
	Uploads []*upload.AuditEntry `json:"uploads"`
}

// ListUploadsHandler handles ListUploadsQuery.
type ListUploadsHandler struct {
	audit upload.AuditLog
}

// NewListUploadsHandler creates the handler.
func NewListUploadsHandler(audit upload.AuditLog) *ListUploadsHandler {
	return &ListUploadsHandler{audit: audit}
}

// Handle runs the query.
func (h *ListUploadsHandler) Handle(ctx context.Context, q ListUploadsQuery) (*ListUploadsResult, error) {
	if q.Limit < 0 {
		return nil, validationError("ListUploads", "limit cannot be negative")
	}

	entries, err := h.audit.List(ctx, shared.Limit(q.Limit).Int())
	if err != nil {
		return nil, shared.WrapError("query", "ListUploads", shared.ErrPersistence, "failed to list uploads", err)
	}
	if entries == nil {
		entries = []*upload.AuditEntry{}
	}
	return &ListUploadsResult{Uploads: entries}, nil
}
