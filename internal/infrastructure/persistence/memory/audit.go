package memory

import (
	"context"

	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
	"github.com/schoolpulse/assessment-hub/internal/domain/upload"
)

// Append implements upload.AuditLog.
func (s *Store) Append(ctx context.Context, entry *upload.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	s.audit = append(s.audit, &cp)
	return nil
}

// List implements upload.AuditLog.
func (s *Store) List(ctx context.Context, limit int) ([]*upload.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := shared.Limit(limit).Int()
	out := make([]*upload.AuditEntry, 0, n)
	for i := len(s.audit) - 1; i >= 0 && len(out) < n; i-- {
		cp := *s.audit[i]
		out = append(out, &cp)
	}
	return out, nil
}
