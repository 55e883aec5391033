package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlesng35/rosterd/pkg/logger"
)

// Record logs the supplied entry while tolerating audit failures. A nil
// service discards the entry.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	if s == nil {
		return
	}
	if err := s.Log(ctx, entry); err != nil {
		logger.WithModule("audit").Warn("audit entry dropped",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}

// recordAudit logs the supplied entry while tolerating audit failures.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	audit.Record(ctx, entry)
}
