package dedup

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
)

// HandleMessage is the kafka.MessageHandler for the lead-events input topic.
// lead.created runs the online dedup path; everything else is ignored.
func (s *Service) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	tenantID := msg.GetTenantID()
	if tenantID == "" {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"topic":  msg.Topic,
			"offset": msg.Offset,
		}).Warn("Dropping lead message without tenant id")
		return nil
	}

	switch msg.GetEventType() {
	case models.EventLeadCreated:
		_, err := s.ProcessLead(ctx, tenantID, msg.GetLeadID())
		return err
	default:
		return nil
	}
}
