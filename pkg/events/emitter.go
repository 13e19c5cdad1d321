// Package events handles event emission for lead lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes dedup audit events
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitLeadMerged emits a lead.merged event for the survivor, carrying the
// reconciled record and which lead was absorbed
func (e *Emitter) EmitLeadMerged(ctx context.Context, survivor *models.Lead, absorbedID string, matchType models.MatchType) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitLeadMerged")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"lead":           survivor,
		"merge_count":    len(survivor.MergeHistory),
	})

	event := &kafka.LeadEvent{
		EventType:      models.EventLeadMerged,
		TenantID:       survivor.TenantID,
		LeadID:         survivor.ID,
		AbsorbedLeadID: absorbedID,
		MatchType:      string(matchType),
		Data:           data,
	}

	if err := e.producer.PublishLeadEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit lead.merged event")
		return err
	}

	return nil
}

// EmitLeadDeleted emits a lead.deleted event for a lead removed by the
// duplicate cleanup sweep
func (e *Emitter) EmitLeadDeleted(ctx context.Context, tenantID, leadID, keptLeadID string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitLeadDeleted")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"kept_lead_id":   keptLeadID,
	})

	event := &kafka.LeadEvent{
		EventType: models.EventLeadDeleted,
		TenantID:  tenantID,
		LeadID:    leadID,
		Data:      data,
	}

	if err := e.producer.PublishLeadEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit lead.deleted event")
		return err
	}

	return nil
}
