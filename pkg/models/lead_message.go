package models

import "time"

// Lead lifecycle event types carried on the Kafka topics
const (
	EventLeadCreated  = "lead.created"
	EventLeadUpdated  = "lead.updated"
	EventLeadMerged   = "lead.merged"
	EventLeadAbsorbed = "lead.absorbed"
	EventLeadDeleted  = "lead.deleted"
)

// LeadMessage represents an incoming lead lifecycle message from the CRM
type LeadMessage struct {
	EventType string         `json:"event_type"`
	TenantID  string         `json:"tenant_id"`
	LeadID    string         `json:"lead_id"`
	Source    string         `json:"source,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}
