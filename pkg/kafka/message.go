package kafka

import (
	"encoding/json"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	LeadMessage *models.LeadMessage
}

// ParseLeadMessage parses the message value as a lead lifecycle message
func (m *IncomingMessage) ParseLeadMessage() error {
	var msg models.LeadMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return err
	}
	m.LeadMessage = &msg
	return nil
}

// GetTenantID returns the tenant ID from the lead message
func (m *IncomingMessage) GetTenantID() string {
	if m.LeadMessage != nil && m.LeadMessage.TenantID != "" {
		return m.LeadMessage.TenantID
	}
	// Fallback to header
	return m.Headers["tenant_id"]
}

// GetEventType returns the lead lifecycle event type
func (m *IncomingMessage) GetEventType() string {
	if m.LeadMessage != nil && m.LeadMessage.EventType != "" {
		return m.LeadMessage.EventType
	}
	return m.Headers["event_type"]
}

// GetLeadID returns the lead the message is about
func (m *IncomingMessage) GetLeadID() string {
	if m.LeadMessage != nil && m.LeadMessage.LeadID != "" {
		return m.LeadMessage.LeadID
	}
	return m.Key
}
