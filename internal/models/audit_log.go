// internal/models/audit_log.go
package models

import (
	"github.com/google/uuid"
)

// AuditLog is one mutating API request. Rows are written after the response
// and never updated.
type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:100;not null;index"`
	ResourceType string     `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   *uuid.UUID `json:"resource_id" gorm:"type:uuid;index"`
	RequestBody  JSONB      `json:"request_body" gorm:"type:jsonb"`
	StatusCode   int        `json:"status_code" gorm:"index"`
	LatencyMs    int64      `json:"latency_ms"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"type:text"`
}
