package model

import (
	"time"
)

// IncidentStatus is the lifecycle state of an incident
type IncidentStatus string

const (
	IncidentStatusOpen       IncidentStatus = "open"
	IncidentStatusInProgress IncidentStatus = "in_progress"
	IncidentStatusResolved   IncidentStatus = "resolved"
)

// Incident is a supplier-facing operational record, optionally linked 1:1 to
// a Complaint (auto-created with it) but may also exist standalone.
type Incident struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	ComplaintID *uint          `json:"complaint_id,omitempty" gorm:"index"`
	SupplierID  uint           `json:"supplier_id" gorm:"index;not null"`
	Summary     string         `json:"summary" gorm:"type:varchar(255);not null"`
	Description string         `json:"description" gorm:"type:text;not null"`
	Status      IncidentStatus `json:"status" gorm:"type:varchar(20);default:'open';not null"`
	CreatedBy   uint           `json:"created_by" gorm:"not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
