package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActionSetStock is the audit action for manual stock adjustments. Order
// actions are named by the policy table.
const ActionSetStock = "SET_STOCK"

// AuditLog tracks Who, What, and When for every order and stock mutation
type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID    string    `gorm:"type:varchar(64);index" json:"actor_id"`
	ActorName  string    `gorm:"type:varchar(255)" json:"actor_name"`
	Action     string    `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string    `gorm:"type:varchar(64);index" json:"entity_id"`
	FromStatus string    `gorm:"type:varchar(32)" json:"from_status,omitempty"`
	ToStatus   string    `gorm:"type:varchar(32)" json:"to_status,omitempty"`
	Details    string    `gorm:"type:text" json:"details"` // serialized JSON payload of the action
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
