package model

import (
	"time"
)

// Role is the actor role carried by a staff record and by access tokens
type Role string

const (
	RoleAdmin            Role = "admin"
	RoleManager          Role = "manager" // department (sales) manager
	RoleSales            Role = "sales"
	RoleWarehouseManager Role = "warehouse_manager"
	RolePicker           Role = "picker"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleSales, RoleWarehouseManager, RolePicker:
		return true
	}
	return false
}

// StaffUser is read from the staff roster. The order core never writes it.
type StaffUser struct {
	UID         string    `gorm:"type:varchar(64);primaryKey" json:"uid"`
	DisplayName string    `gorm:"type:varchar(255);not null" json:"display_name"`
	Role        Role      `gorm:"type:varchar(32);not null;index" json:"role"`
	ManagerID   *string   `gorm:"type:varchar(64);index" json:"manager_id"` // nil = top-level management
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Actor is the caller identity resolved from the session
type Actor struct {
	UID       string
	Name      string
	Role      Role
	ManagerID *string
}

// IsTopLevel reports whether the actor belongs to top-level management
func (a Actor) IsTopLevel() bool {
	if a.Role == RoleAdmin {
		return true
	}
	return a.Role == RoleManager && (a.ManagerID == nil || *a.ManagerID == "")
}

// ManagerIDValue returns the reporting manager id or "" when none
func (a Actor) ManagerIDValue() string {
	if a.ManagerID == nil {
		return ""
	}
	return *a.ManagerID
}
