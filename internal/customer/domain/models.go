package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Customer struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	PublicID    string            `gorm:"type:varchar(32);not null;uniqueIndex" json:"public_id"`
	CompanyName string            `gorm:"type:varchar(255);not null;index" json:"company_name"`
	ContactName string            `gorm:"type:varchar(255)" json:"contact_name"`
	Phone       string            `gorm:"type:varchar(64)" json:"phone,omitempty"`
	Email       string            `gorm:"type:varchar(255)" json:"email,omitempty"`
	Address     string            `gorm:"type:text" json:"address,omitempty"`
	TenantID    *snowflake.ID     `gorm:"index" json:"tenant_id,omitempty"`
	Tenant      *Tenant           `gorm:"foreignKey:TenantID;constraint:OnDelete:SET NULL" json:"tenant,omitempty"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updated_at"`
}

// Tenant is the hosted workspace a customer runs on.
type Tenant struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:varchar(255);not null" json:"name"`
	Domain    string       `gorm:"type:varchar(255);not null;uniqueIndex" json:"domain"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}
