// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// Invoice bills exactly one quotation.
type Invoice struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	PublicID    string        `gorm:"type:varchar(32);not null;uniqueIndex" json:"public_id"`
	QuotationID snowflake.ID  `gorm:"not null;uniqueIndex" json:"quotation_id"`
	CustomerID  snowflake.ID  `gorm:"not null;index" json:"customer_id"`
	IssueDate   time.Time     `gorm:"type:date;not null;index" json:"issue_date"`
	DueDate     time.Time     `gorm:"type:date;not null" json:"due_date"`
	Status      InvoiceStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	CreatedBy   string        `gorm:"type:varchar(255)" json:"created_by,omitempty"`
	Note        string        `gorm:"type:text" json:"note,omitempty"`
	CreatedAt   time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }
