package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docflow/internal/daterange"
)

// Contract is the date-bounded agreement issued from a purchase order. Its
// stored status is a snapshot; reads derive it again from the dates.
type Contract struct {
	ID              snowflake.ID     `gorm:"primaryKey" json:"id"`
	PublicID        string           `gorm:"type:varchar(32);not null;uniqueIndex" json:"public_id"`
	CustomerID      *snowflake.ID    `gorm:"index" json:"customer_id,omitempty"`
	QuotationID     snowflake.ID     `gorm:"not null;uniqueIndex" json:"quotation_id"`
	InvoiceID       *snowflake.ID    `gorm:"uniqueIndex" json:"invoice_id,omitempty"`
	PurchaseOrderID snowflake.ID     `gorm:"column:po_id;not null;uniqueIndex" json:"po_id"`
	StartDate       time.Time        `gorm:"type:date;not null" json:"start_date"`
	EndDate         time.Time        `gorm:"type:date;not null" json:"end_date"`
	Status          daterange.Status `gorm:"type:varchar(16);not null;default:'Draft';index" json:"status"`
	Note            string           `gorm:"type:text" json:"note,omitempty"`
	CreatedAt       time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"not null" json:"updated_at"`
}

func (Contract) TableName() string { return "contracts" }
