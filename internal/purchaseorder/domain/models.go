package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/docflow/internal/aggregate"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusBanned    Status = "banned"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusRejected, StatusCancelled, StatusBanned:
		return true
	}
	return false
}

// Approver signs off purchase orders.
type Approver struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	FirstName string       `gorm:"type:varchar(255);not null" json:"first_name"`
	LastName  string       `gorm:"type:varchar(255)" json:"last_name,omitempty"`
	Position  string       `gorm:"type:varchar(255)" json:"position,omitempty"`
	Note      string       `gorm:"type:text" json:"note,omitempty"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Approver) TableName() string { return "approvers" }

type PurchaseOrder struct {
	ID          snowflake.ID        `gorm:"primaryKey" json:"id"`
	PublicID    string              `gorm:"type:varchar(32);not null;uniqueIndex" json:"public_id"`
	CustomerID  *snowflake.ID       `gorm:"index" json:"customer_id,omitempty"`
	QuotationID snowflake.ID        `gorm:"not null;uniqueIndex" json:"quotation_id"`
	InvoiceID   *snowflake.ID       `gorm:"uniqueIndex" json:"invoice_id,omitempty"`
	ApproverID  *snowflake.ID       `gorm:"index" json:"approver_id,omitempty"`
	Approver    *Approver           `gorm:"foreignKey:ApproverID;constraint:OnDelete:SET NULL" json:"approver,omitempty"`
	StartDate   time.Time           `gorm:"type:date;not null;index" json:"start_date"`
	EndDate     time.Time           `gorm:"type:date;not null" json:"end_date"`
	Status      Status              `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	TotalAmount decimal.Decimal     `gorm:"type:numeric(12,2);not null;default:0" json:"total_amount"`
	Note        string              `gorm:"type:text" json:"note,omitempty"`
	Items       []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt   time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"not null" json:"updated_at"`
}

func (PurchaseOrder) TableName() string { return "purchase_orders" }

type PurchaseOrderItem struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	PurchaseOrderID snowflake.ID `gorm:"not null;index" json:"purchase_order_id"`
	aggregate.Line
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (PurchaseOrderItem) TableName() string { return "purchase_order_items" }

var Totals = aggregate.Target{
	Parent:     "purchase_orders",
	Child:      "purchase_order_items",
	ForeignKey: "purchase_order_id",
}
