package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/docflow/internal/aggregate"
)

type Quotation struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	PublicID    string          `gorm:"type:varchar(32);not null;uniqueIndex" json:"public_id"`
	CustomerID  snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	StartDate   time.Time       `gorm:"type:date;not null" json:"start_date"`
	EndDate     time.Time       `gorm:"type:date;not null" json:"end_date"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_amount"`
	Note        string          `gorm:"type:text" json:"note,omitempty"`
	Items       []QuotationItem `gorm:"foreignKey:QuotationID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`
}

type QuotationItem struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	QuotationID snowflake.ID `gorm:"not null;index" json:"quotation_id"`
	aggregate.Line
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// Totals is the aggregate pair kept in sync after every item mutation.
var Totals = aggregate.Target{
	Parent:     "quotations",
	Child:      "quotation_items",
	ForeignKey: "quotation_id",
}
