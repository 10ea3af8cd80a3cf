package domain

import "time"

// Counter keys for every document type that carries a display id.
const (
	KeyCustomer      = "customer"
	KeyQuotation     = "quotation"
	KeyInvoice       = "invoice"
	KeyPurchaseOrder = "purchase_order"
	KeyContract      = "contract"
)

// Counter is the single source of truth for one identifier sequence. Rows
// are created lazily at zero, only ever increase and are never deleted.
type Counter struct {
	CounterKey   string    `gorm:"primaryKey;type:varchar(64)" json:"counter_key"`
	CurrentValue uint64    `gorm:"not null;default:0" json:"current_value"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (Counter) TableName() string { return "sequence_counters" }
