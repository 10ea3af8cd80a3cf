package aggregate

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

var ErrMissingProductName = errors.New("missing_product_name")

// LineInput is a caller-supplied line item. Absent numbers price the line at zero.
type LineInput struct {
	ProductName     string           `json:"product_name"`
	UnitPrice       *decimal.Decimal `json:"unit_price"`
	Quantity        *int64           `json:"quantity"`
	DurationPeriods *int64           `json:"duration_periods"`
}

// Line is the persisted, priced form of a line item, embedded by every
// document that has items.
type Line struct {
	ProductName     string          `gorm:"type:varchar(255);not null" json:"product_name"`
	UnitPrice       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"unit_price"`
	Quantity        int64           `gorm:"not null;default:0" json:"quantity"`
	DurationPeriods int64           `gorm:"not null;default:0" json:"duration_periods"`
	LineTotal       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"line_total"`
}

func NewLine(in LineInput) (Line, error) {
	name := strings.TrimSpace(in.ProductName)
	if name == "" {
		return Line{}, ErrMissingProductName
	}

	total, err := LineTotal(in.UnitPrice, in.Quantity, in.DurationPeriods)
	if err != nil {
		return Line{}, err
	}

	line := Line{ProductName: name, LineTotal: total}
	if in.UnitPrice != nil {
		line.UnitPrice = in.UnitPrice.Round(moneyScale)
	}
	if in.Quantity != nil {
		line.Quantity = *in.Quantity
	}
	if in.DurationPeriods != nil {
		line.DurationPeriods = *in.DurationPeriods
	}
	return line, nil
}

// Input turns a persisted line back into an input, e.g. to copy it onto
// another document.
func (l Line) Input() LineInput {
	price := l.UnitPrice
	qty := l.Quantity
	periods := l.DurationPeriods
	return LineInput{
		ProductName:     l.ProductName,
		UnitPrice:       &price,
		Quantity:        &qty,
		DurationPeriods: &periods,
	}
}
