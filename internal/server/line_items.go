package server

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/docflow/internal/aggregate"
)

type lineRequest struct {
	ProductName     string           `json:"product_name" binding:"required,max=255"`
	UnitPrice       *decimal.Decimal `json:"unit_price"`
	Quantity        *int64           `json:"quantity" binding:"omitempty,gte=0"`
	DurationPeriods *int64           `json:"duration_periods" binding:"omitempty,gte=0"`
}

func (r lineRequest) input() aggregate.LineInput {
	return aggregate.LineInput{
		ProductName:     r.ProductName,
		UnitPrice:       r.UnitPrice,
		Quantity:        r.Quantity,
		DurationPeriods: r.DurationPeriods,
	}
}

// lineInputs keeps nil apart from empty: a nil slice means "not given".
func lineInputs(lines []lineRequest) []aggregate.LineInput {
	if lines == nil {
		return nil
	}
	return lo.Map(lines, func(line lineRequest, _ int) aggregate.LineInput {
		return line.input()
	})
}
