// Package cascade removes the documents issued downstream of a deleted
// parent inside the parent's delete transaction. Rows go child first, so the
// result is the same whether or not the database enforces the foreign keys.
package cascade

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	contractdomain "github.com/smallbiznis/docflow/internal/contract/domain"
	invoicedomain "github.com/smallbiznis/docflow/internal/invoice/domain"
	purchaseorderdomain "github.com/smallbiznis/docflow/internal/purchaseorder/domain"
	quotationdomain "github.com/smallbiznis/docflow/internal/quotation/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Result counts the downstream documents removed. Line items are not counted.
type Result struct {
	Quotations     int64
	Invoices       int64
	PurchaseOrders int64
	Contracts      int64
}

func (r Result) Fields() []zap.Field {
	return []zap.Field{
		zap.Int64("cascaded_quotations", r.Quotations),
		zap.Int64("cascaded_invoices", r.Invoices),
		zap.Int64("cascaded_purchase_orders", r.PurchaseOrders),
		zap.Int64("cascaded_contracts", r.Contracts),
	}
}

type level int

const (
	levelCustomer level = iota
	levelQuotation
	levelInvoice
	levelPurchaseOrder
)

// Customer removes the customer's quotations, invoices, purchase orders and
// contracts along with their items. The customer row is left to the caller.
func Customer(ctx context.Context, tx *gorm.DB, id snowflake.ID) (Result, error) {
	return run(ctx, tx, levelCustomer, graph{customers: []snowflake.ID{id}})
}

// Quotation removes the invoice, purchase order and contract issued from the
// quotation. The quotation and its items are left to the caller.
func Quotation(ctx context.Context, tx *gorm.DB, id snowflake.ID) (Result, error) {
	return run(ctx, tx, levelQuotation, graph{quotations: []snowflake.ID{id}})
}

// Invoice removes the purchase order and contract issued from the invoice.
func Invoice(ctx context.Context, tx *gorm.DB, id snowflake.ID) (Result, error) {
	return run(ctx, tx, levelInvoice, graph{invoices: []snowflake.ID{id}})
}

// PurchaseOrder removes the contract issued from the purchase order.
func PurchaseOrder(ctx context.Context, tx *gorm.DB, id snowflake.ID) (Result, error) {
	return run(ctx, tx, levelPurchaseOrder, graph{purchaseOrders: []snowflake.ID{id}})
}

type graph struct {
	customers      []snowflake.ID
	quotations     []snowflake.ID
	invoices       []snowflake.ID
	purchaseOrders []snowflake.ID
	contracts      []snowflake.ID
}

type ref struct {
	column string
	ids    []snowflake.ID
}

func run(ctx context.Context, tx *gorm.DB, from level, g graph) (Result, error) {
	if err := g.expand(ctx, tx); err != nil {
		return Result{}, err
	}

	var res Result
	var err error
	if res.Contracts, err = remove(ctx, tx, &contractdomain.Contract{}, "id", g.contracts); err != nil {
		return Result{}, errors.Wrap(err, "delete contracts")
	}
	if from < levelPurchaseOrder {
		if _, err = remove(ctx, tx, &purchaseorderdomain.PurchaseOrderItem{}, "purchase_order_id", g.purchaseOrders); err != nil {
			return Result{}, errors.Wrap(err, "delete purchase order items")
		}
		if res.PurchaseOrders, err = remove(ctx, tx, &purchaseorderdomain.PurchaseOrder{}, "id", g.purchaseOrders); err != nil {
			return Result{}, errors.Wrap(err, "delete purchase orders")
		}
	}
	if from < levelInvoice {
		if res.Invoices, err = remove(ctx, tx, &invoicedomain.Invoice{}, "id", g.invoices); err != nil {
			return Result{}, errors.Wrap(err, "delete invoices")
		}
	}
	if from < levelQuotation {
		if _, err = remove(ctx, tx, &quotationdomain.QuotationItem{}, "quotation_id", g.quotations); err != nil {
			return Result{}, errors.Wrap(err, "delete quotation items")
		}
		if res.Quotations, err = remove(ctx, tx, &quotationdomain.Quotation{}, "id", g.quotations); err != nil {
			return Result{}, errors.Wrap(err, "delete quotations")
		}
	}
	return res, nil
}

// expand follows every reference down the chain. A purchase order or
// contract can point at the customer directly as well as through its
// quotation, so each level matches on all of its parents.
func (g *graph) expand(ctx context.Context, tx *gorm.DB) error {
	var err error
	if g.quotations, err = collect(ctx, tx, &quotationdomain.Quotation{}, g.quotations,
		ref{"customer_id", g.customers},
	); err != nil {
		return errors.Wrap(err, "collect quotations")
	}
	if g.invoices, err = collect(ctx, tx, &invoicedomain.Invoice{}, g.invoices,
		ref{"customer_id", g.customers},
		ref{"quotation_id", g.quotations},
	); err != nil {
		return errors.Wrap(err, "collect invoices")
	}
	if g.purchaseOrders, err = collect(ctx, tx, &purchaseorderdomain.PurchaseOrder{}, g.purchaseOrders,
		ref{"customer_id", g.customers},
		ref{"quotation_id", g.quotations},
		ref{"invoice_id", g.invoices},
	); err != nil {
		return errors.Wrap(err, "collect purchase orders")
	}
	if g.contracts, err = collect(ctx, tx, &contractdomain.Contract{}, g.contracts,
		ref{"customer_id", g.customers},
		ref{"quotation_id", g.quotations},
		ref{"invoice_id", g.invoices},
		ref{"po_id", g.purchaseOrders},
	); err != nil {
		return errors.Wrap(err, "collect contracts")
	}
	return nil
}

func collect(ctx context.Context, tx *gorm.DB, model any, have []snowflake.ID, refs ...ref) ([]snowflake.ID, error) {
	var cond *gorm.DB
	for _, r := range refs {
		if len(r.ids) == 0 {
			continue
		}
		if cond == nil {
			cond = tx.Where(r.column+" IN ?", r.ids)
			continue
		}
		cond = cond.Or(r.column+" IN ?", r.ids)
	}
	if cond == nil {
		return have, nil
	}

	var found []snowflake.ID
	if err := tx.WithContext(ctx).Model(model).Where(cond).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	return lo.Uniq(append(have, found...)), nil
}

func remove(ctx context.Context, tx *gorm.DB, model any, column string, ids []snowflake.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).Where(column+" IN ?", ids).Delete(model)
	return res.RowsAffected, res.Error
}
