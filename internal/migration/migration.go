package migration

import (
	"database/sql"
	"embed"
	"io/fs"

	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	contractdomain "github.com/smallbiznis/docflow/internal/contract/domain"
	customerdomain "github.com/smallbiznis/docflow/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/docflow/internal/invoice/domain"
	purchaseorderdomain "github.com/smallbiznis/docflow/internal/purchaseorder/domain"
	quotationdomain "github.com/smallbiznis/docflow/internal/quotation/domain"
	sequencedomain "github.com/smallbiznis/docflow/internal/sequence/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&sequencedomain.Counter{},
		&customerdomain.Tenant{},
		&customerdomain.Customer{},
		&quotationdomain.Quotation{},
		&quotationdomain.QuotationItem{},
		&invoicedomain.Invoice{},
		&purchaseorderdomain.Approver{},
		&purchaseorderdomain.PurchaseOrder{},
		&purchaseorderdomain.PurchaseOrderItem{},
		&contractdomain.Contract{},
	}
}

// AutoMigrate builds the schema from the models. Used for sqlite and mysql,
// and by package tests.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(Models()...)
}

// Run applies the embedded SQL migrations on postgres and falls back to
// AutoMigrate on every other dialect.
func Run(conn *gorm.DB) error {
	if conn.Dialector.Name() != "postgres" {
		return AutoMigrate(conn)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return errors.Wrap(err, "open migrations")
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return errors.Wrap(err, "create migration source")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "create migration driver")
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return errors.Wrap(err, "create migrator")
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "apply migrations")
	}
	// Closing the migrator would close the shared *sql.DB.
	return nil
}
