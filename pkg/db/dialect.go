package db

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/smallbiznis/docflow/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var ErrUnsupportedDialect = errors.New("unsupported_database_type")

// Dialect picks the GORM driver for cfg.DBType. Every dialect runs in UTC
// so DATE columns round-trip as calendar days.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DBType)) {
	case "postgres", "postgresql":
		return postgres.New(postgres.Config{DSN: postgresDSN(cfg)}), nil
	case "mysql":
		return mysql.New(mysql.Config{
			DSN:                    mysqlDSN(cfg),
			DefaultStringSize:      255,
			DontSupportRenameIndex: true,
		}), nil
	case "sqlite", "sqlite3":
		return sqlite.Open(sqliteDSN(cfg.DBPath)), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedDialect, "%q", cfg.DBType)
	}
}

func postgresDSN(cfg config.Config) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:   cfg.DBHost + ":" + cfg.DBPort,
		Path:   "/" + cfg.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", cfg.DBSSLMode)
	q.Set("TimeZone", "UTC")
	u.RawQuery = q.Encode()
	return u.String()
}

func mysqlDSN(cfg config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

func sqliteDSN(path string) string {
	if strings.TrimSpace(path) == "" {
		path = "docflow.db"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}
