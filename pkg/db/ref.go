package db

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ByRef filters table on its numeric id when ref parses as a snowflake id,
// and on public_id otherwise.
func ByRef(q *gorm.DB, table, ref string) *gorm.DB {
	ref = strings.TrimSpace(ref)
	if id, err := snowflake.ParseString(ref); err == nil && id > 0 {
		return q.Where(table+".id = ?", id)
	}
	return q.Where(table+".public_id = ?", ref)
}

// LockForUpdate adds a row lock on dialects that support it. SQLite
// serializes writers on its own and rejects the clause.
func LockForUpdate(q *gorm.DB) *gorm.DB {
	if q.Dialector.Name() == "sqlite" {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}
