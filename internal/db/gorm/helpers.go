package gorm

import (
	"strings"

	"gorm.io/gorm"
)

// likeEscaper escapes LIKE wildcards so user text matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern returns a case-folded LIKE pattern matching s anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// pageScope applies LIMIT size+1 / OFFSET page*size. The extra row tells
// whether another page exists.
func pageScope(page, size int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(page * size).Limit(size + 1)
	}
}

// trimPage cuts rows to size and reports whether more rows exist.
func trimPage[T any](rows []T, size int) ([]T, bool) {
	if len(rows) > size {
		return rows[:size], true
	}
	return rows, false
}
