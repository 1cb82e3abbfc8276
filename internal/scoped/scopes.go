package scoped

import (
	"gorm.io/gorm"
)

// ByStatus filters on the status column. An empty status is a no-op.
func ByStatus(status string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if status == "" {
			return db
		}
		return db.Where("status = ?", status)
	}
}

// OrderBy sorts by a trusted column expression.
func OrderBy(expr string) Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Order(expr) }
}

// Preload eager-loads an association.
func Preload(assoc string) Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Preload(assoc) }
}

// Page applies limit/offset when limit is positive.
func Page(limit, offset int) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		if offset < 0 {
			offset = 0
		}
		return db.Limit(limit).Offset(offset)
	}
}
