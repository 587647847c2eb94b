package option

import (
	"smallbiznis-crm/pkg/db/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption customises a repository query.
type QueryOption func(*gorm.DB) *gorm.DB

func Apply(tx *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		if opt != nil {
			tx = opt(tx)
		}
	}
	return tx
}

// ApplyPagination orders by (created_at, id) and continues after the cursor.
// One extra row is requested so the caller can tell whether more pages exist.
func ApplyPagination(p pagination.Pagination) QueryOption {
	p = p.Normalize()
	return func(tx *gorm.DB) *gorm.DB {
		if p.Cursor != "" {
			if c, err := pagination.DecodeCursor(p.Cursor); err == nil {
				tx = tx.Where("(created_at > ?) OR (created_at = ? AND id > ?)", c.CreatedAt, c.CreatedAt, c.ID)
			}
		}
		return tx.Order("created_at ASC").Order("id ASC").Limit(p.Limit + 1)
	}
}

func WithWhere(query any, args ...any) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where(query, args...)
	}
}

func WithOrder(order string) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Order(order)
	}
}

// LockingUpdate is a gorm scope adding SELECT ... FOR UPDATE.
func LockingUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func WithLockingUpdate() QueryOption {
	return LockingUpdate
}
