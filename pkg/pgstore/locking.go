package pgstore

import "gorm.io/gorm/clause"

// lockingClause returns the FOR UPDATE row lock CompareAndSwapStatus takes
// inside its transaction. Factored out so it is defined exactly once.
func lockingClause() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}
