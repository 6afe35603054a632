package metrics

import (
	"time"
)

// StoreMetrics provides observability for database operations.
//
// The store registers GORM callbacks that time every query and report it
// here. This interface is optional - pass nil to disable metrics
// collection with zero overhead.
type StoreMetrics interface {
	// ObserveQuery records a completed database operation.
	//
	// Parameters:
	//   - operation: GORM callback kind ("create", "query", "update",
	//     "delete", "row", "raw")
	//   - table: table the statement targeted, empty for raw statements
	//   - duration: statement execution time
	ObserveQuery(operation string, table string, duration time.Duration)
}
