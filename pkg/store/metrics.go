package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/agonych/udp-chat/pkg/metrics"
)

// queryStartKey carries the statement start time from the before callback
// to the matching after callback on the same statement instance.
const queryStartKey = "udpchat:query_start"

// InstrumentMetrics hooks query timing callbacks into the underlying GORM
// connection so every statement is observed with its kind and table.
// Passing nil leaves the store uninstrumented.
func (s *GORMStore) InstrumentMetrics(m metrics.StoreMetrics) error {
	if m == nil {
		return nil
	}

	before := func(db *gorm.DB) {
		db.InstanceSet(queryStartKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			v, ok := db.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			m.ObserveQuery(operation, db.Statement.Table, time.Since(start))
		}
	}

	cb := s.db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("udpchat:metrics_before_create", before),
		cb.Create().After("gorm:create").Register("udpchat:metrics_after_create", after("create")),
		cb.Query().Before("gorm:query").Register("udpchat:metrics_before_query", before),
		cb.Query().After("gorm:query").Register("udpchat:metrics_after_query", after("query")),
		cb.Update().Before("gorm:update").Register("udpchat:metrics_before_update", before),
		cb.Update().After("gorm:update").Register("udpchat:metrics_after_update", after("update")),
		cb.Delete().Before("gorm:delete").Register("udpchat:metrics_before_delete", before),
		cb.Delete().After("gorm:delete").Register("udpchat:metrics_after_delete", after("delete")),
		cb.Row().Before("gorm:row").Register("udpchat:metrics_before_row", before),
		cb.Row().After("gorm:row").Register("udpchat:metrics_after_row", after("row")),
		cb.Raw().Before("gorm:raw").Register("udpchat:metrics_before_raw", before),
		cb.Raw().After("gorm:raw").Register("udpchat:metrics_after_raw", after("raw")),
	)
}
