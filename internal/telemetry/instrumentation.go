package telemetry

import (
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// OpenInstrumentedDB opens a database/sql handle whose queries emit spans and
// whose pool statistics are exported as metrics.
func OpenInstrumentedDB(driverName, dataSourceName string, attrs ...attribute.KeyValue) (*sql.DB, error) {
	attrs = append([]attribute.KeyValue{semconv.DBSystemPostgreSQL}, attrs...)

	db, err := otelsql.Open(driverName, dataSourceName, otelsql.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to open instrumented database: %w", err)
	}

	if err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(attrs...)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to register database stats: %w", err)
	}

	return db, nil
}

// InstrumentRedisClient adds the OpenTelemetry tracing hook to a Redis client
func InstrumentRedisClient(client *redis.Client) {
	client.AddHook(redisotel.NewTracingHook())
}
