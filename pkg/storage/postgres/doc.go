// Package postgres implements billing.Store on database/sql.
//
// Two dialects share one set of queries:
//
//   - DialectPostgres (lib/pq). InTenantTx takes pg_advisory_xact_lock on a
//     hash of the tenant id, so confirmations for one tenant queue up while
//     other tenants proceed.
//   - DialectSQLite (go-sqlite3). SQLiteDSN opens transactions with
//     BEGIN IMMEDIATE over a single connection, which serializes all writers.
//
// # Usage
//
//	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
//		Dialect:    postgres.DialectPostgres,
//		PrimaryURL: "postgres://localhost/basekeeper?sslmode=disable",
//	}, logger)
//	if err != nil {
//		return err
//	}
//	if err := postgres.RunMigrations(ctx, cm.Primary(), cm.Dialect(), logger); err != nil {
//		return err
//	}
//	store := postgres.NewStore(cm.Primary(), cm.Dialect(),
//		postgres.WithReadReplicas(cm.Replica))
//
// Every row is validated after it is scanned; a record that breaks a
// subscription or payment invariant surfaces as billing.ErrInvalidRecord.
//
// The package also carries the Redis client used for shared idempotency keys
// (RedisIdempotencyStore).
package postgres
