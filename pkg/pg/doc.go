// Package pg wires PostgreSQL into courier: pool construction with startup
// retries (Connect), goose schema migrations (Migrate), a readiness probe
// (Healthcheck), the DB interface shared by the Postgres-backed stores, and
// helpers that classify pgx errors.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
package pg
