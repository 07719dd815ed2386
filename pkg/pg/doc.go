// Package pg provides PostgreSQL connectivity helpers built on pgx: pooled
// connections with startup retry, goose schema migrations, health checks,
// and error classification for common SQLSTATE codes.
package pg
