// Package database manages the Postgres connection pool used by the
// Postgres snapshot store backend.
package database
