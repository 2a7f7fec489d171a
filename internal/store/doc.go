// Package store provides durable keyed storage of ownership snapshots.
//
// One record exists per (security, date). Writes are idempotent
// overwrites; records are never mutated in place. Two backends are
// provided:
//   - FS: directory per security, one JSON file per date
//   - Postgres: one row per (security, date) with brackets as JSONB
//
// Both support concurrent writers to disjoint keys, and listing a
// security's dates without reading record bodies.
//
// A key can also carry a no-data marker: a durable note that the
// source confirmed no disclosure exists for that date. Markers keep
// re-runs from asking the source again and are invisible to the read
// path; a snapshot written later replaces its marker.
package store
