// Package model defines shared data types used across the TDCC crawler.
//
// Conventions:
//   - Dates: day-granularity Date values, formatted "2006-01-02"
//   - Counts: int64 holder/share counts, never negative
//   - IDs: SecurityID strings (4-digit TWSE/TPEx codes in practice, but
//     opaque to this module)
package model
