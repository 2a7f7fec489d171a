// Package scheduler drives one ingestion run.
//
// A run:
//   - Generates weekly candidate dates for each requested security
//   - Subtracts dates already present in the store (incremental update)
//   - Fans the remaining (security, date) jobs out over a bounded
//     worker pool
//   - Classifies every job outcome into the run report: fetched,
//     no-data, skipped-existing, or failed with a reason
//
// Retrying is the fetch client's concern; the scheduler runs each job
// exactly once and never stacks a second retry layer on top. One
// security's failures never abort the rest of the run.
package scheduler
