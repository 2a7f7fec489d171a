// Package fetch implements the rate-limited TDCC client.
//
// The client:
//   - Enforces a global in-flight request cap and a minimum
//     inter-request interval (token bucket)
//   - Retries transient failures with exponential backoff plus jitter,
//     up to a configured attempt budget
//   - Classifies every failure as NoData, transient, or permanent so
//     the scheduler never re-enqueues dates that will never publish
//   - Verifies the upstream TLS identity by default; disabling
//     verification is an explicit test-mode opt-in
package fetch
