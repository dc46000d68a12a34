// Package resilience shields every external call behind error
// categorization, a per-dependency circuit breaker, and a prioritized
// list of recovery strategies.
package resilience
