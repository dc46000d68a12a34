// Package orchestrator composes memory, skill routing, and the
// resilience layer into the message-processing pipeline and exposes
// the runtime's external contract: ProcessMessage and StreamResponse.
package orchestrator
