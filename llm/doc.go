// Package llm defines the backend adapter the runtime talks to: a
// Provider interface for chat, streaming chat, and embeddings, plus
// wrappers that add request deduplication and client-side rate
// limiting. Resilience (retries, circuit breaking) is layered on top by
// the resilience package, not here.
package llm
