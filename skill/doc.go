// Package skill routes tasks to registered capabilities: keyword-based
// intent scoring weighted by learned performance, bounded execution
// with timeouts, and sequential chaining with cycle detection.
package skill
