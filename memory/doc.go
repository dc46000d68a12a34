// Package memory owns per-session conversation history: bounded
// context windows, compression of old history into summary messages,
// and lightweight term-frequency similarity recall.
package memory
