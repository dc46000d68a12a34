// Package requestcache deduplicates identical backend requests.
//
// A fingerprint is a SHA256 hash of the request's JSON form. Within the
// configured TTL, callers presenting the same fingerprint receive the
// cached result, and callers racing on an identical request share a
// single underlying call (at most one in-flight call per fingerprint).
package requestcache
