// Package ir provides the value types carried by scheduled events.
//
// Event arguments (the positional tuple and the keyword map) and memo
// payloads are expressed as IRValue trees so that a schedule can be
// persisted and restored without reflection. The package imports nothing
// internal; every other package may depend on it.
//
// Key design constraints:
//   - NO float types (use int64; positions are whole metres)
//   - JSON keys sorted by UTF-16 code units (RFC 8785)
//   - MarshalCanonical is the only encoding used for persistence and hashing
package ir
