// Package cache stores partial scoring results as soon as each batch of
// completion requests finishes, so an interrupted run can be resumed by the
// harness without paying for the same API calls twice.
//
// Entries are addressed by the SHA-256 of the JSON encoding of the pair
// [method, key]. Store implementations live in the memory, sqlite, and
// postgres subpackages.
package cache
