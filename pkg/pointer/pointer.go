// Package pointer provides helpers for optional values passed by pointer.
package pointer

// String returns a pointer to the provided string value
func String(value string) *string {
	return &value
}

// Uint64 returns a pointer to the provided uint64 value
func Uint64(value uint64) *uint64 {
	return &value
}

// Bool returns a pointer to the provided bool value
func Bool(value bool) *bool {
	return &value
}
