// Package binary provides helpers for the tightly packed little-endian
// account and instruction layouts used by on-chain programs, including the
// Anchor forms for optional and variable-length values (a one-byte presence
// flag, and a u32 length prefix, respectively).
package binary

import (
	"crypto/ed25519"
	"encoding/binary"
)

func PutKey32(dst []byte, src []byte, offset *int) {
	copy(dst, src)
	*offset += ed25519.PublicKeySize
}

func PutUint64(dst []byte, v uint64, offset *int) {
	binary.LittleEndian.PutUint64(dst, v)
	*offset += 8
}

func PutInt64(dst []byte, v int64, offset *int) {
	binary.LittleEndian.PutUint64(dst, uint64(v))
	*offset += 8
}

func PutUint32(dst []byte, v uint32, offset *int) {
	binary.LittleEndian.PutUint32(dst, v)
	*offset += 4
}

func PutUint8(dst []byte, v uint8, offset *int) {
	dst[0] = v
	*offset += 1
}

func PutBool(dst []byte, v bool, offset *int) {
	if v {
		dst[0] = 1
	} else {
		dst[0] = 0
	}
	*offset += 1
}

// PutString writes a u32 length prefix followed by the raw bytes.
func PutString(dst []byte, v string, offset *int) {
	binary.LittleEndian.PutUint32(dst, uint32(len(v)))
	copy(dst[4:], v)
	*offset += 4 + len(v)
}

// PutOptionalUint64 writes a presence flag byte and, when present, the value.
func PutOptionalUint64(dst []byte, v *uint64, offset *int) {
	if v == nil {
		dst[0] = 0
		*offset += 1
		return
	}
	dst[0] = 1
	binary.LittleEndian.PutUint64(dst[1:], *v)
	*offset += 1 + 8
}

func PutOptionalBool(dst []byte, v *bool, offset *int) {
	if v == nil {
		dst[0] = 0
		*offset += 1
		return
	}
	dst[0] = 1
	if *v {
		dst[1] = 1
	} else {
		dst[1] = 0
	}
	*offset += 2
}

func PutOptionalString(dst []byte, v *string, offset *int) {
	if v == nil {
		dst[0] = 0
		*offset += 1
		return
	}
	dst[0] = 1
	*offset += 1
	var inner int
	PutString(dst[1:], *v, &inner)
	*offset += inner
}

// OptionalUint64Size reports the encoded size of an Option<u64>.
func OptionalUint64Size(v *uint64) int {
	if v == nil {
		return 1
	}
	return 1 + 8
}

// OptionalBoolSize reports the encoded size of an Option<bool>.
func OptionalBoolSize(v *bool) int {
	if v == nil {
		return 1
	}
	return 2
}

// OptionalStringSize reports the encoded size of an Option<String>.
func OptionalStringSize(v *string) int {
	if v == nil {
		return 1
	}
	return 1 + 4 + len(*v)
}

func GetKey32(src []byte, dst *ed25519.PublicKey, offset *int) {
	*dst = make([]byte, ed25519.PublicKeySize)
	copy(*dst, src)
	*offset += ed25519.PublicKeySize
}

func GetUint64(src []byte, dst *uint64, offset *int) {
	*dst = binary.LittleEndian.Uint64(src)
	*offset += 8
}

func GetInt64(src []byte, dst *int64, offset *int) {
	*dst = int64(binary.LittleEndian.Uint64(src))
	*offset += 8
}

func GetUint32(src []byte, dst *uint32, offset *int) {
	*dst = binary.LittleEndian.Uint32(src)
	*offset += 4
}

func GetUint8(src []byte, dst *uint8, offset *int) {
	*dst = src[0]
	*offset += 1
}
