// Package byteorder detects the host byte order and converts integers
// between little-endian wire order and host order.
package byteorder

import (
	"encoding/binary"
	"math/bits"

	"github.com/josharian/native"
)

// IsBigEndian reports whether the host stores integers most significant
// byte first.
func IsBigEndian() bool {
	return native.IsBigEndian
}

// Host is the host's binary.ByteOrder.
func Host() binary.ByteOrder {
	return native.Endian
}

// Swap16 reverses the byte order of v.
func Swap16(v uint16) uint16 { return bits.ReverseBytes16(v) }

// Swap32 reverses the byte order of v.
func Swap32(v uint32) uint32 { return bits.ReverseBytes32(v) }

// Swap64 reverses the byte order of v.
func Swap64(v uint64) uint64 { return bits.ReverseBytes64(v) }

// Unsigned is the set of word sizes ConvertEndianness accepts.
type Unsigned interface {
	~uint16 | ~uint32 | ~uint64
}

// ConvertEndianness unconditionally reverses the byte order of v.
// Applying it twice yields v.
func ConvertEndianness[T Unsigned](v T) T {
	switch binary.Size(v) {
	case 2:
		return T(Swap16(uint16(v)))
	case 4:
		return T(Swap32(uint32(v)))
	default:
		return T(Swap64(uint64(v)))
	}
}

// LittleToHost16 converts a word that was loaded from little-endian wire
// bytes with the host byte order into its numeric value. The bytes are
// swapped only on big-endian hosts.
func LittleToHost16(v uint16) uint16 {
	if native.IsBigEndian {
		return Swap16(v)
	}
	return v
}

// LittleToHost32 is the 32-bit LittleToHost16.
func LittleToHost32(v uint32) uint32 {
	if native.IsBigEndian {
		return Swap32(v)
	}
	return v
}

// LittleToHost64 is the 64-bit LittleToHost16.
func LittleToHost64(v uint64) uint64 {
	if native.IsBigEndian {
		return Swap64(v)
	}
	return v
}

// Uint16 loads a little-endian 16-bit word from b.
func Uint16(b []byte) uint16 {
	return LittleToHost16(native.Endian.Uint16(b))
}

// Uint32 loads a little-endian 32-bit word from b.
func Uint32(b []byte) uint32 {
	return LittleToHost32(native.Endian.Uint32(b))
}

// Uint64 loads a little-endian 64-bit word from b.
func Uint64(b []byte) uint64 {
	return LittleToHost64(native.Endian.Uint64(b))
}

// PutUint16 stores v into b in little-endian order.
func PutUint16(b []byte, v uint16) {
	native.Endian.PutUint16(b, LittleToHost16(v))
}

// PutUint32 stores v into b in little-endian order.
func PutUint32(b []byte, v uint32) {
	native.Endian.PutUint32(b, LittleToHost32(v))
}

// PutUint64 stores v into b in little-endian order.
func PutUint64(b []byte, v uint64) {
	native.Endian.PutUint64(b, LittleToHost64(v))
}
