// Package codec converts raw byte buffers to and from ordered numeric sample
// series under a selected element type and byte order. Decoding never fails on
// malformed input: a trailing remainder shorter than one element is dropped
// and reported, and encoding saturates out-of-range samples to the target
// type's representable range instead of wrapping.
package codec

// ElementType is the numeric or textual interpretation applied to a raw byte
// buffer. The set is closed: dispatch over it is an exhaustive switch.
type ElementType int

const (
	Int8 ElementType = iota
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Float32
	Float64
	StringText
	OpaqueBlob
)

// elementTypes holds the cycling order used by the type selector.
var elementTypes = []ElementType{
	Int8, UInt8, Int16, UInt16, Int32, UInt32, Float32, Float64, StringText, OpaqueBlob,
}

// AllElementTypes returns every element type in selector order.
func AllElementTypes() []ElementType {
	out := make([]ElementType, len(elementTypes))
	copy(out, elementTypes)
	return out
}

// Width returns the byte width of one element, or 0 for text/blob types that
// bypass numeric decoding.
func (t ElementType) Width() int {
	switch t {
	case Int8, UInt8:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// Numeric reports whether the type decodes to numeric samples.
func (t ElementType) Numeric() bool {
	return t != StringText && t != OpaqueBlob
}

// String returns the display name of the element type.
func (t ElementType) String() string {
	switch t {
	case Int8:
		return "int8"
	case UInt8:
		return "uint8"
	case Int16:
		return "int16"
	case UInt16:
		return "uint16"
	case Int32:
		return "int32"
	case UInt32:
		return "uint32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case StringText:
		return "string"
	case OpaqueBlob:
		return "blob/hex"
	default:
		return "unknown"
	}
}

// Next returns the following element type in selector order, wrapping around.
func (t ElementType) Next() ElementType {
	for i, et := range elementTypes {
		if et == t {
			return elementTypes[(i+1)%len(elementTypes)]
		}
	}
	return elementTypes[0]
}

// Prev returns the preceding element type in selector order, wrapping around.
func (t ElementType) Prev() ElementType {
	for i, et := range elementTypes {
		if et == t {
			return elementTypes[(i+len(elementTypes)-1)%len(elementTypes)]
		}
	}
	return elementTypes[0]
}

// Endianness is the byte order used for multi-byte numeric elements. It is
// irrelevant for width-1 and text/blob types.
type Endianness int

const (
	Little Endianness = iota
	Big
)

// String returns the display name of the byte order.
func (e Endianness) String() string {
	if e == Big {
		return "BE"
	}
	return "LE"
}

// Toggle returns the opposite byte order.
func (e Endianness) Toggle() Endianness {
	if e == Little {
		return Big
	}
	return Little
}
