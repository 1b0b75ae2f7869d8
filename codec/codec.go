package codec

import (
	"encoding/binary"
	"math"
)

// Result is the outcome of decoding a byte buffer.
type Result struct {
	// Samples holds the decoded values. For text/blob types these are the
	// raw byte values so the caller can still plot them if it wants to.
	Samples []float64
	// Text is true for StringText/OpaqueBlob requests: the caller should
	// render text or a hex dump instead of a numeric plot.
	Text bool
	// Truncated counts trailing bytes dropped because they were shorter
	// than one element. Non-fatal; reported as a decode warning.
	Truncated int
}

func byteOrder(e Endianness) binary.ByteOrder {
	if e == Big {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Decode converts a raw byte buffer into an ordered sample series. It never
// fails: an empty buffer yields an empty series and a remainder shorter than
// one element is dropped and counted in Result.Truncated.
func Decode(data []byte, t ElementType, e Endianness) Result {
	if !t.Numeric() {
		samples := make([]float64, len(data))
		for i, b := range data {
			samples[i] = float64(b)
		}
		return Result{Samples: samples, Text: true}
	}

	w := t.Width()
	n := len(data) / w
	samples := make([]float64, n)
	ord := byteOrder(e)

	for i := 0; i < n; i++ {
		chunk := data[i*w : (i+1)*w]
		switch t {
		case Int8:
			samples[i] = float64(int8(chunk[0]))
		case UInt8:
			samples[i] = float64(chunk[0])
		case Int16:
			samples[i] = float64(int16(ord.Uint16(chunk)))
		case UInt16:
			samples[i] = float64(ord.Uint16(chunk))
		case Int32:
			samples[i] = float64(int32(ord.Uint32(chunk)))
		case UInt32:
			samples[i] = float64(ord.Uint32(chunk))
		case Float32:
			samples[i] = float64(math.Float32frombits(ord.Uint32(chunk)))
		case Float64:
			samples[i] = math.Float64frombits(ord.Uint64(chunk))
		}
	}

	return Result{Samples: samples, Truncated: len(data) - n*w}
}

// intRange returns the representable range for integer element types.
func intRange(t ElementType) (lo, hi float64) {
	switch t {
	case Int8:
		return math.MinInt8, math.MaxInt8
	case UInt8:
		return 0, math.MaxUint8
	case Int16:
		return math.MinInt16, math.MaxInt16
	case UInt16:
		return 0, math.MaxUint16
	case Int32:
		return math.MinInt32, math.MaxInt32
	case UInt32:
		return 0, math.MaxUint32
	}
	return 0, 0
}

// saturate clamps v to [lo, hi]. Non-finite values clamp to zero (or the
// nearest bound when zero is outside the range) so integer conversion is
// always defined. The bool reports whether clamping happened.
func saturate(v, lo, hi float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		c := math.Min(math.Max(0, lo), hi)
		if math.IsInf(v, 1) {
			c = hi
		} else if math.IsInf(v, -1) {
			c = lo
		}
		return c, true
	}
	if v < lo {
		return lo, true
	}
	if v > hi {
		return hi, true
	}
	return v, false
}

// Encode is the inverse of Decode for numeric types: it packs samples into
// fixed-width elements under the given byte order. Samples outside the target
// type's representable range are saturated to that type's minimum or maximum,
// never wrapped; the returned count reports how many were clamped. Text/blob
// targets fall back to little-endian float32 packing, matching the viewer's
// plot-bytes interpretation, so Encode never fails.
func Encode(samples []float64, t ElementType, e Endianness) ([]byte, int) {
	if !t.Numeric() {
		t, e = Float32, Little
	}

	w := t.Width()
	out := make([]byte, 0, len(samples)*w)
	ord := byteOrder(e)
	saturated := 0

	var scratch [8]byte
	for _, v := range samples {
		switch t {
		case Int8, UInt8, Int16, UInt16, Int32, UInt32:
			lo, hi := intRange(t)
			c, clamped := saturate(v, lo, hi)
			if clamped {
				saturated++
			}
			switch t {
			case Int8:
				out = append(out, byte(int8(c)))
			case UInt8:
				out = append(out, byte(uint8(c)))
			case Int16:
				ord.PutUint16(scratch[:2], uint16(int16(c)))
				out = append(out, scratch[:2]...)
			case UInt16:
				ord.PutUint16(scratch[:2], uint16(c))
				out = append(out, scratch[:2]...)
			case Int32:
				ord.PutUint32(scratch[:4], uint32(int32(c)))
				out = append(out, scratch[:4]...)
			case UInt32:
				ord.PutUint32(scratch[:4], uint32(c))
				out = append(out, scratch[:4]...)
			}
		case Float32:
			c := v
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				var clamped bool
				c, clamped = saturate(v, -math.MaxFloat32, math.MaxFloat32)
				if clamped {
					saturated++
				}
			}
			ord.PutUint32(scratch[:4], math.Float32bits(float32(c)))
			out = append(out, scratch[:4]...)
		case Float64:
			ord.PutUint64(scratch[:8], math.Float64bits(v))
			out = append(out, scratch[:8]...)
		}
	}

	return out, saturated
}
