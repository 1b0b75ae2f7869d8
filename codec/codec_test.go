package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInt32LittleEndian(t *testing.T) {
	// 8 bytes as two little-endian int32 values: 1 and -1.
	data := []byte{0x01, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF}
	res := Decode(data, Int32, Little)

	require.Len(t, res.Samples, 2)
	assert.Equal(t, []float64{1, -1}, res.Samples)
	assert.Zero(t, res.Truncated)
	assert.False(t, res.Text)
}

func TestDecodeLengthInvariant(t *testing.T) {
	types := []ElementType{Int8, UInt8, Int16, UInt16, Int32, UInt32, Float32, Float64}
	data := make([]byte, 37)
	for i := range data {
		data[i] = byte(i * 7)
	}

	for _, et := range types {
		for _, e := range []Endianness{Little, Big} {
			res := Decode(data, et, e)
			w := et.Width()
			assert.Len(t, res.Samples, len(data)/w, "%s/%s", et, e)
			assert.Equal(t, len(data)%w, res.Truncated, "%s/%s", et, e)
		}
	}
}

func TestDecodeEmptyBuffer(t *testing.T) {
	for _, et := range AllElementTypes() {
		res := Decode(nil, et, Little)
		assert.Empty(t, res.Samples, "%s", et)
		assert.Zero(t, res.Truncated, "%s", et)
	}
}

func TestDecodeTextTypes(t *testing.T) {
	data := []byte{0x41, 0x42, 0x00}
	for _, et := range []ElementType{StringText, OpaqueBlob} {
		res := Decode(data, et, Little)
		assert.True(t, res.Text)
		assert.Equal(t, []float64{65, 66, 0}, res.Samples)
	}
}

func TestDecodeEndianness(t *testing.T) {
	data := []byte{0x01, 0x02}
	le := Decode(data, UInt16, Little)
	be := Decode(data, UInt16, Big)
	assert.Equal(t, float64(0x0201), le.Samples[0])
	assert.Equal(t, float64(0x0102), be.Samples[0])
}

func TestEncodeRoundTrip(t *testing.T) {
	cases := map[ElementType][]float64{
		Int8:    {-128, -1, 0, 1, 127},
		UInt8:   {0, 1, 200, 255},
		Int16:   {-32768, -7, 0, 1234, 32767},
		UInt16:  {0, 9, 65535},
		Int32:   {-2147483648, -1, 0, 1, 2147483647},
		UInt32:  {0, 1, 4294967295},
		Float32: {-1.5, 0, 0.25, 1024},
		Float64: {-math.Pi, 0, 1e-12, 6.02e23},
	}

	for et, samples := range cases {
		for _, e := range []Endianness{Little, Big} {
			data, saturated := Encode(samples, et, e)
			assert.Zero(t, saturated, "%s/%s", et, e)
			res := Decode(data, et, e)
			assert.Equal(t, samples, res.Samples, "%s/%s", et, e)
		}
	}
}

func TestEncodeSaturation(t *testing.T) {
	data, saturated := Encode([]float64{300, -5, 42}, UInt8, Little)
	assert.Equal(t, 2, saturated)
	assert.Equal(t, []byte{255, 0, 42}, data)

	data, saturated = Encode([]float64{1e12, -1e12}, Int16, Big)
	assert.Equal(t, 2, saturated)
	res := Decode(data, Int16, Big)
	assert.Equal(t, []float64{32767, -32768}, res.Samples)
}

func TestEncodeNonFinite(t *testing.T) {
	data, saturated := Encode([]float64{math.NaN(), math.Inf(1), math.Inf(-1)}, Int8, Little)
	assert.Equal(t, 3, saturated)
	res := Decode(data, Int8, Little)
	assert.Equal(t, []float64{0, 127, -128}, res.Samples)

	// Float64 passes non-finite values through untouched.
	data, saturated = Encode([]float64{math.Inf(1)}, Float64, Little)
	assert.Zero(t, saturated)
	res = Decode(data, Float64, Little)
	assert.True(t, math.IsInf(res.Samples[0], 1))
}

func TestElementTypeCycling(t *testing.T) {
	all := AllElementTypes()
	cur := all[0]
	for range all {
		cur = cur.Next()
	}
	assert.Equal(t, all[0], cur, "Next cycles through all types")
	assert.Equal(t, all[len(all)-1], all[0].Prev())
	assert.Equal(t, all[0], all[len(all)-1].Next())
}

func TestEndiannessToggle(t *testing.T) {
	assert.Equal(t, Big, Little.Toggle())
	assert.Equal(t, Little, Big.Toggle())
}

func TestIsBinary(t *testing.T) {
	assert.False(t, IsBinary([]byte("hello\nworld\t")))
	assert.True(t, IsBinary([]byte{0x00, 0x41}))
	assert.True(t, IsBinary([]byte{0x1b, 0x5b}))
}

func TestFormatHex(t *testing.T) {
	out := FormatHex([]byte("ABCDEFGHIJKLMNOPQR"))
	assert.Contains(t, out, "00000000  41 42 43 44 45 46 47 48  49 4a 4b 4c 4d 4e 4f 50  |ABCDEFGHIJKLMNOP|")
	assert.Contains(t, out, "00000010  51 52 ")
	assert.Contains(t, out, "|QR|")
}

func TestParseValues(t *testing.T) {
	vals, err := ParseValues("1, 2.5  -3", Float32)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, -3}, vals)

	_, err = ParseValues("", Int8)
	assert.Error(t, err)

	_, err = ParseValues("1, x", Int8)
	assert.Error(t, err)

	_, err = ParseValues("1 2", StringText)
	assert.Error(t, err)
}
