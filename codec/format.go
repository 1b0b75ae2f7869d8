package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c360/wavescope/errors"
)

// IsBinary reports whether the bytes look like binary rather than printable
// text: any control character other than newline, carriage return, or tab.
func IsBinary(data []byte) bool {
	for _, b := range data {
		if b < 0x20 && b != '\n' && b != '\r' && b != '\t' {
			return true
		}
	}
	return false
}

// FormatHex renders a hex dump with offsets and an ASCII sidebar, 16 bytes
// per line.
func FormatHex(data []byte) string {
	var sb strings.Builder
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]

		fmt.Fprintf(&sb, "%08x  ", off)
		for j := 0; j < 16; j++ {
			if j < len(chunk) {
				fmt.Fprintf(&sb, "%02x ", chunk[j])
			} else {
				sb.WriteString("   ")
			}
			if j == 7 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(" |")
		for _, b := range chunk {
			if b >= 0x20 && b < 0x7f {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteString("|\n")
	}
	return sb.String()
}

// FormatSamples renders decoded values for display: fixed precision for
// float types, integer formatting otherwise.
func FormatSamples(samples []float64, t ElementType) string {
	if len(samples) == 0 {
		return "(no complete values)"
	}
	parts := make([]string, len(samples))
	for i, v := range samples {
		if t == Float32 || t == Float64 {
			parts[i] = strconv.FormatFloat(v, 'f', 6, 64)
		} else {
			parts[i] = strconv.FormatInt(int64(v), 10)
		}
	}
	return strings.Join(parts, ", ")
}

// ParseValues parses comma/space-separated numeric text into samples, for the
// editor's binary-entry mode. Text/blob targets are rejected.
func ParseValues(input string, t ElementType) ([]float64, error) {
	if !t.Numeric() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("binary encode not supported for %s", t),
			"codec", "ParseValues", "element type check")
	}

	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' '
	})
	if len(fields) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("no values to encode"),
			"codec", "ParseValues", "tokenize input")
	}

	samples := make([]float64, 0, len(fields))
	for _, tok := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
		if err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%q is not a valid %s", tok, t),
				"codec", "ParseValues", "parse token")
		}
		samples = append(samples, v)
	}
	return samples, nil
}
