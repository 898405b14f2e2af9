package tlv

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// writeFields appends one line per non-empty byte field of v and one per
// unknown tag. Nested templates are left to the caller. The `fmt` struct
// tag selects how a value is rendered: "ascii", "int" or plain hex.
func writeFields(sb *strings.Builder, prefix string, v any) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return
		}
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < typ.NumField(); i++ {
		field, meta := val.Field(i), typ.Field(i)

		if field.Type() == tlvSliceType {
			for _, p := range field.Interface().([]bertlv.TLV) {
				fmt.Fprintf(sb, "\n    - %s.Unknown Tag %s: %X", prefix, strings.ToUpper(p.Tag), p.Value)
			}
			continue
		}
		if field.Kind() != reflect.Slice || field.Type().Elem().Kind() != reflect.Uint8 || field.Len() == 0 {
			continue
		}

		name := meta.Name
		if tag := meta.Tag.Get("tlv"); tag != "" {
			name = fmt.Sprintf("%s (%s)", name, tag)
		}
		fmt.Fprintf(sb, "\n    - %s.%s: %s", prefix, name, render(field.Bytes(), meta.Tag.Get("fmt")))
	}
}

func render(data []byte, format string) string {
	switch format {
	case "ascii":
		return fmt.Sprintf("%X (%q)", data, Printable(data))
	case "int":
		var n uint64
		for _, b := range data {
			n = n<<8 | uint64(b)
		}
		return fmt.Sprintf("%X (Dec: %d)", data, n)
	default:
		return fmt.Sprintf("%X", data)
	}
}

// Printable replaces every byte outside printable ASCII with a dot.
func Printable(data []byte) string {
	out := make([]byte, len(data))
	for i, b := range data {
		if b < 0x20 || b > 0x7E {
			b = '.'
		}
		out[i] = b
	}
	return string(out)
}
