// Package tlv maps BER-TLV data onto Go structs through `tlv` struct tags
// and defines the card dump format built on top of it.
//
// A field tagged `tlv:"84"` receives the value of tag 84. Byte slices get
// the raw value, structs are decoded from the nested template, and slices
// of structs collect every occurrence of the tag. A []bertlv.TLV field
// tagged `tlv:",unknown"` keeps the tags no other field claimed.
package tlv

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

const unknownTag = ",unknown"

var tlvSliceType = reflect.TypeOf([]bertlv.TLV(nil))

// Unmarshal decodes data and maps it onto target, a pointer to a struct.
func Unmarshal(data []byte, target any) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("bertlv decode failed: %w", err)
	}
	return UnmarshalPackets(packets, target)
}

// UnmarshalPackets maps already decoded packets onto target.
func UnmarshalPackets(packets []bertlv.TLV, target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a non-nil pointer to a struct, got %T", target)
	}
	return decodeStruct(packets, v.Elem())
}

func decodeStruct(packets []bertlv.TLV, v reflect.Value) error {
	t := v.Type()
	claimed := make([]bool, len(packets))
	unknown := -1

	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("tlv")
		switch {
		case tag == "":
			continue
		case tag == unknownTag:
			if t.Field(i).Type == tlvSliceType {
				unknown = i
			}
			continue
		}

		seen := false
		for idx, p := range packets {
			if !strings.EqualFold(p.Tag, tag) {
				continue
			}
			field := v.Field(i)
			if seen && !isRepeated(field) {
				return fmt.Errorf("tag %s: repeated for single field %s", strings.ToUpper(tag), t.Field(i).Name)
			}
			if err := assign(p, field); err != nil {
				return fmt.Errorf("tag %s: %w", strings.ToUpper(tag), err)
			}
			seen = true
			claimed[idx] = true
		}
	}

	if unknown < 0 {
		return nil
	}
	var rest []bertlv.TLV
	for idx, p := range packets {
		if !claimed[idx] {
			rest = append(rest, p)
		}
	}
	if len(rest) > 0 {
		v.Field(unknown).Set(reflect.ValueOf(rest))
	}
	return nil
}

// isRepeated reports whether field collects every occurrence of its tag.
func isRepeated(field reflect.Value) bool {
	return field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.Struct
}

func assign(p bertlv.TLV, field reflect.Value) error {
	switch {
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.Uint8:
		raw, err := rawValue(p)
		if err != nil {
			return err
		}
		field.SetBytes(raw)
		return nil

	case isRepeated(field):
		elem := reflect.New(field.Type().Elem()).Elem()
		if err := decodeNested(p, elem); err != nil {
			return err
		}
		field.Set(reflect.Append(field, elem))
		return nil

	case field.Kind() == reflect.Struct:
		return decodeNested(p, field)

	case field.Kind() == reflect.Pointer && field.Type().Elem().Kind() == reflect.Struct:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return decodeNested(p, field.Elem())
	}
	return fmt.Errorf("unsupported field type %s", field.Type())
}

func decodeNested(p bertlv.TLV, v reflect.Value) error {
	if len(p.TLVs) > 0 {
		return decodeStruct(p.TLVs, v)
	}
	packets, err := bertlv.Decode(p.Value)
	if err != nil {
		return fmt.Errorf("bertlv decode failed: %w", err)
	}
	return decodeStruct(packets, v)
}

// rawValue returns the value bytes of p, re-encoding constructed values.
func rawValue(p bertlv.TLV) ([]byte, error) {
	if len(p.TLVs) > 0 {
		return bertlv.Encode(p.TLVs)
	}
	return p.Value, nil
}

// Marshal builds the packets of source, a struct or pointer to one, in
// field order. Empty byte slices are left out.
func Marshal(source any) ([]bertlv.TLV, error) {
	v := reflect.ValueOf(source)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("source is a nil pointer")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("source must be a struct, got %T", source)
	}
	return encodeStruct(v)
}

func encodeStruct(v reflect.Value) ([]bertlv.TLV, error) {
	t := v.Type()
	var out []bertlv.TLV

	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("tlv")
		field := v.Field(i)
		switch {
		case tag == "":
		case tag == unknownTag:
			if field.Type() == tlvSliceType {
				out = append(out, field.Interface().([]bertlv.TLV)...)
			}
		case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.Uint8:
			if field.Len() > 0 {
				out = append(out, bertlv.TLV{Tag: strings.ToUpper(tag), Value: field.Bytes()})
			}
		case isRepeated(field):
			for j := 0; j < field.Len(); j++ {
				nested, err := encodeStruct(field.Index(j))
				if err != nil {
					return nil, err
				}
				out = append(out, bertlv.TLV{Tag: strings.ToUpper(tag), TLVs: nested})
			}
		case field.Kind() == reflect.Struct:
			nested, err := encodeStruct(field)
			if err != nil {
				return nil, err
			}
			out = append(out, bertlv.TLV{Tag: strings.ToUpper(tag), TLVs: nested})
		case field.Kind() == reflect.Pointer && field.Type().Elem().Kind() == reflect.Struct:
			if field.IsNil() {
				continue
			}
			nested, err := encodeStruct(field.Elem())
			if err != nil {
				return nil, err
			}
			out = append(out, bertlv.TLV{Tag: strings.ToUpper(tag), TLVs: nested})
		default:
			return nil, fmt.Errorf("tag %s: unsupported field type %s", tag, field.Type())
		}
	}
	return out, nil
}

// Find returns the value of the first top-level occurrence of tag in data.
func Find(data []byte, tag string) ([]byte, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, err
	}
	for _, p := range packets {
		if strings.EqualFold(p.Tag, tag) {
			return rawValue(p)
		}
	}
	return nil, fmt.Errorf("tag %s not found", strings.ToUpper(tag))
}
