package tlv

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/moov-io/bertlv"
)

type entry struct {
	Number []byte `tlv:"82"`
}

type envelope struct {
	Name    []byte       `tlv:"80" fmt:"ascii"`
	Header  entry        `tlv:"A5"`
	Extra   *entry       `tlv:"A6"`
	Entries []entry      `tlv:"E1"`
	Rest    []bertlv.TLV `tlv:",unknown"`
	Ignored []byte
}

func TestUnmarshal(t *testing.T) {
	raw := Hex(
		"80 03 41 42 43",
		"A5 03 82 01 FF",
		"A6 03 82 01 EE",
		"E1 03 82 01 01",
		"E1 03 82 01 02",
		"DF01 01 BB",
	)

	var got envelope
	if err := Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	want := envelope{
		Name:    []byte("ABC"),
		Header:  entry{Number: []byte{0xFF}},
		Extra:   &entry{Number: []byte{0xEE}},
		Entries: []entry{{Number: []byte{0x01}}, {Number: []byte{0x02}}},
		Rest:    []bertlv.TLV{{Tag: "DF01", Value: []byte{0xBB}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshal_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		target any
		want   string
	}{
		{"not a pointer", Hex("80 00"), envelope{}, "non-nil pointer"},
		{"not a struct", Hex("80 00"), new(int), "non-nil pointer"},
		{"truncated", Hex("80 05 41"), &envelope{}, "bertlv decode failed"},
		{"repeated single tag", Hex("80 01 41 80 01 42"), &envelope{}, "repeated for single field Name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Unmarshal(tt.data, tt.target)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestMarshal(t *testing.T) {
	src := &envelope{
		Name:    []byte("ABC"),
		Header:  entry{Number: []byte{0xFF}},
		Entries: []entry{{Number: []byte{0x01}}},
		Rest:    []bertlv.TLV{{Tag: "DF01", Value: []byte{0xBB}}},
		Ignored: []byte{0x00},
	}

	packets, err := Marshal(src)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	got, err := bertlv.Encode(packets)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	want := Hex(
		"80 03 41 42 43",
		"A5 03 82 01 FF",
		"E1 03 82 01 01",
		"DF01 01 BB",
	)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("encoding mismatch (-want +got):\n%s", diff)
	}

	if _, err := Marshal(42); err == nil {
		t.Error("expected an error for a non-struct source")
	}
}

func TestFind(t *testing.T) {
	data := Hex("6F 03 84 01 AA", "E0 03 82 01 08")

	got, err := Find(data, "e0")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if diff := cmp.Diff(Hex("82 01 08"), got); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}

	if _, err := Find(data, "A5"); err == nil || !strings.Contains(err.Error(), "tag A5 not found") {
		t.Errorf("unexpected error for a missing tag: %v", err)
	}
}
