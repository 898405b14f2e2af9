package bits

import (
	"errors"
	"math/rand"
	"testing"
)

func TestReader_Uint(t *testing.T) {
	// 1011 0011 | 1100 0101
	r := NewReader([]byte{0xB3, 0xC5})

	steps := []struct {
		width int
		want  uint64
	}{
		{1, 1},
		{3, 0b011},
		{6, 0b0011_11},
		{6, 0b000101},
	}

	for i, s := range steps {
		got, err := r.Uint(s.width)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if got != s.want {
			t.Errorf("step %d: Uint(%d) = %b; want %b", i, s.width, got, s.want)
		}
	}

	if r.Remaining() != 0 {
		t.Errorf("Remaining = %d; want 0", r.Remaining())
	}
}

func TestReader_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1997))

	for n := 1; n <= MaxWidth; n++ {
		max := ^uint64(0) >> uint(MaxWidth-n)
		values := []uint64{0, 1 & max, max, max >> 1, rng.Uint64() & max}

		for _, v := range values {
			// Misalign the field on purpose to exercise byte crossings.
			lead := n % 7
			w := NewWriter(10)
			if err := w.Skip(lead); err != nil {
				t.Fatal(err)
			}
			if err := w.PutUint(n, v); err != nil {
				t.Fatalf("PutUint(%d, %d): %v", n, v, err)
			}

			r := NewReader(w.Bytes())
			if err := r.Skip(lead); err != nil {
				t.Fatal(err)
			}
			got, err := r.Uint(n)
			if err != nil {
				t.Fatalf("Uint(%d): %v", n, err)
			}
			if got != v {
				t.Errorf("width %d: got %d; want %d", n, got, v)
			}
			if r.Pos() != lead+n {
				t.Errorf("width %d: cursor at %d; want %d", n, r.Pos(), lead+n)
			}
		}
	}
}

func TestReader_Int(t *testing.T) {
	tests := []struct {
		name  string
		width int
		value int64
	}{
		{"minus one in 4 bits", 4, -1},
		{"min in 4 bits", 4, -8},
		{"max in 4 bits", 4, 7},
		{"negative 12 bits", 12, -1234},
		{"min int64", 64, -1 << 63},
		{"one bit", 1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(8)
			if err := w.PutInt(tt.width, tt.value); err != nil {
				t.Fatal(err)
			}
			got, err := NewReader(w.Bytes()).Int(tt.width)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.value {
				t.Errorf("Int(%d) = %d; want %d", tt.width, got, tt.value)
			}
		})
	}
}

func TestReader_BCD(t *testing.T) {
	got, err := NewReader([]byte{0x12, 0x34}).BCD(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1234 {
		t.Errorf("BCD = %d; want 1234", got)
	}

	for _, raw := range [][]byte{{0x1A, 0x34}, {0xF2, 0x34}, {0x12, 0x3C}} {
		r := NewReader(raw)
		if _, err := r.BCD(4); !errors.Is(err, ErrInvalidBCD) {
			t.Errorf("BCD(% X) error = %v; want ErrInvalidBCD", raw, err)
		}
		if r.Pos() != 0 {
			t.Errorf("BCD(% X) moved cursor to %d on error", raw, r.Pos())
		}
	}
}

func TestReader_Truncation(t *testing.T) {
	tests := []struct {
		name  string
		buf   []byte
		skip  int
		width int
	}{
		{"empty buffer", nil, 0, 1},
		{"one bit past end", []byte{0xFF}, 0, 9},
		{"after skip", []byte{0xFF, 0xFF}, 10, 7},
		{"wide field", make([]byte, 7), 0, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.buf)
			if err := r.Skip(tt.skip); err != nil {
				t.Fatal(err)
			}
			if _, err := r.Uint(tt.width); !errors.Is(err, ErrTruncatedRecord) {
				t.Errorf("Uint(%d) error = %v; want ErrTruncatedRecord", tt.width, err)
			}
			if r.Pos() != tt.skip {
				t.Errorf("cursor moved to %d on error", r.Pos())
			}
		})
	}

	r := NewReader([]byte{0x00})
	if _, err := r.BCD(3); !errors.Is(err, ErrTruncatedRecord) {
		t.Errorf("BCD(3) on one byte error = %v; want ErrTruncatedRecord", err)
	}
	if err := r.Seek(9); !errors.Is(err, ErrTruncatedRecord) {
		t.Errorf("Seek(9) error = %v; want ErrTruncatedRecord", err)
	}
}

func TestReader_InvalidWidth(t *testing.T) {
	r := NewReader(make([]byte, 16))
	for _, n := range []int{0, -3, 65} {
		if _, err := r.Uint(n); !errors.Is(err, ErrInvalidWidth) {
			t.Errorf("Uint(%d) error = %v; want ErrInvalidWidth", n, err)
		}
	}
}
