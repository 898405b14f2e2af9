package bits

import (
	"errors"
	"fmt"
)

// ErrOverflow is returned when a value does not fit in the requested width.
var ErrOverflow = errors.New("value does not fit field")

// Writer packs MSB-first fields into a fixed-size buffer.
// It is the inverse of Reader and is used to build card images.
type Writer struct {
	buf []byte
	pos int
}

// NewWriter returns a Writer over a zeroed buffer of size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, size)}
}

// Pos returns the current bit offset.
func (w *Writer) Pos() int {
	return w.pos
}

// Bytes returns the underlying buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Seek moves the cursor to an absolute bit offset.
func (w *Writer) Seek(bit int) error {
	if bit < 0 || bit > len(w.buf)*8 {
		return fmt.Errorf("%w: seek to bit %d of %d", ErrTruncatedRecord, bit, len(w.buf)*8)
	}
	w.pos = bit
	return nil
}

// Skip advances the cursor by n bits without writing.
func (w *Writer) Skip(n int) error {
	return w.Seek(w.pos + n)
}

// PutUint writes the low n bits of v.
func (w *Writer) PutUint(n int, v uint64) error {
	if n < 1 || n > MaxWidth {
		return fmt.Errorf("%w: %d bits", ErrInvalidWidth, n)
	}
	if n < MaxWidth && v>>uint(n) != 0 {
		return fmt.Errorf("%w: %d in %d bits", ErrOverflow, v, n)
	}
	if w.pos+n > len(w.buf)*8 {
		return fmt.Errorf("%w: need %d bits at offset %d", ErrTruncatedRecord, n, w.pos)
	}

	for i := n - 1; i >= 0; i-- {
		bit := byte(v>>uint(i)) & 1
		idx := w.pos >> 3
		shift := uint(7 - w.pos&7)
		w.buf[idx] = w.buf[idx]&^(1<<shift) | bit<<shift
		w.pos++
	}
	return nil
}

// PutInt writes v as an n-bit two's complement field.
func (w *Writer) PutInt(n int, v int64) error {
	if n < 1 || n > MaxWidth {
		return fmt.Errorf("%w: %d bits", ErrInvalidWidth, n)
	}
	if n < MaxWidth {
		limit := int64(1) << uint(n-1)
		if v < -limit || v >= limit {
			return fmt.Errorf("%w: %d in %d signed bits", ErrOverflow, v, n)
		}
	}
	mask := ^uint64(0) >> uint(MaxWidth-n)
	return w.PutUint(n, uint64(v)&mask)
}

// PutBCD writes v as the given number of decimal digits, one per nibble.
func (w *Writer) PutBCD(digits int, v uint64) error {
	if digits < 1 || digits > MaxBCDDigits {
		return fmt.Errorf("%w: %d BCD digits", ErrInvalidWidth, digits)
	}
	nibbles := make([]uint64, digits)
	for i := digits - 1; i >= 0; i-- {
		nibbles[i] = v % 10
		v /= 10
	}
	if v != 0 {
		return fmt.Errorf("%w: more than %d digits", ErrOverflow, digits)
	}
	if w.pos+digits*4 > len(w.buf)*8 {
		return fmt.Errorf("%w: need %d bits at offset %d", ErrTruncatedRecord, digits*4, w.pos)
	}
	for _, d := range nibbles {
		if err := w.PutUint(4, d); err != nil {
			return err
		}
	}
	return nil
}
