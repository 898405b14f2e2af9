package bits

import (
	"errors"
	"fmt"
)

// FIELD EXTRACTION:
// Records stored on transit cards are packed bit strings: fields of arbitrary
// width follow each other without byte alignment. Bits are numbered
// most-significant first, so bit 0 is the MSB of byte 0 and bit 9 is the
// second most significant bit of byte 1.
//
//   byte 0          byte 1
//   7 6 5 4 3 2 1 0 7 6 5 4 3 2 1 0
//   |- 4 -|- 6 bits ---|- 6 bits --|
//
// Any extraction that would cross the end of the buffer fails with
// ErrTruncatedRecord and leaves the cursor where it was.

// MaxWidth is the widest field a single extraction can return.
const MaxWidth = 64

// MaxBCDDigits is the widest BCD field whose value fits a uint64.
const MaxBCDDigits = 19

var (
	// ErrTruncatedRecord is returned when a field extends past the end of the buffer.
	ErrTruncatedRecord = errors.New("truncated record")
	// ErrInvalidBCD is returned when a BCD nibble holds a value greater than 9.
	ErrInvalidBCD = errors.New("invalid BCD digit")
	// ErrInvalidWidth is returned for field widths outside 1..64.
	ErrInvalidWidth = errors.New("invalid field width")
)

// Reader is a cursor over a packed bit string.
// It is not safe for concurrent use; create one per decode call.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader positioned at bit 0 of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Len returns the total number of bits in the buffer.
func (r *Reader) Len() int {
	return len(r.buf) * 8
}

// Pos returns the current bit offset.
func (r *Reader) Pos() int {
	return r.pos
}

// Remaining returns the number of bits left after the cursor.
func (r *Reader) Remaining() int {
	return r.Len() - r.pos
}

// Seek moves the cursor to an absolute bit offset.
func (r *Reader) Seek(bit int) error {
	if bit < 0 || bit > r.Len() {
		return fmt.Errorf("%w: seek to bit %d of %d", ErrTruncatedRecord, bit, r.Len())
	}
	r.pos = bit
	return nil
}

// Skip advances the cursor by n bits.
func (r *Reader) Skip(n int) error {
	if n < 0 || n > r.Remaining() {
		return fmt.Errorf("%w: skip %d bits at offset %d, %d left", ErrTruncatedRecord, n, r.pos, r.Remaining())
	}
	r.pos += n
	return nil
}

// Uint extracts an unsigned field of n bits and advances the cursor.
func (r *Reader) Uint(n int) (uint64, error) {
	if err := r.check(n); err != nil {
		return 0, err
	}
	v := extract(r.buf, r.pos, n)
	r.pos += n
	return v, nil
}

// Int extracts an n-bit two's complement field and advances the cursor.
func (r *Reader) Int(n int) (int64, error) {
	u, err := r.Uint(n)
	if err != nil {
		return 0, err
	}
	shift := uint(MaxWidth - n)
	return int64(u<<shift) >> shift, nil
}

// BCD extracts a field of the given number of decimal digits, one per
// nibble, most significant digit first. The cursor is only advanced when
// every digit is valid.
func (r *Reader) BCD(digits int) (uint64, error) {
	if digits < 1 || digits > MaxBCDDigits {
		return 0, fmt.Errorf("%w: %d BCD digits", ErrInvalidWidth, digits)
	}
	if digits*4 > r.Remaining() {
		return 0, fmt.Errorf("%w: need %d bits at offset %d, %d left", ErrTruncatedRecord, digits*4, r.pos, r.Remaining())
	}

	var v uint64
	for i := 0; i < digits; i++ {
		d := extract(r.buf, r.pos+i*4, 4)
		if d > 9 {
			return 0, fmt.Errorf("%w: nibble 0x%X at bit %d", ErrInvalidBCD, d, r.pos+i*4)
		}
		v = v*10 + d
	}
	r.pos += digits * 4
	return v, nil
}

func (r *Reader) check(n int) error {
	if n < 1 || n > MaxWidth {
		return fmt.Errorf("%w: %d bits", ErrInvalidWidth, n)
	}
	if n > r.Remaining() {
		return fmt.Errorf("%w: need %d bits at offset %d, %d left", ErrTruncatedRecord, n, r.pos, r.Remaining())
	}
	return nil
}

// extract reads n bits starting at bit offset pos. Bounds are checked by the caller.
func extract(buf []byte, pos, n int) uint64 {
	var v uint64
	for n > 0 {
		off := pos & 7
		avail := 8 - off
		take := avail
		if n < take {
			take = n
		}
		chunk := (buf[pos>>3] >> uint(avail-take)) & byte((1<<uint(take))-1)
		v = v<<uint(take) | uint64(chunk)
		pos += take
		n -= take
	}
	return v
}
