package iso7816

import (
	"fmt"
)

// A command APDU is a 4-byte header (CLA INS P1 P2) optionally followed by
// Lc and the data field, then Le. Lc and Le take one byte each unless the
// data is longer than 255 bytes or more than 256 bytes are expected, in
// which case the extended form is used for both.
//
// A response APDU is the data field followed by the two status bytes.

// Length limits of the short and extended forms.
const (
	MaxShortLc    = 255
	MaxShortLe    = 256 // encoded as 00
	MaxExtendedLc = 65535
	MaxExtendedLe = 65536 // encoded as 0000
)

// CommandAPDU is a command sent to the card.
type CommandAPDU struct {
	Class       Class
	Instruction Instruction
	P1, P2      byte
	Data        []byte
	Ne          int // expected response length, 0 for none
}

// NewCommandAPDU builds a command.
func NewCommandAPDU(cla Class, ins Instruction, p1, p2 byte, data []byte, ne int) *CommandAPDU {
	return &CommandAPDU{Class: cla, Instruction: ins, P1: p1, P2: p2, Data: data, Ne: ne}
}

// Bytes encodes the command, picking the short form whenever it fits.
func (c *CommandAPDU) Bytes() ([]byte, error) {
	nc, ne := len(c.Data), c.Ne
	if nc > MaxExtendedLc {
		return nil, fmt.Errorf("data field of %d bytes exceeds %d", nc, MaxExtendedLc)
	}
	if ne < 0 || ne > MaxExtendedLe {
		return nil, fmt.Errorf("expected length %d out of range", ne)
	}

	cla, err := c.Class.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode Class: %w", err)
	}
	out := make([]byte, 0, 4+3+nc+3)
	out = append(out, cla, byte(c.Instruction.Raw), c.P1, c.P2)

	if nc <= MaxShortLc && ne <= MaxShortLe {
		if nc > 0 {
			out = append(out, byte(nc))
			out = append(out, c.Data...)
		}
		if ne > 0 {
			out = append(out, byte(ne)) // 256 wraps to 00
		}
		return out, nil
	}

	if nc > 0 {
		out = append(out, 0x00, byte(nc>>8), byte(nc))
		out = append(out, c.Data...)
	}
	if ne > 0 {
		if nc == 0 {
			out = append(out, 0x00)
		}
		out = append(out, byte(ne>>8), byte(ne)) // 65536 wraps to 0000
	}
	return out, nil
}

// String returns the command header and lengths.
func (c *CommandAPDU) String() string {
	return fmt.Sprintf("%s | P1: %02X, P2: %02X | Lc: %d | Le: %d",
		c.Instruction.Verbose(), c.P1, c.P2, len(c.Data), c.Ne)
}

// ResponseAPDU is the reply of the card.
type ResponseAPDU struct {
	Data   []byte
	Status StatusWord
}

// ParseResponseAPDU splits raw into data and status word.
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}
	n := len(raw) - 2
	return &ResponseAPDU{
		Data:   raw[:n],
		Status: NewStatusWord(raw[n], raw[n+1]),
	}, nil
}

// String returns the data length and the status.
func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.Verbose())
}
