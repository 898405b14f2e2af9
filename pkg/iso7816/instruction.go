package iso7816

import (
	"fmt"

	"github.com/gregLibert/travel-card/pkg/bits"
)

// In the interindustry class, bit 1 of INS selects a BER-TLV encoded data
// field (B0 READ BINARY, B1 READ BINARY with offset data object). INS
// values 6X and 9X collide with SW1 procedure bytes in T=0 and are invalid.

// InsCode is the instruction byte.
type InsCode byte

// Interindustry instructions a reader may issue to a contactless card.
const (
	INS_EXTERNAL_AUTHENTICATE InsCode = 0x82
	INS_GET_CHALLENGE         InsCode = 0x84
	INS_INTERNAL_AUTHENTICATE InsCode = 0x88
	INS_SELECT                InsCode = 0xA4
	INS_READ_BINARY           InsCode = 0xB0
	INS_READ_BINARY_BER       InsCode = 0xB1
	INS_READ_RECORD           InsCode = 0xB2
	INS_READ_RECORD_BER       InsCode = 0xB3
	INS_GET_RESPONSE          InsCode = 0xC0
	INS_ENVELOPE              InsCode = 0xC2
	INS_GET_DATA              InsCode = 0xCA
)

// Instruction is a decoded INS byte.
type Instruction struct {
	Raw      InsCode
	IsBERTLV bool
}

// NewInstruction validates an interindustry INS byte.
func NewInstruction(ins InsCode) (Instruction, error) {
	switch byte(ins) & 0xF0 {
	case 0x60, 0x90:
		return Instruction{}, fmt.Errorf("invalid INS 0x%02X: 6X and 9X are reserved", byte(ins))
	}
	return Instruction{Raw: ins, IsBERTLV: bits.IsSet(byte(ins), 1)}, nil
}

// NewProprietaryInstruction wraps the INS byte of a proprietary class
// command. DESFire native codes such as 6C GetValue use the reserved
// ranges, so no validation applies.
func NewProprietaryInstruction(ins InsCode) Instruction {
	return Instruction{Raw: ins}
}

// Verbose describes the instruction.
func (i Instruction) Verbose() string {
	format := "Standard"
	if i.IsBERTLV {
		format = "BER-TLV"
	}
	return fmt.Sprintf("INS: 0x%02X | Command: %s | Format: %s", byte(i.Raw), i.Raw, format)
}
