package iso7816

import (
	"fmt"

	"github.com/gregLibert/travel-card/pkg/bits"
)

// The CLA byte (ISO/IEC 7816-4, 5.4.1):
//
//	b8       1 = proprietary class (DESFire native wrapping uses 90)
//	b7       0 = first interindustry (channels 0-3), 1 = further (4-19)
//	b5       command chaining
//	b2-b1    channel number, first interindustry
//	b4-b1    channel number minus 4, further interindustry
//
// Secure messaging bits are carried through Raw untouched.

// Class is a decoded CLA byte.
type Class struct {
	Raw           byte
	IsProprietary bool
	IsChained     bool
	Channel       uint8
}

// NewClass decodes cla. FF is reserved for PPS and rejected.
func NewClass(cla byte) (Class, error) {
	if cla == 0xFF {
		return Class{}, fmt.Errorf("invalid CLA value: 0xFF is reserved")
	}

	c := Class{Raw: cla}
	if bits.IsSet(cla, 8) {
		c.IsProprietary = true
		return c, nil
	}

	c.IsChained = bits.IsSet(cla, 5)
	if bits.IsSet(cla, 7) {
		c.Channel = bits.GetRange(cla, 4, 1) + 4
	} else {
		c.Channel = bits.GetRange(cla, 2, 1)
	}
	return c, nil
}

// Encode returns the CLA byte with the chaining bit and channel applied.
func (c *Class) Encode() (byte, error) {
	if c.IsProprietary {
		return c.Raw, nil
	}
	if c.Channel > 19 {
		return 0, fmt.Errorf("channel %d out of range (max 19)", c.Channel)
	}

	var res byte
	if c.Channel <= 3 {
		res = c.Raw&0x0C | c.Channel // keep the two SM bits
	} else {
		res = bits.Set(c.Raw&0x20, 7) | (c.Channel - 4) // keep the SM bit
	}
	if c.IsChained {
		res = bits.Set(res, 5)
	} else {
		res = bits.Clear(res, 5)
	}
	return res, nil
}

// Verbose describes the class.
func (c Class) Verbose() string {
	if c.IsProprietary {
		return fmt.Sprintf("Class: Proprietary (0x%02X)", c.Raw)
	}
	chaining := "last or only command"
	if c.IsChained {
		chaining = "more commands follow"
	}
	return fmt.Sprintf("Class: Interindustry (0x%02X), channel %d, %s", c.Raw, c.Channel, chaining)
}
