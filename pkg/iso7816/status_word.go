package iso7816

import "fmt"

// StatusWord is the SW1-SW2 trailer of a response.
//
// 9000 is success. 61XX announces XX more bytes for GET RESPONSE and 6CXX
// asks for the command again with Le = XX. 62XX and 63XX are warnings and
// 64XX to 6FXX errors. Any other SW1, such as the 91XX family of DESFire
// native commands, is left to the command set that produced it.
type StatusWord uint16

// NewStatusWord assembles a status word.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// SW1 returns the high byte.
func (sw StatusWord) SW1() byte { return byte(sw >> 8) }

// SW2 returns the low byte.
func (sw StatusWord) SW2() byte { return byte(sw) }

// IsSuccess reports 9000 or 61XX.
func (sw StatusWord) IsSuccess() bool {
	return sw == SW_NO_ERROR || sw.SW1() == 0x61
}

// IsWarning reports 62XX or 63XX.
func (sw StatusWord) IsWarning() bool {
	return sw.SW1() == 0x62 || sw.SW1() == 0x63
}

// IsError reports 64XX to 6FXX.
func (sw StatusWord) IsError() bool {
	return sw.SW1() >= 0x64 && sw.SW1() <= 0x6F
}

// Verbose describes the status word.
func (sw StatusWord) Verbose() string {
	switch sw.SW1() {
	case 0x61:
		return fmt.Sprintf("Process completed, %d bytes available", sw.SW2())
	case 0x6C:
		return fmt.Sprintf("Wrong length, correct Le is %d", sw.SW2())
	}
	if name, ok := statusWordNames[sw]; ok {
		return fmt.Sprintf("[%04X] %s", uint16(sw), name)
	}
	return fmt.Sprintf("[%04X] %s", uint16(sw), sw.category())
}

func (sw StatusWord) category() string {
	switch sw.SW1() {
	case 0x62:
		return "Warning: NV memory unchanged"
	case 0x63:
		return "Warning: NV memory changed"
	case 0x64:
		return "Execution Error: NV memory unchanged"
	case 0x65:
		return "Execution Error: NV memory changed"
	case 0x66:
		return "Execution Error: Security issue"
	case 0x68:
		return "Checking Error: Function not supported"
	case 0x69:
		return "Checking Error: Command not allowed"
	case 0x6A:
		return "Checking Error: Wrong parameters"
	case 0x91:
		return "Proprietary status"
	default:
		return "Unknown Status"
	}
}

// Interindustry status words met while reading a card.
const (
	SW_NO_ERROR StatusWord = 0x9000

	SW_WARN_EOF_REACHED StatusWord = 0x6282

	SW_ERR_MEMORY_FAILURE          StatusWord = 0x6581
	SW_ERR_WRONG_LENGTH            StatusWord = 0x6700
	SW_ERR_SECURITY_STATUS_NOT_SAT StatusWord = 0x6982
	SW_ERR_COND_OF_USE_NOT_SAT     StatusWord = 0x6985
	SW_ERR_FUNC_NOT_SUPPORTED      StatusWord = 0x6A81
	SW_ERR_FILE_NOT_FOUND          StatusWord = 0x6A82
	SW_ERR_RECORD_NOT_FOUND        StatusWord = 0x6A83
	SW_ERR_WRONG_P1P2              StatusWord = 0x6B00
	SW_ERR_INS_INVALID             StatusWord = 0x6D00
	SW_ERR_CLA_NOT_SUPPORTED       StatusWord = 0x6E00
	SW_ERR_UNKNOWN                 StatusWord = 0x6F00
)
