// Package desfire navigates the application and file structure of MIFARE
// DESFire cards using native commands wrapped in ISO 7816-4 APDUs.
//
// NATIVE COMMAND WRAPPING:
// A native command byte becomes the INS of an APDU with CLA 0x90 and
// P1 = P2 = 0x00; its parameters travel in the data field and Le is 0x00.
// The card answers with SW1 = 0x91 and the native status code in SW2.
//
//	native:  5A 14 20 EF
//	wrapped: 90 5A 00 00 03 14 20 EF 00
//
// Responses longer than one frame end with status 0xAF (additional frame);
// the host then sends command 0xAF until the status becomes 0x00.
package desfire

import (
	"fmt"

	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/iso7816"
)

// ClassNative is the CLA byte of wrapped native commands.
const ClassNative byte = 0x90

// Native command codes.
const (
	CmdSelectApplication iso7816.InsCode = 0x5A
	CmdGetValue          iso7816.InsCode = 0x6C
	CmdReadRecords       iso7816.InsCode = 0xBB
	CmdReadData          iso7816.InsCode = 0xBD
	CmdAdditionalFrame   iso7816.InsCode = 0xAF
)

// ValueSize is the length of a value file answer: a little-endian int32.
const ValueSize = 4

// FileTypeValue is the DESFire file type code of value files.
const FileTypeValue byte = 0x02

// SW1 of every wrapped native response.
const statusPrefix byte = 0x91

// Status is a native DESFire status code (SW2 of a wrapped response).
type Status byte

const (
	StatusOK                  Status = 0x00
	StatusNoChanges           Status = 0x0C
	StatusOutOfMemory         Status = 0x0E
	StatusIllegalCommand      Status = 0x1C
	StatusIntegrityError      Status = 0x1E
	StatusNoSuchKey           Status = 0x40
	StatusLengthError         Status = 0x7E
	StatusPermissionDenied    Status = 0x9D
	StatusParameterError      Status = 0x9E
	StatusApplicationNotFound Status = 0xA0
	StatusApplicationError    Status = 0xA1
	StatusAuthenticationError Status = 0xAE
	StatusAdditionalFrame     Status = 0xAF
	StatusBoundaryError       Status = 0xBE
	StatusCommandAborted      Status = 0xCA
	StatusDuplicateError      Status = 0xDE
	StatusFileNotFound        Status = 0xF0
)

var statusNames = map[Status]string{
	StatusOK:                  "OPERATION_OK",
	StatusNoChanges:           "NO_CHANGES",
	StatusOutOfMemory:         "OUT_OF_EEPROM_ERROR",
	StatusIllegalCommand:      "ILLEGAL_COMMAND_CODE",
	StatusIntegrityError:      "INTEGRITY_ERROR",
	StatusNoSuchKey:           "NO_SUCH_KEY",
	StatusLengthError:         "LENGTH_ERROR",
	StatusPermissionDenied:    "PERMISSION_DENIED",
	StatusParameterError:      "PARAMETER_ERROR",
	StatusApplicationNotFound: "APPLICATION_NOT_FOUND",
	StatusApplicationError:    "APPL_INTEGRITY_ERROR",
	StatusAuthenticationError: "AUTHENTICATION_ERROR",
	StatusAdditionalFrame:     "ADDITIONAL_FRAME",
	StatusBoundaryError:       "BOUNDARY_ERROR",
	StatusCommandAborted:      "COMMAND_ABORTED",
	StatusDuplicateError:      "DUPLICATE_ERROR",
	StatusFileNotFound:        "FILE_NOT_FOUND",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(0x%02X)", byte(s))
}

// Word returns the wrapped status word for s.
func (s Status) Word() iso7816.StatusWord {
	return iso7816.NewStatusWord(statusPrefix, byte(s))
}

// statusError classifies a failed native command.
//
// An aborted command is a link-level interruption and may be retried. Every
// other failure means the card does not hold what the layout expects: the
// application is missing, a file is absent or protected, or offsets fall
// outside the file.
func statusError(cmd iso7816.InsCode, sw iso7816.StatusWord) error {
	if sw.SW1() != statusPrefix {
		return fmt.Errorf("%w: command %02X answered %s, not a DESFire card", card.ErrUnsupportedCard, byte(cmd), sw.Verbose())
	}
	st := Status(sw.SW2())
	if st == StatusCommandAborted {
		return fmt.Errorf("%w: command %02X: %s", card.ErrTransport, byte(cmd), st)
	}
	return fmt.Errorf("%w: command %02X: %s", card.ErrUnsupportedCard, byte(cmd), st)
}

// le24 encodes v as a 3-byte little-endian integer.
func le24(v int) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16)}
}

// fromLE24 decodes a 3-byte little-endian integer.
func fromLE24(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16
}

// MaxLE24 is the largest offset or length a native command can carry.
const MaxLE24 = 1<<24 - 1
