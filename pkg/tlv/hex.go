package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hex decodes hex strings into bytes, ignoring whitespace, so that frames
// can be written the way they appear in a trace: "90 5A 00 00 03".
// It panics on malformed input and is meant for fixed data and tests.
func Hex(parts ...string) []byte {
	clean := strings.Join(strings.Fields(strings.Join(parts, " ")), "")
	data, err := hex.DecodeString(clean)
	if err != nil {
		panic(fmt.Sprintf("invalid hex %q: %v", clean, err))
	}
	return data
}
