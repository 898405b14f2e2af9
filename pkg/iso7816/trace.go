package iso7816

import "fmt"

// Transaction is one command and the response it got.
type Transaction struct {
	Command  *CommandAPDU
	Response *ResponseAPDU
}

// IsSuccess reports whether a response came back with 9000 or 61XX.
func (t *Transaction) IsSuccess() bool {
	return t.Response != nil && t.Response.Status.IsSuccess()
}

// String renders the exchange as it went over the wire, "CMD -> DATA SW".
func (t *Transaction) String() string {
	cmd := "?"
	if t.Command != nil {
		if raw, err := t.Command.Bytes(); err == nil {
			cmd = fmt.Sprintf("%X", raw)
		}
	}
	if t.Response == nil {
		return cmd + " -> (none)"
	}
	if len(t.Response.Data) == 0 {
		return fmt.Sprintf("%s -> %04X", cmd, uint16(t.Response.Status))
	}
	return fmt.Sprintf("%s -> %X %04X", cmd, t.Response.Data, uint16(t.Response.Status))
}

// Trace is every transaction issued for one logical command, including
// the GET RESPONSE and Le corrections the client adds.
type Trace []Transaction

// Last returns the final transaction, or nil for an empty trace.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// IsSuccess reports whether the final transaction succeeded.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	return last != nil && last.IsSuccess()
}
