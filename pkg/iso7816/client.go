package iso7816

import (
	"context"
	"fmt"
)

// maxSteps bounds the GET RESPONSE and Le correction chain of one command.
const maxSteps = 16

// Exchanger abstracts the connection to the card: one command frame in,
// one response frame out. Implementations must honor ctx cancellation.
type Exchanger interface {
	Exchange(ctx context.Context, cmd []byte) ([]byte, error)
}

// Client sends commands and resolves the T=0 procedure statuses: on 61XX
// it fetches the XX waiting bytes with GET RESPONSE, on 6CXX it sends the
// command again with Le = XX. Any other status is returned to the caller,
// including failures. Retrying is not the client's business.
type Client struct {
	Card Exchanger
}

// NewClient returns a client over card.
func NewClient(card Exchanger) *Client {
	return &Client{Card: card}
}

// Send transmits cmd and returns every transaction it took.
func (c *Client) Send(ctx context.Context, cmd *CommandAPDU) (Trace, error) {
	var trace Trace
	for step := 0; step < maxSteps; step++ {
		resp, err := c.exchange(ctx, cmd)
		if err != nil {
			return trace, err
		}
		trace = append(trace, Transaction{Command: cmd, Response: resp})

		switch resp.Status.SW1() {
		case 0x61:
			cla := cmd.Class // same logical channel, chaining off
			cla.IsChained = false
			ins, _ := NewInstruction(INS_GET_RESPONSE)
			cmd = NewCommandAPDU(cla, ins, 0x00, 0x00, nil, shortLength(resp.Status.SW2()))
		case 0x6C:
			retry := *cmd
			retry.Ne = shortLength(resp.Status.SW2())
			cmd = &retry
		default:
			return trace, nil
		}
	}
	return trace, fmt.Errorf("no final status after %d exchanges", maxSteps)
}

func (c *Client) exchange(ctx context.Context, cmd *CommandAPDU) (*ResponseAPDU, error) {
	raw, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}
	rawResp, err := c.Card.Exchange(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}
	return ParseResponseAPDU(rawResp)
}

// shortLength maps a one-byte length to Ne, 00 meaning 256.
func shortLength(b byte) int {
	if b == 0 {
		return MaxShortLe
	}
	return int(b)
}
