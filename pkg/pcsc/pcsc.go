// Package pcsc binds the session layer to PC/SC contactless readers.
//
// A reader exposes ISO 14443-4 tags as T=1 cards: DESFire native commands
// travel in wrapped APDUs unchanged. Storage cards (MIFARE Classic,
// Ultralight) are reported through the PC/SC part 3 ATR and are refused.
package pcsc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ebfe/scard"
	"github.com/sirupsen/logrus"

	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/session"
	"github.com/gregLibert/travel-card/pkg/transport"
)

// storageCardRID marks PC/SC part 3 storage card ATRs.
var storageCardRID = []byte{0xA0, 0x00, 0x00, 0x03, 0x06}

// Context is an established PC/SC resource manager context.
type Context struct {
	ctx *scard.Context
	log logrus.FieldLogger
}

// Establish connects to the PC/SC service.
func Establish(log logrus.FieldLogger) (*Context, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("establishing PC/SC context: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Context{ctx: ctx, log: log}, nil
}

// Release frees the context.
func (c *Context) Release() error {
	return c.ctx.Release()
}

// Readers lists the attached readers.
func (c *Context) Readers() ([]string, error) {
	readers, err := c.ctx.ListReaders()
	if errors.Is(err, scard.ErrNoReadersAvailable) {
		return nil, nil
	}
	return readers, err
}

// Reader returns name if set, or the first attached reader.
func (c *Context) Reader(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	readers, err := c.Readers()
	if err != nil {
		return "", fmt.Errorf("listing readers: %w", err)
	}
	if len(readers) == 0 {
		return "", errors.New("no smart card reader found")
	}
	return readers[0], nil
}

// Supported implements session.Adapter: a PC/SC service is available.
func (c *Context) Supported() bool {
	return c.ctx != nil
}

// Enabled implements session.Adapter: at least one reader is attached.
func (c *Context) Enabled() bool {
	readers, err := c.Readers()
	return err == nil && len(readers) > 0
}

// Tag returns the tag currently presented to reader.
func (c *Context) Tag(reader string) *Tag {
	return &Tag{ctx: c.ctx, reader: reader, log: c.log}
}

// Tag is a card in the field of a reader.
type Tag struct {
	ctx    *scard.Context
	reader string
	log    logrus.FieldLogger
}

// Connect implements session.Tag.
func (t *Tag) Connect(ctx context.Context) (transport.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// T=0 or T=1 must be forced or some drivers answer "parameter incorrect"
	c, err := t.ctx.Connect(t.reader, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		return nil, mapError(err)
	}

	status, err := c.Status()
	if err != nil {
		_ = c.Disconnect(scard.LeaveCard)
		return nil, mapError(err)
	}
	t.log.WithFields(logrus.Fields{"reader": t.reader, "atr": fmt.Sprintf("% X", status.Atr)}).Debug("tag connected")

	if IsStorageCard(status.Atr) {
		_ = c.Disconnect(scard.LeaveCard)
		return nil, fmt.Errorf("%w: storage card (ATR % X)", card.ErrUnsupportedTag, status.Atr)
	}
	return &Link{card: c}, nil
}

// IsStorageCard reports whether atr describes a memory card without an
// ISO 14443-4 layer.
func IsStorageCard(atr []byte) bool {
	return bytes.Contains(atr, storageCardRID)
}

// handle is the part of *scard.Card a Link uses.
type handle interface {
	Transmit(cmd []byte) ([]byte, error)
	Disconnect(d scard.Disposition) error
}

// Link implements transport.Link over a connected card.
type Link struct {
	card handle
}

// Transmit implements transport.Link.
func (l *Link) Transmit(cmd []byte) ([]byte, error) {
	resp, err := l.card.Transmit(cmd)
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

// Close leaves the card powered for the next session.
func (l *Link) Close() error {
	return l.card.Disconnect(scard.LeaveCard)
}

// mapError translates card-absence conditions to card.ErrTagRemoved.
func mapError(err error) error {
	switch {
	case errors.Is(err, scard.ErrRemovedCard),
		errors.Is(err, scard.ErrNoSmartcard),
		errors.Is(err, scard.ErrResetCard),
		errors.Is(err, scard.ErrUnpoweredCard):
		return fmt.Errorf("%w: %w", card.ErrTagRemoved, err)
	case errors.Is(err, scard.ErrUnresponsiveCard):
		return fmt.Errorf("%w: %w", card.ErrUnsupportedTag, err)
	default:
		return err
	}
}

// statusSource is the part of *scard.Context Watch uses.
type statusSource interface {
	GetStatusChange(states []scard.ReaderState, timeout time.Duration) error
}

// Watch polls reader and sends TagDetected and TagRemoved events until
// ctx is done. poll bounds each wait so cancellation is noticed.
func (c *Context) Watch(ctx context.Context, reader string, poll time.Duration, events chan<- session.Event) error {
	return watch(ctx, c.ctx, reader, poll, func() session.Tag { return c.Tag(reader) }, events, c.log)
}

func watch(ctx context.Context, src statusSource, reader string, poll time.Duration, newTag func() session.Tag, events chan<- session.Event, log logrus.FieldLogger) error {
	states := []scard.ReaderState{{Reader: reader, CurrentState: scard.StateUnaware}}
	present := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := src.GetStatusChange(states, poll)
		if errors.Is(err, scard.ErrTimeout) {
			continue
		}
		if err != nil {
			return fmt.Errorf("watching %s: %w", reader, err)
		}

		st := states[0].EventState
		states[0].CurrentState = st &^ scard.StateChanged

		now := st&scard.StatePresent != 0 && st&scard.StateMute == 0
		if now == present {
			continue
		}
		present = now

		var ev session.Event = session.TagRemoved{}
		if present {
			ev = session.TagDetected{Tag: newTag()}
		}
		log.WithFields(logrus.Fields{"reader": reader, "present": present}).Debug("reader state changed")

		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
