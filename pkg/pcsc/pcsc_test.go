package pcsc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ebfe/scard"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/session"
	"github.com/gregLibert/travel-card/pkg/tlv"
	"github.com/gregLibert/travel-card/pkg/transport"
)

func TestIsStorageCard(t *testing.T) {
	tests := []struct {
		name string
		atr  []byte
		want bool
	}{
		{"MIFARE Classic 1K", tlv.Hex("3B 8F 80 01 80 4F 0C A0 00 00 03 06 03 00 01 00 00 00 00 6A"), true},
		{"Ultralight", tlv.Hex("3B 8F 80 01 80 4F 0C A0 00 00 03 06 03 00 03 00 00 00 00 68"), true},
		{"DESFire EV1", tlv.Hex("3B 81 80 01 80 80"), false},
		{"Empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStorageCard(tt.atr))
		})
	}
}

type fakeHandle struct {
	resp         []byte
	err          error
	disconnected bool
}

func (f *fakeHandle) Transmit([]byte) ([]byte, error) { return f.resp, f.err }

func (f *fakeHandle) Disconnect(scard.Disposition) error {
	f.disconnected = true
	return nil
}

func TestLink_Transmit(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"Removed", scard.ErrRemovedCard, card.ErrTagRemoved},
		{"Reset", scard.ErrResetCard, card.ErrTagRemoved},
		{"Unresponsive", scard.ErrUnresponsiveCard, card.ErrUnsupportedTag},
		{"Other", scard.ErrCommError, scard.ErrCommError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Link{card: &fakeHandle{err: tt.err}}
			_, err := l.Transmit([]byte{0x90, 0x5A})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	h := &fakeHandle{resp: []byte{0x91, 0x00}}
	l := &Link{card: h}
	resp, err := l.Transmit([]byte{0x90, 0x5A})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x91, 0x00}, resp)

	require.NoError(t, l.Close())
	assert.True(t, h.disconnected)
}

func TestLink_RemovalEndsExchange(t *testing.T) {
	a := transport.NewAdapter(&Link{card: &fakeHandle{err: scard.ErrRemovedCard}})
	a.Open()
	defer a.Close()

	_, err := a.Exchange(context.Background(), []byte{0x90, 0x5A})
	assert.ErrorIs(t, err, card.ErrTagRemoved)
	assert.False(t, card.IsRetryable(err))
}

// scriptedStates replays reader event states, then blocks until cancelled.
type scriptedStates struct {
	states []scard.StateFlag
	cancel context.CancelFunc
}

func (s *scriptedStates) GetStatusChange(rs []scard.ReaderState, timeout time.Duration) error {
	if len(s.states) == 0 {
		s.cancel()
		return scard.ErrTimeout
	}
	rs[0].EventState = s.states[0] | scard.StateChanged
	s.states = s.states[1:]
	return nil
}

type nopTag struct{}

func (nopTag) Connect(context.Context) (transport.Link, error) { return nil, errors.New("unused") }

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &scriptedStates{
		states: []scard.StateFlag{
			scard.StateEmpty,
			scard.StatePresent,
			scard.StatePresent | scard.StateExclusive,
			scard.StatePresent | scard.StateMute,
			scard.StateEmpty,
			scard.StatePresent,
		},
		cancel: cancel,
	}

	events := make(chan session.Event, 8)
	logger, _ := test.NewNullLogger()
	err := watch(ctx, src, "ACS ACR122U", time.Millisecond, func() session.Tag { return nopTag{} }, events, logger)
	assert.ErrorIs(t, err, context.Canceled)
	close(events)

	var got []string
	for ev := range events {
		switch ev.(type) {
		case session.TagDetected:
			got = append(got, "detected")
		case session.TagRemoved:
			got = append(got, "removed")
		}
	}
	assert.Equal(t, []string{"detected", "removed", "detected"}, got)
}

func TestWatch_Error(t *testing.T) {
	src := statusFunc(func([]scard.ReaderState, time.Duration) error { return scard.ErrReaderUnavailable })
	logger, _ := test.NewNullLogger()

	err := watch(context.Background(), src, "r", time.Millisecond, nil, make(chan session.Event), logger)
	assert.ErrorIs(t, err, scard.ErrReaderUnavailable)
}

type statusFunc func([]scard.ReaderState, time.Duration) error

func (f statusFunc) GetStatusChange(rs []scard.ReaderState, d time.Duration) error { return f(rs, d) }
