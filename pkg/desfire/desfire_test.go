package desfire

import (
	"bytes"
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/iso7816"
	"github.com/gregLibert/travel-card/pkg/tlv"
	"github.com/gregLibert/travel-card/pkg/transport"
)

var testAID = card.AID{0x14, 0x20, 0xEF}

// recorder wraps a link and keeps the hex of every command.
type recorder struct {
	link     transport.Link
	commands []string
}

func (r *recorder) Transmit(cmd []byte) ([]byte, error) {
	r.commands = append(r.commands, strings.ToUpper(hex.EncodeToString(cmd)))
	return r.link.Transmit(cmd)
}

type scripted [][]byte

func (s *scripted) Transmit([]byte) ([]byte, error) {
	resp := (*s)[0]
	*s = (*s)[1:]
	return resp, nil
}

func sequence(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i)
	}
	return out
}

func testImage() Application {
	return Application{
		CardType: "test",
		AID:      testAID,
		Files: map[byte]FileImage{
			0x01: {Data: sequence(32)},
			0x02: {Data: sequence(17)},
			0x04: {Data: sequence(96), RecordSize: 12},
			0x08: {Data: sequence(130)},
		},
	}
}

func newSelector(t *testing.T, link transport.Link) *Selector {
	t.Helper()
	a := transport.NewAdapter(link)
	a.Open()
	t.Cleanup(a.Close)
	logger, _ := test.NewNullLogger()
	return NewSelector(a, logger)
}

func TestSelector_SelectApplication(t *testing.T) {
	rec := &recorder{link: NewEmulator(testImage())}
	s := newSelector(t, rec)

	require.NoError(t, s.SelectApplication(context.Background(), testAID))
	assert.Equal(t, []string{"905A0000031420EF00"}, rec.commands)

	err := s.SelectApplication(context.Background(), card.AID{0x11, 0x22, 0x33})
	assert.ErrorIs(t, err, card.ErrUnsupportedCard)
	assert.Contains(t, err.Error(), "APPLICATION_NOT_FOUND")
}

func TestSelector_ReadFile_AdditionalFrames(t *testing.T) {
	rec := &recorder{link: NewEmulator(testImage())}
	s := newSelector(t, rec)
	ctx := context.Background()
	require.NoError(t, s.SelectApplication(ctx, testAID))

	block, err := s.ReadFile(ctx, 0x08, 0, 130)
	require.NoError(t, err)
	assert.Equal(t, sequence(130), block.Data)
	assert.Equal(t, byte(0x08), block.File)

	// 130 bytes in frames of 59: one read and two continuations
	assert.Equal(t, []string{
		"905A0000031420EF00",
		"90BD0000070800000082000000",
		"90AF000000",
		"90AF000000",
	}, rec.commands)
}

func TestSelector_ReadFile_Offset(t *testing.T) {
	s := newSelector(t, NewEmulator(testImage()))
	ctx := context.Background()
	require.NoError(t, s.SelectApplication(ctx, testAID))

	block, err := s.ReadFile(ctx, 0x01, 16, 16)
	require.NoError(t, err)
	assert.Equal(t, sequence(32)[16:], block.Data)
	assert.Equal(t, 16, block.Offset)

	rest, err := s.ReadFile(ctx, 0x02, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, sequence(17)[10:], rest.Data)
}

func TestSelector_ReadFile_ShortAnswer(t *testing.T) {
	link := &scripted{{0x00, 0x01, 0x91, 0x00}}
	s := newSelector(t, link)

	_, err := s.ReadFile(context.Background(), 0x02, 0, 4)
	require.ErrorIs(t, err, card.ErrTransport)
	assert.True(t, card.IsRetryable(err))
	assert.Equal(t, card.StatusReadError, card.StatusOf(err))
}

func TestSelector_SmallFrames(t *testing.T) {
	em := NewEmulator(testImage())
	em.SetFrameSize(16)
	rec := &recorder{link: em}
	s := newSelector(t, rec)
	ctx := context.Background()
	require.NoError(t, s.SelectApplication(ctx, testAID))

	block, err := s.ReadFile(ctx, 0x01, 0, 32)
	require.NoError(t, err)
	assert.Equal(t, sequence(32), block.Data)
	assert.Equal(t, []string{
		"905A0000031420EF00",
		"90BD0000070100000020000000",
		"90AF000000",
	}, rec.commands)
}

func valueImage() Application {
	app := testImage()
	app.Files[0x05] = FileImage{Data: []byte{0x10, 0x27, 0x00, 0x00}, Value: true}
	return app
}

func TestSelector_GetValue(t *testing.T) {
	rec := &recorder{link: NewEmulator(valueImage())}
	s := newSelector(t, rec)
	ctx := context.Background()
	require.NoError(t, s.SelectApplication(ctx, testAID))

	block, err := s.GetValue(ctx, 0x05)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0x27, 0x00, 0x00}, block.Data)
	assert.Equal(t, "906C0000010500", rec.commands[1])

	viaRead, err := s.Read(ctx, card.File{ID: 0x05, Size: ValueSize, Value: true}, 0)
	require.NoError(t, err)
	assert.Equal(t, block, viaRead)

	_, err = s.GetValue(ctx, 0x02)
	assert.ErrorIs(t, err, card.ErrUnsupportedCard)
	_, err = s.ReadFile(ctx, 0x05, 0, 4)
	assert.ErrorIs(t, err, card.ErrUnsupportedCard)
}

func TestSelector_GetValue_MalformedAnswer(t *testing.T) {
	s := newSelector(t, &scripted{{0x10, 0x27, 0x91, 0x00}})

	_, err := s.GetValue(context.Background(), 0x05)
	assert.ErrorIs(t, err, card.ErrTransport)
}

func TestSelector_ReadRecords(t *testing.T) {
	s := newSelector(t, NewEmulator(testImage()))
	ctx := context.Background()
	require.NoError(t, s.SelectApplication(ctx, testAID))

	all, err := s.ReadRecords(ctx, 0x04, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, sequence(96), all)

	newest, err := s.ReadRecords(ctx, 0x04, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, sequence(96)[84:], newest)

	older, err := s.ReadRecords(ctx, 0x04, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, sequence(96)[60:84], older)
}

func TestSelector_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		run  func(s *Selector) error
		link transport.Link
		want error
	}{
		{
			name: "Read without selection",
			link: NewEmulator(testImage()),
			run: func(s *Selector) error {
				_, err := s.ReadFile(ctx, 0x02, 0, 17)
				return err
			},
			want: card.ErrUnsupportedCard,
		},
		{
			name: "Boundary",
			link: NewEmulator(testImage()),
			run: func(s *Selector) error {
				if err := s.SelectApplication(ctx, testAID); err != nil {
					return err
				}
				_, err := s.ReadFile(ctx, 0x02, 10, 10)
				return err
			},
			want: card.ErrUnsupportedCard,
		},
		{
			name: "Not a DESFire card",
			link: &scripted{{0x6E, 0x00}},
			run: func(s *Selector) error {
				return s.SelectApplication(ctx, testAID)
			},
			want: card.ErrUnsupportedCard,
		},
		{
			name: "Authentication required",
			link: &scripted{{0x91, 0xAE}},
			run: func(s *Selector) error {
				return s.SelectApplication(ctx, testAID)
			},
			want: card.ErrUnsupportedCard,
		},
		{
			name: "Aborted command",
			link: &scripted{{0x91, 0xCA}},
			run: func(s *Selector) error {
				return s.SelectApplication(ctx, testAID)
			},
			want: card.ErrTransport,
		},
		{
			name: "Negative offset",
			link: NewEmulator(testImage()),
			run: func(s *Selector) error {
				_, err := s.ReadFile(ctx, 0x02, -1, 4)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(newSelector(t, tt.link))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestSelector_EndlessFrames(t *testing.T) {
	more := transportFunc(func([]byte) ([]byte, error) { return []byte{0x00, 0x91, 0xAF}, nil })
	s := newSelector(t, more)

	err := s.SelectApplication(context.Background(), testAID)
	assert.ErrorIs(t, err, card.ErrUnsupportedCard)
}

type transportFunc func([]byte) ([]byte, error)

func (f transportFunc) Transmit(cmd []byte) ([]byte, error) { return f(cmd) }

func TestSelector_Logging(t *testing.T) {
	a := transport.NewAdapter(NewEmulator(testImage()))
	a.Open()
	defer a.Close()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	s := NewSelector(a, logger)

	require.NoError(t, s.SelectApplication(context.Background(), testAID))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "1420EF", entry.Data["aid"])
}

// fakeType exposes the layout of testImage.
type fakeType struct{}

func (fakeType) Name() string            { return "test" }
func (fakeType) ApplicationID() card.AID { return testAID }
func (fakeType) Layout() card.Layout {
	return card.Layout{
		Profile:        card.File{ID: 0x08, Size: 130},
		Balance:        card.File{ID: 0x02, Size: 17},
		Tickets:        card.File{ID: 0x01, Size: 16},
		TicketSlots:    2,
		History:        card.File{ID: 0x04, Size: 12},
		HistoryRecords: 8,
	}
}
func (fakeType) DecodeProfile(card.RawBlock) (*card.Profile, error) { return nil, nil }
func (fakeType) DecodeBalance(card.RawBlock) (card.Balance, error)  { return card.Balance{}, nil }
func (fakeType) DecodeSeasonTicket(card.RawBlock) (card.SeasonTicket, bool, error) {
	return card.SeasonTicket{}, false, nil
}
func (fakeType) DecodeHistory(card.RawBlock) (card.HistoryEntry, bool, error) {
	return card.HistoryEntry{}, false, nil
}

func TestCapture_DumpRoundTrip(t *testing.T) {
	s := newSelector(t, NewEmulator(testImage()))

	app, err := Capture(context.Background(), s, fakeType{})
	require.NoError(t, err)
	assert.Equal(t, testImage(), app)

	raw, err := tlv.EncodeDump(app.Dump())
	require.NoError(t, err)

	decoded, err := tlv.DecodeDump(raw)
	require.NoError(t, err)

	restored, err := FromDump(decoded)
	require.NoError(t, err)
	assert.Equal(t, app, restored)

	// a replayed image reads back the same bytes
	replay := newSelector(t, NewEmulator(restored))
	again, err := Capture(context.Background(), replay, fakeType{})
	require.NoError(t, err)
	assert.True(t, bytes.Equal(app.Files[0x04].Data, again.Files[0x04].Data))
}

func TestDump_ValueFile(t *testing.T) {
	app := valueImage()
	d := app.Dump()

	var found bool
	for _, f := range d.Files {
		if f.ID[0] == 0x05 {
			found = true
			assert.Equal(t, []byte{FileTypeValue}, f.FileType)
		} else {
			assert.Empty(t, f.FileType)
		}
	}
	require.True(t, found)

	restored, err := FromDump(d)
	require.NoError(t, err)
	assert.Equal(t, app, restored)
}

func TestFromDump_Errors(t *testing.T) {
	_, err := FromDump(&tlv.Dump{AID: []byte{0x01}})
	assert.Error(t, err)

	_, err = FromDump(&tlv.Dump{
		AID:   testAID[:],
		Files: []tlv.DumpFile{{ID: []byte{0x04}, RecordSize: []byte{0x0C}, Data: sequence(13)}},
	})
	assert.ErrorContains(t, err, "not a multiple of record size")

	_, err = FromDump(&tlv.Dump{
		AID:   testAID[:],
		Files: []tlv.DumpFile{{ID: []byte{0x05}, FileType: []byte{FileTypeValue}, Data: sequence(3)}},
	})
	assert.ErrorContains(t, err, "value file 05")
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "ADDITIONAL_FRAME", StatusAdditionalFrame.String())
	assert.Equal(t, "Status(0x42)", Status(0x42).String())
	assert.Equal(t, iso7816.StatusWord(0x91AF), StatusAdditionalFrame.Word())
}
