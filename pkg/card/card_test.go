package card

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregLibert/travel-card/pkg/bits"
)

type fakeType struct {
	name  string
	slots int
}

func (f fakeType) Name() string       { return f.name }
func (f fakeType) ApplicationID() AID { return AID{0x01, 0x02, 0x03} }
func (f fakeType) Layout() Layout     { return Layout{TicketSlots: f.slots, HistoryRecords: 4} }

func (fakeType) DecodeProfile(RawBlock) (*Profile, error)                 { return nil, nil }
func (fakeType) DecodeBalance(RawBlock) (Balance, error)                  { return Balance{}, nil }
func (fakeType) DecodeSeasonTicket(RawBlock) (SeasonTicket, bool, error) { return SeasonTicket{}, false, nil }
func (fakeType) DecodeHistory(RawBlock) (HistoryEntry, bool, error)      { return HistoryEntry{}, false, nil }

func TestAssemble_TicketSlotLimit(t *testing.T) {
	typ := fakeType{name: "fake", slots: 2}

	_, err := Assemble(typ, nil, Balance{}, make([]SeasonTicket, 3), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedCard)

	snap, err := Assemble(typ, nil, Balance{}, make([]SeasonTicket, 2), nil)
	require.NoError(t, err)
	assert.Len(t, snap.SeasonTickets(), 2)
}

func TestAssemble_HistoryNewestFirst(t *testing.T) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	history := []HistoryEntry{
		{Time: base, Remaining: 300},
		{Time: base.Add(2 * time.Hour), Remaining: 100},
		{Time: base.Add(time.Hour), Remaining: 900},
	}

	snap, err := Assemble(fakeType{name: "fake", slots: 1}, nil, Balance{Current: 100}, nil, history)
	require.NoError(t, err)

	got := snap.History()
	require.Len(t, got, 3)
	assert.Equal(t, Money(100), got[0].Remaining)
	assert.Equal(t, Money(900), got[1].Remaining)
	assert.Equal(t, Money(300), got[2].Remaining)

	// Non-monotonic remaining values are legitimate (top-ups).
	assert.Equal(t, Money(100), snap.Balance().Current)
}

func TestSnapshot_Immutable(t *testing.T) {
	profile := &Profile{CardNumber: "924621000000000001"}
	tickets := []SeasonTicket{{GroupSize: 1}}
	history := []HistoryEntry{{Remaining: 50}}

	readAt := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	snap, err := Assemble(fakeType{name: "fake", slots: 1}, profile, Balance{}, tickets, history,
		WithSession("session-1", readAt))
	require.NoError(t, err)

	profile.CardNumber = "changed"
	tickets[0].GroupSize = 9
	history[0].Remaining = 0
	snap.SeasonTickets()[0].GroupSize = 7
	snap.History()[0].Remaining = 1

	p, ok := snap.Profile()
	require.True(t, ok)
	assert.Equal(t, "924621000000000001", p.CardNumber)
	assert.Equal(t, 1, snap.SeasonTickets()[0].GroupSize)
	assert.Equal(t, Money(50), snap.History()[0].Remaining)
	assert.Equal(t, "session-1", snap.SessionID())
	assert.Equal(t, readAt, snap.ReadAt())
	assert.Equal(t, "fake", snap.CardType())
}

func TestAssemble_NoProfile(t *testing.T) {
	snap, err := Assemble(fakeType{name: "fake"}, nil, Balance{}, nil, nil)
	require.NoError(t, err)
	_, ok := snap.Profile()
	assert.False(t, ok)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"success", nil, StatusReady},
		{"tag removed", fmt.Errorf("reading balance: %w", ErrTagRemoved), StatusIdle},
		{"cancelled", context.Canceled, StatusIdle},
		{"transport", fmt.Errorf("step: %w", ErrTransport), StatusReadError},
		{"unsupported tag", ErrUnsupportedTag, StatusUnsupportedCard},
		{"unsupported card", ErrUnsupportedCard, StatusUnsupportedCard},
		{"truncated", fmt.Errorf("balance: %w", bits.ErrTruncatedRecord), StatusUnsupportedCard},
		{"bcd", bits.ErrInvalidBCD, StatusUnsupportedCard},
		{"checksum", ErrChecksumMismatch, StatusUnsupportedCard},
		{"date", ErrInvalidDate, StatusUnsupportedCard},
		{"malformed", ErrMalformedRecord, StatusUnsupportedCard},
		{"other", errors.New("boom"), StatusReadError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("exchange: %w", ErrTransport)))
	assert.False(t, IsRetryable(ErrChecksumMismatch))
	assert.False(t, IsRetryable(ErrUnsupportedCard))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "15.50", Money(1550).String())
	assert.Equal(t, "0.05", Money(5).String())
	assert.True(t, Money(1550).Decimal().Equal(Money(155).Decimal().Mul(Money(1000).Decimal())))
}

func TestSeasonTicket_DaysRemaining(t *testing.T) {
	helsinki, err := time.LoadLocation("Europe/Helsinki")
	require.NoError(t, err)

	ticket := SeasonTicket{
		Start: time.Date(2024, 3, 1, 0, 0, 0, 0, helsinki),
		End:   time.Date(2024, 3, 30, 0, 0, 0, 0, helsinki),
	}

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"before start", time.Date(2024, 2, 29, 12, 0, 0, 0, helsinki), 0},
		{"first day", time.Date(2024, 3, 1, 0, 0, 0, 0, helsinki), 30},
		{"last day late evening", time.Date(2024, 3, 30, 23, 59, 0, 0, helsinki), 1},
		{"last day in UTC", time.Date(2024, 3, 30, 20, 0, 0, 0, time.UTC), 1},
		{"after end", time.Date(2024, 3, 31, 0, 0, 1, 0, helsinki), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ticket.DaysRemaining(tt.now))
			assert.Equal(t, tt.want > 0, ticket.Active(tt.now))
		})
	}
}

func TestRegistry(t *testing.T) {
	Register(fakeType{name: "registry-a", slots: 1})
	Register(fakeType{name: "registry-b", slots: 2})

	got, err := Lookup("registry-b")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Layout().TicketSlots)

	_, err = Lookup("missing")
	assert.Error(t, err)

	assert.Panics(t, func() { Register(fakeType{name: "registry-a"}) })

	resolved, err := Resolve([]string{"registry-b", " registry-a"})
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "registry-b", resolved[0].Name())

	all, err := Resolve(nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 2)

	_, err = Resolve([]string{"missing"})
	assert.Error(t, err)
}

func TestAIDString(t *testing.T) {
	assert.Equal(t, "1420EF", AID{0x14, 0x20, 0xEF}.String())
}
