package card

import (
	"fmt"
	"sort"
	"time"
)

// Snapshot is the immutable result of one successful read session.
// Accessors return copies; a Snapshot can be shared between goroutines.
type Snapshot struct {
	cardType  string
	sessionID string
	readAt    time.Time
	profile   *Profile
	balance   Balance
	tickets   []SeasonTicket
	history   []HistoryEntry
}

// Option sets session metadata on an assembled Snapshot.
type Option func(*Snapshot)

// WithSession records the session that produced the snapshot.
func WithSession(id string, readAt time.Time) Option {
	return func(s *Snapshot) {
		s.sessionID = id
		s.readAt = readAt
	}
}

// Assemble validates the decoded records of one session against the card
// type and builds the snapshot. History is ordered newest first.
func Assemble(t Type, profile *Profile, balance Balance, tickets []SeasonTicket, history []HistoryEntry, opts ...Option) (*Snapshot, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: no card type", ErrUnsupportedCard)
	}
	if slots := t.Layout().TicketSlots; len(tickets) > slots {
		return nil, fmt.Errorf("%w: %d season tickets, %s has %d slots", ErrUnsupportedCard, len(tickets), t.Name(), slots)
	}

	s := &Snapshot{
		cardType: t.Name(),
		balance:  balance,
		tickets:  append([]SeasonTicket(nil), tickets...),
		history:  append([]HistoryEntry(nil), history...),
	}
	if profile != nil {
		p := *profile
		s.profile = &p
	}
	sort.SliceStable(s.history, func(i, j int) bool {
		return s.history[i].Time.After(s.history[j].Time)
	})

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CardType returns the name of the card type that was read.
func (s *Snapshot) CardType() string { return s.cardType }

// SessionID returns the id of the read session.
func (s *Snapshot) SessionID() string { return s.sessionID }

// ReadAt returns the time the read completed.
func (s *Snapshot) ReadAt() time.Time { return s.readAt }

// Profile returns the cardholder profile, if the card carries one.
func (s *Snapshot) Profile() (Profile, bool) {
	if s.profile == nil {
		return Profile{}, false
	}
	return *s.profile, true
}

// Balance returns the stored value purse.
func (s *Snapshot) Balance() Balance { return s.balance }

// SeasonTickets returns the tickets in slot order.
func (s *Snapshot) SeasonTickets() []SeasonTicket {
	return append([]SeasonTicket(nil), s.tickets...)
}

// History returns the transaction log, newest first.
func (s *Snapshot) History() []HistoryEntry {
	return append([]HistoryEntry(nil), s.history...)
}
