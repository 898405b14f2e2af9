package hsl

import (
	"fmt"

	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/desfire"
)

// Contents is the record set of an HSL card image. History is given oldest
// first, the order in which the card appends to its ring.
type Contents struct {
	Profile card.Profile
	Balance card.Balance
	Tickets []card.SeasonTicket
	History []card.HistoryEntry
}

// NewImage encodes c into an application image that desfire.Emulator can
// serve. Unused ticket slots and ring records are zero filled.
func NewImage(c Contents) (desfire.Application, error) {
	if len(c.Tickets) > TicketSlots {
		return desfire.Application{}, fmt.Errorf("image: %d tickets for %d slots", len(c.Tickets), TicketSlots)
	}
	if len(c.History) > HistoryRecords {
		return desfire.Application{}, fmt.Errorf("image: %d history records for a ring of %d", len(c.History), HistoryRecords)
	}

	profile, err := EncodeProfile(c.Profile)
	if err != nil {
		return desfire.Application{}, err
	}
	balance, err := EncodeBalance(c.Balance)
	if err != nil {
		return desfire.Application{}, err
	}

	tickets := make([]byte, TicketSlots*TicketSize)
	for i, t := range c.Tickets {
		slot, err := EncodeSeasonTicket(t)
		if err != nil {
			return desfire.Application{}, err
		}
		copy(tickets[i*TicketSize:], slot)
	}

	history := make([]byte, HistoryRecords*HistorySize)
	empty := HistoryRecords - len(c.History)
	for i, e := range c.History {
		rec, err := EncodeHistory(e)
		if err != nil {
			return desfire.Application{}, err
		}
		copy(history[(empty+i)*HistorySize:], rec)
	}

	return desfire.Application{
		CardType: Name,
		AID:      ApplicationID,
		Files: map[byte]desfire.FileImage{
			FileTickets: {Data: tickets},
			FileBalance: {Data: balance},
			FileHistory: {Data: history, RecordSize: HistorySize},
			FileProfile: {Data: profile},
		},
	}, nil
}
