// Package hsl decodes the public application of HSL (Helsinki Region
// Transport) DESFire travel cards.
//
// FILE MAP (application 14 20 EF):
//
//	01  season tickets   2 slots x 16 bytes
//	02  stored value     17 bytes
//	04  history          cyclic, 8 records x 12 bytes
//	08  application info 22 bytes
//
// Fields are packed MSB first. Every data file ends with a big-endian
// CRC-32 (IEEE) over the bytes before it; history records carry an even
// parity bit instead.
package hsl

import (
	"github.com/gregLibert/travel-card/pkg/card"
)

// Name is the registry name of the HSL card type.
const Name = "hsl"

// ApplicationID of the HSL ticketing application.
var ApplicationID = card.AID{0x14, 0x20, 0xEF}

// File numbers and sizes.
const (
	FileTickets = 0x01
	FileBalance = 0x02
	FileHistory = 0x04
	FileProfile = 0x08

	ProfileSize = 22
	BalanceSize = 17
	TicketSize  = 16
	HistorySize = 12

	TicketSlots    = 2
	HistoryRecords = 8
)

// Card implements card.Type for HSL cards.
type Card struct{}

func init() {
	card.Register(Card{})
}

func (Card) Name() string { return Name }

func (Card) ApplicationID() card.AID { return ApplicationID }

func (Card) Layout() card.Layout {
	return card.Layout{
		Profile:        card.File{ID: FileProfile, Size: ProfileSize},
		Balance:        card.File{ID: FileBalance, Size: BalanceSize},
		Tickets:        card.File{ID: FileTickets, Size: TicketSize},
		TicketSlots:    TicketSlots,
		History:        card.File{ID: FileHistory, Size: HistorySize},
		HistoryRecords: HistoryRecords,
	}
}

func (Card) DecodeProfile(b card.RawBlock) (*card.Profile, error) { return DecodeProfile(b) }

func (Card) DecodeBalance(b card.RawBlock) (card.Balance, error) { return DecodeBalance(b) }

func (Card) DecodeSeasonTicket(b card.RawBlock) (card.SeasonTicket, bool, error) {
	return DecodeSeasonTicket(b)
}

func (Card) DecodeHistory(b card.RawBlock) (card.HistoryEntry, bool, error) {
	return DecodeHistory(b)
}
