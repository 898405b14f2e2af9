// Package nysse decodes the application of Nysse (Tampere public transport)
// DESFire travel cards.
//
// FILE MAP (application 01 21 EF):
//
//	01  balance       value file, cents
//	02  season pass   16 bytes decoded
//	03  history       cyclic, 16-byte records
//	04  owner info    96 bytes
//
// Unlike HSL cards the fields are byte aligned and carry no checksum.
// Dates count days since 1900-01-01.
package nysse

import (
	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/desfire"
)

// Name is the registry name of the Nysse card type.
const Name = "nysse"

// ApplicationID of the Nysse ticketing application.
var ApplicationID = card.AID{0x01, 0x21, 0xEF}

// File numbers and sizes.
const (
	FileBalance    = 0x01
	FileSeasonPass = 0x02
	FileHistory    = 0x03
	FileOwner      = 0x04

	OwnerSize      = 96
	SeasonPassSize = 16
	HistorySize    = 16

	HistoryRecords = 8
)

// Card implements card.Type for Nysse cards.
type Card struct{}

func init() {
	card.Register(Card{})
}

func (Card) Name() string { return Name }

func (Card) ApplicationID() card.AID { return ApplicationID }

func (Card) Layout() card.Layout {
	return card.Layout{
		Profile:        card.File{ID: FileOwner, Size: OwnerSize},
		Balance:        card.File{ID: FileBalance, Size: desfire.ValueSize, Value: true},
		Tickets:        card.File{ID: FileSeasonPass, Size: SeasonPassSize},
		TicketSlots:    1,
		History:        card.File{ID: FileHistory, Size: HistorySize},
		HistoryRecords: HistoryRecords,
	}
}

func (Card) DecodeProfile(b card.RawBlock) (*card.Profile, error) { return DecodeOwner(b) }

func (Card) DecodeBalance(b card.RawBlock) (card.Balance, error) { return DecodeBalance(b) }

func (Card) DecodeSeasonTicket(b card.RawBlock) (card.SeasonTicket, bool, error) {
	return DecodeSeasonPass(b)
}

func (Card) DecodeHistory(b card.RawBlock) (card.HistoryEntry, bool, error) {
	return DecodeHistory(b)
}
