package nysse

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/gregLibert/travel-card/pkg/bits"
	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/en1545"
)

// Owner name field of the owner info file.
const (
	nameOffset = 6
	nameSize   = 22
)

// Season pass fields.
const (
	passValidOffset = 6
	passEndOffset   = 10
)

// halfMinutesPerDay bounds the time field of a history record.
const halfMinutesPerDay = 24 * 60 * 2

// History type codes.
const (
	codeIssue    = 0x0000D417
	codeCharge   = 0x00001018
	codeDeposit  = 0x00004C04
	codeBoarding = 0x000BDE07
)

func block(b card.RawBlock, size int, record string) ([]byte, error) {
	if len(b.Data) < size {
		return nil, fmt.Errorf("%s: %w: %d of %d bytes", record, card.ErrTruncatedRecord, len(b.Data), size)
	}
	return b.Data[:size], nil
}

// DecodeOwner decodes the owner info file. The holder name is Latin-1,
// terminated by the first NUL.
//
//	byte  6 22  holder name
func DecodeOwner(b card.RawBlock) (*card.Profile, error) {
	data, err := block(b, nameOffset+nameSize, "owner info")
	if err != nil {
		return nil, err
	}
	raw := data[nameOffset : nameOffset+nameSize]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	name, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("owner info: %w: %v", card.ErrMalformedRecord, err)
	}
	return &card.Profile{HolderName: string(name)}, nil
}

// DecodeBalance decodes the value of the balance file, a signed 32-bit
// little-endian count of cents. A negative purse is rejected.
func DecodeBalance(b card.RawBlock) (card.Balance, error) {
	data, err := block(b, 4, "balance")
	if err != nil {
		return card.Balance{}, err
	}
	value := int32(binary.LittleEndian.Uint32(data))
	if value < 0 {
		return card.Balance{}, fmt.Errorf("balance: %w: negative value %d", card.ErrMalformedRecord, value)
	}
	return card.Balance{Current: card.Money(value)}, nil
}

// DecodeSeasonPass decodes the season pass file. A zero product byte marks
// a card without a pass and reports ok == false.
//
//	byte  6  1  product, 0 = no pass
//	byte 10  2  last day of validity, big endian
func DecodeSeasonPass(b card.RawBlock) (card.SeasonTicket, bool, error) {
	data, err := block(b, SeasonPassSize, "season pass")
	if err != nil {
		return card.SeasonTicket{}, false, err
	}
	if data[passValidOffset] == 0 {
		return card.SeasonTicket{}, false, nil
	}

	end, err := en1545.Days1900(uint64(binary.BigEndian.Uint16(data[passEndOffset:])))
	if err != nil {
		return card.SeasonTicket{}, false, fmt.Errorf("season pass: end: %w", err)
	}
	return card.SeasonTicket{
		Product:   int(data[passValidOffset]),
		Area:      card.Area{Type: card.AreaUnknown},
		End:       end,
		GroupSize: 1,
	}, true, nil
}

// DecodeHistory decodes one record of the history ring. An all-zero record
// is an empty slot and reports ok == false.
//
//	byte 0 2  date, little endian
//	byte 2 4  transaction type, big endian
//	byte 6 2  time in half minutes, little endian
//	byte 8 2  amount (cents), little endian
func DecodeHistory(b card.RawBlock) (card.HistoryEntry, bool, error) {
	data, err := block(b, HistorySize, "history")
	if err != nil {
		return card.HistoryEntry{}, false, err
	}
	if bits.IsZero(data) {
		return card.HistoryEntry{}, false, nil
	}

	day, err := en1545.Days1900(uint64(binary.LittleEndian.Uint16(data[0:])))
	if err != nil {
		return card.HistoryEntry{}, false, fmt.Errorf("history: %w", err)
	}
	half := int(binary.LittleEndian.Uint16(data[6:]))
	if half >= halfMinutesPerDay {
		return card.HistoryEntry{}, false, fmt.Errorf("history: %w: time %d half minutes", card.ErrInvalidDate, half)
	}
	code := binary.BigEndian.Uint32(data[2:])

	y, m, d := day.Date()
	return card.HistoryEntry{
		Time: time.Date(y, m, d, half/120, half%120/2, half%2*30, 0, en1545.Location()),
		Kind: kindOf(code),
		Code: int(code),
		Fare: card.Money(binary.LittleEndian.Uint16(data[8:])),
	}, true, nil
}

func kindOf(code uint32) card.TransactionKind {
	switch code {
	case codeIssue:
		return card.TransactionIssue
	case codeCharge:
		return card.TransactionCharge
	case codeDeposit:
		return card.TransactionDeposit
	case codeBoarding:
		return card.TransactionBoarding
	default:
		return card.TransactionUnknown
	}
}
