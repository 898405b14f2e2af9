package nysse

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/encoding/charmap"

	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/en1545"
)

// The Encode functions produce file content in the card format for card
// images. The reader never writes to a card.

// EncodeOwner writes the holder name of p into an owner info file.
func EncodeOwner(p card.Profile) ([]byte, error) {
	name, err := charmap.ISO8859_1.NewEncoder().String(p.HolderName)
	if err != nil {
		return nil, fmt.Errorf("owner info: holder name %q: %w", p.HolderName, err)
	}
	if len(name) > nameSize {
		return nil, fmt.Errorf("owner info: holder name %q longer than %d bytes", p.HolderName, nameSize)
	}
	data := make([]byte, OwnerSize)
	copy(data[nameOffset:], name)
	return data, nil
}

// EncodeBalance returns the value file content for b.
func EncodeBalance(b card.Balance) ([]byte, error) {
	if b.Current < 0 || b.Current > math.MaxInt32 {
		return nil, fmt.Errorf("balance: value %d out of range", b.Current)
	}
	return binary.LittleEndian.AppendUint32(nil, uint32(b.Current)), nil
}

// EncodeSeasonPass packs t into the season pass file.
func EncodeSeasonPass(t card.SeasonTicket) ([]byte, error) {
	if t.Product < 1 || t.Product > math.MaxUint8 {
		return nil, fmt.Errorf("season pass: product %d out of range", t.Product)
	}
	end, err := en1545.DaysSince1900(t.End)
	if err != nil {
		return nil, fmt.Errorf("season pass: end: %w", err)
	}
	if end > math.MaxUint16 {
		return nil, fmt.Errorf("season pass: end %s out of range", t.End.Format("2006-01-02"))
	}

	data := make([]byte, SeasonPassSize)
	data[passValidOffset] = byte(t.Product)
	binary.BigEndian.PutUint16(data[passEndOffset:], uint16(end))
	return data, nil
}

// EncodeHistory packs e into one history record. A zero Code is taken
// from Kind.
func EncodeHistory(e card.HistoryEntry) ([]byte, error) {
	code := uint32(e.Code)
	if code == 0 {
		c, ok := codeOf(e.Kind)
		if !ok {
			return nil, fmt.Errorf("history: no type code for %s", e.Kind)
		}
		code = c
	}
	day, err := en1545.DaysSince1900(e.Time)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	if day == 0 || day > math.MaxUint16 {
		return nil, fmt.Errorf("history: date %s out of range", e.Time.Format("2006-01-02"))
	}
	if e.Fare < 0 || e.Fare > math.MaxUint16 {
		return nil, fmt.Errorf("history: amount %d out of range", e.Fare)
	}

	local := e.Time.In(en1545.Location())
	half := local.Hour()*120 + local.Minute()*2 + local.Second()/30

	data := make([]byte, HistorySize)
	binary.LittleEndian.PutUint16(data[0:], uint16(day))
	binary.BigEndian.PutUint32(data[2:], code)
	binary.LittleEndian.PutUint16(data[6:], uint16(half))
	binary.LittleEndian.PutUint16(data[8:], uint16(e.Fare))
	return data, nil
}

func codeOf(k card.TransactionKind) (uint32, bool) {
	switch k {
	case card.TransactionIssue:
		return codeIssue, true
	case card.TransactionCharge:
		return codeCharge, true
	case card.TransactionDeposit:
		return codeDeposit, true
	case card.TransactionBoarding:
		return codeBoarding, true
	default:
		return 0, false
	}
}
