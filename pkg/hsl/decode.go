package hsl

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/gregLibert/travel-card/pkg/bits"
	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/en1545"
)

// Field widths.
const (
	versionBits     = 4
	cardNumberDigit = 18
	valueBits       = 20
	fareBits        = 14
	productBits     = 14
	areaTypeBits    = 2
	areaBits        = 6
	windowBits      = 11
	groupBits       = 6
	kindBits        = 4
)

const crcSize = 4

// History type codes.
const (
	kindSeasonTicketUse = 0
	kindBoarding        = 1
	kindValueDeduction  = 2
)

// block returns the first size bytes of b after checking its length.
func block(b card.RawBlock, size int, record string) ([]byte, error) {
	if len(b.Data) < size {
		return nil, fmt.Errorf("%s: %w: %d of %d bytes", record, card.ErrTruncatedRecord, len(b.Data), size)
	}
	return b.Data[:size], nil
}

// verifyCRC checks the trailing CRC-32 of data.
func verifyCRC(data []byte, record string) error {
	n := len(data) - crcSize
	want := binary.BigEndian.Uint32(data[n:])
	if got := crc32.ChecksumIEEE(data[:n]); got != want {
		return fmt.Errorf("%s: %w: crc %08X, stored %08X", record, card.ErrChecksumMismatch, got, want)
	}
	return nil
}

// DecodeProfile decodes the application info file.
//
//	bit   0  4  application version
//	bit   4  4  reserved
//	bit   8 72  card number, 18 BCD digits
//	bit  80  4  reserved
//	bit  84 16  birthday, days since 1900-01-01 (0 = not recorded)
//	bit 100 14  issue date (0 = not recorded)
func DecodeProfile(b card.RawBlock) (*card.Profile, error) {
	data, err := block(b, ProfileSize, "profile")
	if err != nil {
		return nil, err
	}
	if err := verifyCRC(data, "profile"); err != nil {
		return nil, err
	}

	r := bits.NewReader(data)
	p := &card.Profile{}

	version, err := r.Uint(versionBits)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	p.AppVersion = int(version)

	if err := r.Skip(4); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	number, err := r.BCD(cardNumberDigit)
	if err != nil {
		return nil, fmt.Errorf("profile: card number: %w", err)
	}
	p.CardNumber = fmt.Sprintf("%0*d", cardNumberDigit, number)

	if err := r.Skip(4); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	if p.Birthday, _, err = en1545.ReadBirthDate(r); err != nil {
		return nil, fmt.Errorf("profile: birthday: %w", err)
	}
	if p.IssueDate, _, err = en1545.ReadOptionalDate(r); err != nil {
		return nil, fmt.Errorf("profile: issue date: %w", err)
	}
	return p, nil
}

// DecodeBalance decodes the stored value file.
//
//	bit  0 20  current value (cents)
//	bit 20 25  last loading date and time
//	bit 45 20  last loaded value (cents)
//	bit 65 14  loading organisation
//	bit 79 14  loading device
func DecodeBalance(b card.RawBlock) (card.Balance, error) {
	data, err := block(b, BalanceSize, "balance")
	if err != nil {
		return card.Balance{}, err
	}
	if err := verifyCRC(data, "balance"); err != nil {
		return card.Balance{}, err
	}

	r := bits.NewReader(data)
	var bal card.Balance

	current, err := r.Uint(valueBits)
	if err != nil {
		return card.Balance{}, fmt.Errorf("balance: %w", err)
	}
	bal.Current = card.Money(current)

	if bal.LoadedAt, _, err = en1545.ReadOptionalDateTime(r); err != nil {
		return card.Balance{}, fmt.Errorf("balance: loading time: %w", err)
	}

	loaded, err := r.Uint(valueBits)
	if err != nil {
		return card.Balance{}, fmt.Errorf("balance: %w", err)
	}
	bal.LastLoaded = card.Money(loaded)
	return bal, nil
}

// DecodeSeasonTicket decodes one season ticket slot. An all-zero slot is
// unused and reports ok == false.
//
//	bit  0  1  product table
//	bit  1 14  product code
//	bit 15  2  area type
//	bit 17  6  area code
//	bit 23 14  first day of validity
//	bit 37 14  last day of validity
//	bit 51 11  boarding window (minutes)
//	bit 62  6  group size
func DecodeSeasonTicket(b card.RawBlock) (card.SeasonTicket, bool, error) {
	data, err := block(b, TicketSize, "season ticket")
	if err != nil {
		return card.SeasonTicket{}, false, err
	}
	if bits.IsZero(data) {
		return card.SeasonTicket{}, false, nil
	}
	if err := verifyCRC(data, "season ticket"); err != nil {
		return card.SeasonTicket{}, false, err
	}

	r := bits.NewReader(data)
	var t card.SeasonTicket
	var f fields

	f.skip(r, 1)
	product := f.uint(r, productBits)
	areaType := f.uint(r, areaTypeBits)
	area := f.uint(r, areaBits)
	start := f.uint(r, en1545.DateBits)
	end := f.uint(r, en1545.DateBits)
	window := f.uint(r, windowBits)
	group := f.uint(r, groupBits)
	if f.err != nil {
		return card.SeasonTicket{}, false, fmt.Errorf("season ticket: %w", f.err)
	}

	t.Product = int(product)
	t.Area = NewArea(int(areaType), int(area))
	t.Start = en1545.Date(start)
	t.End = en1545.Date(end)
	t.BoardingWindow = time.Duration(window) * time.Minute
	t.GroupSize = int(group)

	if start > end {
		return card.SeasonTicket{}, false, fmt.Errorf("season ticket: %w: starts %s after it ends %s",
			card.ErrInvalidDate, t.Start.Format(time.DateOnly), t.End.Format(time.DateOnly))
	}
	if t.GroupSize == 0 {
		return card.SeasonTicket{}, false, fmt.Errorf("season ticket: %w: group size 0", card.ErrMalformedRecord)
	}
	return t, true, nil
}

// DecodeHistory decodes one record of the history ring. An all-zero record
// is an empty slot and reports ok == false.
//
//	bit  0  4  transaction type
//	bit  4 25  date and time
//	bit 29 14  fare (cents)
//	bit 43  6  group size
//	bit 49 20  remaining value (cents)
//	bit 95  1  even parity over the record
func DecodeHistory(b card.RawBlock) (card.HistoryEntry, bool, error) {
	data, err := block(b, HistorySize, "history")
	if err != nil {
		return card.HistoryEntry{}, false, err
	}
	if bits.IsZero(data) {
		return card.HistoryEntry{}, false, nil
	}
	if bits.Parity(data) != 0 {
		return card.HistoryEntry{}, false, fmt.Errorf("history: %w: odd parity", card.ErrChecksumMismatch)
	}

	r := bits.NewReader(data)
	code, err := r.Uint(kindBits)
	if err != nil {
		return card.HistoryEntry{}, false, fmt.Errorf("history: %w", err)
	}
	at, err := en1545.ReadDateTime(r)
	if err != nil {
		return card.HistoryEntry{}, false, fmt.Errorf("history: %w", err)
	}

	var f fields
	fare := f.uint(r, fareBits)
	group := f.uint(r, groupBits)
	remaining := f.uint(r, valueBits)
	if f.err != nil {
		return card.HistoryEntry{}, false, fmt.Errorf("history: %w", f.err)
	}

	return card.HistoryEntry{
		Time:      at,
		Kind:      kindOf(int(code)),
		Code:      int(code),
		Fare:      card.Money(fare),
		GroupSize: int(group),
		Remaining: card.Money(remaining),
	}, true, nil
}

func kindOf(code int) card.TransactionKind {
	switch code {
	case kindSeasonTicketUse:
		return card.TransactionSeasonTicketUse
	case kindBoarding:
		return card.TransactionBoarding
	case kindValueDeduction:
		return card.TransactionValueDeduction
	default:
		return card.TransactionUnknown
	}
}

// fields reads a run of fields and keeps the first error.
type fields struct {
	err error
}

func (f *fields) uint(r *bits.Reader, n int) uint64 {
	if f.err != nil {
		return 0
	}
	v, err := r.Uint(n)
	f.err = err
	return v
}

func (f *fields) skip(r *bits.Reader, n int) {
	if f.err == nil {
		f.err = r.Skip(n)
	}
}
