package hsl

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strconv"

	"github.com/gregLibert/travel-card/pkg/bits"
	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/en1545"
)

// The Encode functions produce file content in the card format. They back
// card images built for tests and demos; the reader never writes to a card.

// sealCRC stores the CRC-32 of the payload in the last four bytes of data.
func sealCRC(data []byte) []byte {
	n := len(data) - crcSize
	binary.BigEndian.PutUint32(data[n:], crc32.ChecksumIEEE(data[:n]))
	return data
}

// EncodeProfile packs p into an application info file.
func EncodeProfile(p card.Profile) ([]byte, error) {
	var number uint64
	if p.CardNumber != "" {
		n, err := strconv.ParseUint(p.CardNumber, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("profile: card number %q: %w", p.CardNumber, err)
		}
		number = n
	}

	w := bits.NewWriter(ProfileSize)
	if err := w.PutUint(versionBits, uint64(p.AppVersion)); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	if err := w.Skip(4); err != nil {
		return nil, err
	}
	if err := w.PutBCD(cardNumberDigit, number); err != nil {
		return nil, fmt.Errorf("profile: card number: %w", err)
	}
	if err := w.Skip(4); err != nil {
		return nil, err
	}
	if err := en1545.WriteBirthDate(w, p.Birthday); err != nil {
		return nil, fmt.Errorf("profile: birthday: %w", err)
	}
	if err := en1545.WriteOptionalDate(w, p.IssueDate); err != nil {
		return nil, fmt.Errorf("profile: issue date: %w", err)
	}
	return sealCRC(w.Bytes()), nil
}

// EncodeBalance packs b into a stored value file.
func EncodeBalance(b card.Balance) ([]byte, error) {
	w := bits.NewWriter(BalanceSize)
	if err := w.PutUint(valueBits, uint64(b.Current)); err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	if b.LoadedAt.IsZero() {
		if err := w.Skip(en1545.DateBits + en1545.TimeBits); err != nil {
			return nil, err
		}
	} else if err := en1545.WriteDateTime(w, b.LoadedAt); err != nil {
		return nil, fmt.Errorf("balance: loading time: %w", err)
	}
	if err := w.PutUint(valueBits, uint64(b.LastLoaded)); err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	return sealCRC(w.Bytes()), nil
}

// EncodeSeasonTicket packs t into one ticket slot.
func EncodeSeasonTicket(t card.SeasonTicket) ([]byte, error) {
	w := bits.NewWriter(TicketSize)
	steps := []func() error{
		func() error { return w.Skip(1) },
		func() error { return w.PutUint(productBits, uint64(t.Product)) },
		func() error { return w.PutUint(areaTypeBits, uint64(areaTypeCode(t.Area.Type))) },
		func() error { return w.PutUint(areaBits, uint64(t.Area.Code)) },
		func() error { return en1545.WriteDate(w, t.Start) },
		func() error { return en1545.WriteDate(w, t.End) },
		func() error { return w.PutUint(windowBits, uint64(t.BoardingWindow.Minutes())) },
		func() error { return w.PutUint(groupBits, uint64(t.GroupSize)) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("season ticket: %w", err)
		}
	}
	return sealCRC(w.Bytes()), nil
}

// EncodeHistory packs e into one history record, parity bit included.
func EncodeHistory(e card.HistoryEntry) ([]byte, error) {
	w := bits.NewWriter(HistorySize)
	steps := []func() error{
		func() error { return w.PutUint(kindBits, uint64(e.Code)) },
		func() error { return en1545.WriteDateTime(w, e.Time) },
		func() error { return w.PutUint(fareBits, uint64(e.Fare)) },
		func() error { return w.PutUint(groupBits, uint64(e.GroupSize)) },
		func() error { return w.PutUint(valueBits, uint64(e.Remaining)) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
	}

	data := w.Bytes()
	data[HistorySize-1] |= byte(bits.Parity(data))
	return data, nil
}
