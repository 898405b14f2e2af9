package desfire

import (
	"context"
	"fmt"
	"sort"

	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/tlv"
)

// FileImage is the content of one file. RecordSize is zero for data and
// value files. A value file holds its value as 4 little-endian bytes.
type FileImage struct {
	Data       []byte
	RecordSize int
	Value      bool
}

// Application is an in-memory image of a card application.
type Application struct {
	CardType string
	AID      card.AID
	Files    map[byte]FileImage
}

// Capture reads every file of t's layout into an Application image.
func Capture(ctx context.Context, s *Selector, t card.Type) (Application, error) {
	if err := s.SelectApplication(ctx, t.ApplicationID()); err != nil {
		return Application{}, err
	}

	l := t.Layout()
	app := Application{
		CardType: t.Name(),
		AID:      t.ApplicationID(),
		Files:    make(map[byte]FileImage),
	}

	for _, f := range []card.File{l.Profile, l.Balance} {
		block, err := s.Read(ctx, f, 0)
		if err != nil {
			return Application{}, err
		}
		app.Files[f.ID] = FileImage{Data: block.Data, Value: f.Value}
	}

	block, err := s.ReadFile(ctx, l.Tickets.ID, 0, l.Tickets.Size*l.TicketSlots)
	if err != nil {
		return Application{}, err
	}
	app.Files[l.Tickets.ID] = FileImage{Data: block.Data}

	records, err := s.ReadRecords(ctx, l.History.ID, 0, 0)
	if err != nil {
		return Application{}, err
	}
	app.Files[l.History.ID] = FileImage{Data: records, RecordSize: l.History.Size}

	return app, nil
}

// Dump converts the image to its BER-TLV form. Files are ordered by number.
func (a Application) Dump() *tlv.Dump {
	ids := make([]int, 0, len(a.Files))
	for id := range a.Files {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	d := &tlv.Dump{
		CardType: []byte(a.CardType),
		AID:      append([]byte(nil), a.AID[:]...),
	}
	for _, id := range ids {
		f := a.Files[byte(id)]
		entry := tlv.DumpFile{ID: []byte{byte(id)}, Data: f.Data}
		if f.RecordSize > 0 {
			entry.RecordSize = []byte{byte(f.RecordSize)}
		}
		if f.Value {
			entry.FileType = []byte{FileTypeValue}
		}
		d.Files = append(d.Files, entry)
	}
	return d
}

// FromDump rebuilds an application image from a decoded dump.
func FromDump(d *tlv.Dump) (Application, error) {
	if len(d.AID) != len(card.AID{}) {
		return Application{}, fmt.Errorf("dump: invalid application id % X", d.AID)
	}

	app := Application{
		CardType: string(d.CardType),
		Files:    make(map[byte]FileImage, len(d.Files)),
	}
	copy(app.AID[:], d.AID)

	for _, f := range d.Files {
		if len(f.ID) != 1 {
			return Application{}, fmt.Errorf("dump: invalid file number % X", f.ID)
		}
		img := FileImage{Data: f.Data}
		if len(f.FileType) > 0 {
			if len(f.FileType) != 1 || f.FileType[0] != FileTypeValue {
				return Application{}, fmt.Errorf("dump: file %02X has unsupported type % X", f.ID[0], f.FileType)
			}
			if len(f.Data) != ValueSize {
				return Application{}, fmt.Errorf("dump: value file %02X holds %d bytes", f.ID[0], len(f.Data))
			}
			img.Value = true
		}
		if len(f.RecordSize) > 0 {
			for _, b := range f.RecordSize {
				img.RecordSize = img.RecordSize<<8 | int(b)
			}
			if img.RecordSize == 0 || len(f.Data)%img.RecordSize != 0 {
				return Application{}, fmt.Errorf("dump: file %02X length %d is not a multiple of record size %d", f.ID[0], len(f.Data), img.RecordSize)
			}
		}
		app.Files[f.ID[0]] = img
	}
	return app, nil
}
