package desfire

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/iso7816"
)

// maxFrames bounds the additional-frame loop of one command.
const maxFrames = 64

// Selector performs logical reads on a DESFire card. Each call hides the
// multi-frame exchange behind a single result. It keeps no state besides
// what the card itself holds (the selected application).
type Selector struct {
	client *iso7816.Client
	cla    iso7816.Class
	log    logrus.FieldLogger
}

// NewSelector returns a Selector sending commands through ex.
func NewSelector(ex iso7816.Exchanger, log logrus.FieldLogger) *Selector {
	cla, _ := iso7816.NewClass(ClassNative)
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Selector{
		client: iso7816.NewClient(ex),
		cla:    cla,
		log:    log,
	}
}

// SelectApplication makes aid the current application.
// A missing application fails with card.ErrUnsupportedCard.
func (s *Selector) SelectApplication(ctx context.Context, aid card.AID) error {
	if _, err := s.transceive(ctx, CmdSelectApplication, aid[:]); err != nil {
		return fmt.Errorf("select application %s: %w", aid, err)
	}
	s.log.WithField("aid", aid.String()).Debug("application selected")
	return nil
}

// ReadFile reads length bytes at offset from a standard or backup data file.
// A zero length reads to the end of the file.
func (s *Selector) ReadFile(ctx context.Context, file byte, offset, length int) (card.RawBlock, error) {
	if offset < 0 || offset > MaxLE24 || length < 0 || length > MaxLE24 {
		return card.RawBlock{}, fmt.Errorf("read file %02X: offset %d length %d out of range", file, offset, length)
	}

	params := append([]byte{file}, le24(offset)...)
	params = append(params, le24(length)...)
	data, err := s.transceive(ctx, CmdReadData, params)
	if err != nil {
		return card.RawBlock{}, fmt.Errorf("read file %02X: %w", file, err)
	}
	if length > 0 && len(data) != length {
		return card.RawBlock{}, fmt.Errorf("read file %02X: %w: %d bytes for a read of %d", file, card.ErrTransport, len(data), length)
	}

	s.log.WithFields(logrus.Fields{"file": fmt.Sprintf("%02X", file), "offset": offset, "bytes": len(data)}).Debug("file read")
	return card.RawBlock{File: file, Offset: offset, Data: data}, nil
}

// GetValue reads the current value of a value file as its 4-byte
// little-endian encoding.
func (s *Selector) GetValue(ctx context.Context, file byte) (card.RawBlock, error) {
	data, err := s.transceive(ctx, CmdGetValue, []byte{file})
	if err != nil {
		return card.RawBlock{}, fmt.Errorf("get value %02X: %w", file, err)
	}
	if len(data) != ValueSize {
		return card.RawBlock{}, fmt.Errorf("get value %02X: %w: %d bytes", file, card.ErrTransport, len(data))
	}

	s.log.WithField("file", fmt.Sprintf("%02X", file)).Debug("value read")
	return card.RawBlock{File: file, Data: data}, nil
}

// Read fetches f: GetValue for value files, ReadFile otherwise.
func (s *Selector) Read(ctx context.Context, f card.File, offset int) (card.RawBlock, error) {
	if f.Value {
		return s.GetValue(ctx, f.ID)
	}
	return s.ReadFile(ctx, f.ID, offset, f.Size)
}

// ReadRecords reads count records of a linear or cyclic record file,
// starting first records back from the newest. A zero count reads all
// records. Records come back oldest first.
func (s *Selector) ReadRecords(ctx context.Context, file byte, first, count int) ([]byte, error) {
	if first < 0 || first > MaxLE24 || count < 0 || count > MaxLE24 {
		return nil, fmt.Errorf("read records %02X: first %d count %d out of range", file, first, count)
	}

	params := append([]byte{file}, le24(first)...)
	params = append(params, le24(count)...)
	data, err := s.transceive(ctx, CmdReadRecords, params)
	if err != nil {
		return nil, fmt.Errorf("read records %02X: %w", file, err)
	}

	s.log.WithFields(logrus.Fields{"file": fmt.Sprintf("%02X", file), "bytes": len(data)}).Debug("records read")
	return data, nil
}

// transceive sends one native command and gathers additional frames.
func (s *Selector) transceive(ctx context.Context, code iso7816.InsCode, params []byte) ([]byte, error) {
	cmd := iso7816.NewCommandAPDU(s.cla, iso7816.NewProprietaryInstruction(code), 0x00, 0x00, params, iso7816.MaxShortLe)

	var out []byte
	for frame := 0; frame < maxFrames; frame++ {
		trace, err := s.client.Send(ctx, cmd)
		for i := range trace {
			s.log.WithField("apdu", trace[i].String()).Trace("exchange")
		}
		if err != nil {
			return nil, err
		}

		resp := trace.Last().Response
		out = append(out, resp.Data...)

		switch resp.Status {
		case StatusOK.Word():
			return out, nil
		case StatusAdditionalFrame.Word():
			cmd = iso7816.NewCommandAPDU(s.cla, iso7816.NewProprietaryInstruction(CmdAdditionalFrame), 0x00, 0x00, nil, iso7816.MaxShortLe)
		default:
			return nil, statusError(code, resp.Status)
		}
	}
	return nil, fmt.Errorf("%w: command %02X: more than %d frames", card.ErrUnsupportedCard, byte(code), maxFrames)
}
