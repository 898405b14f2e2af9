package desfire

import (
	"fmt"
	"sync"

	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/iso7816"
)

// DefaultFrameSize is the largest payload the emulator returns per frame,
// matching the frame limit of a physical DESFire EV1.
const DefaultFrameSize = 59

// Emulator answers native DESFire commands from an in-memory card image.
// It implements transport.Link, so recorded dumps can be decoded offline
// through the same session code as a physical card.
type Emulator struct {
	mu        sync.Mutex
	apps      []Application
	selected  *Application
	pending   []byte
	frameSize int
}

// NewEmulator returns an emulator exposing apps.
func NewEmulator(apps ...Application) *Emulator {
	return &Emulator{apps: apps, frameSize: DefaultFrameSize}
}

// SetFrameSize changes the per-frame payload limit.
func (e *Emulator) SetFrameSize(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > 0 {
		e.frameSize = n
	}
}

// Transmit implements transport.Link.
func (e *Emulator) Transmit(cmd []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(cmd) < 4 {
		return nil, fmt.Errorf("command too short: %d bytes", len(cmd))
	}
	if cmd[0] != ClassNative {
		sw := iso7816.SW_ERR_CLA_NOT_SUPPORTED
		return []byte{sw.SW1(), sw.SW2()}, nil
	}

	params, err := commandData(cmd)
	if err != nil {
		return e.status(StatusLengthError), nil
	}

	code := cmd[1]
	if code != byte(CmdAdditionalFrame) {
		e.pending = nil
	}

	switch code {
	case byte(CmdSelectApplication):
		return e.selectApplication(params), nil
	case byte(CmdReadData):
		return e.readData(params), nil
	case byte(CmdGetValue):
		return e.getValue(params), nil
	case byte(CmdReadRecords):
		return e.readRecords(params), nil
	case byte(CmdAdditionalFrame):
		if e.pending == nil {
			return e.status(StatusIllegalCommand), nil
		}
		return e.respond(e.pending), nil
	default:
		return e.status(StatusIllegalCommand), nil
	}
}

// commandData extracts the data field of a short APDU.
func commandData(cmd []byte) ([]byte, error) {
	switch {
	case len(cmd) <= 5:
		// case 1 or case 2: no data
		return nil, nil
	default:
		lc := int(cmd[4])
		if len(cmd) < 5+lc {
			return nil, fmt.Errorf("Lc %d exceeds command", lc)
		}
		return cmd[5 : 5+lc], nil
	}
}

func (e *Emulator) selectApplication(params []byte) []byte {
	if len(params) != 3 {
		return e.status(StatusLengthError)
	}
	var aid card.AID
	copy(aid[:], params)

	if aid == (card.AID{}) {
		e.selected = nil
		return e.status(StatusOK)
	}
	for i := range e.apps {
		if e.apps[i].AID == aid {
			e.selected = &e.apps[i]
			return e.status(StatusOK)
		}
	}
	e.selected = nil
	return e.status(StatusApplicationNotFound)
}

func (e *Emulator) readData(params []byte) []byte {
	if len(params) != 7 {
		return e.status(StatusLengthError)
	}
	f, st := e.file(params[0])
	if st != StatusOK {
		return e.status(st)
	}
	if f.RecordSize > 0 || f.Value {
		return e.status(StatusParameterError)
	}

	offset, length := fromLE24(params[1:4]), fromLE24(params[4:7])
	if length == 0 {
		length = len(f.Data) - offset
	}
	if offset > len(f.Data) || length < 0 || offset+length > len(f.Data) {
		return e.status(StatusBoundaryError)
	}
	return e.respond(f.Data[offset : offset+length])
}

func (e *Emulator) getValue(params []byte) []byte {
	if len(params) != 1 {
		return e.status(StatusLengthError)
	}
	f, st := e.file(params[0])
	if st != StatusOK {
		return e.status(st)
	}
	if !f.Value {
		return e.status(StatusParameterError)
	}
	return e.respond(f.Data)
}

func (e *Emulator) readRecords(params []byte) []byte {
	if len(params) != 7 {
		return e.status(StatusLengthError)
	}
	f, st := e.file(params[0])
	if st != StatusOK {
		return e.status(st)
	}
	if f.RecordSize == 0 {
		return e.status(StatusParameterError)
	}

	total := len(f.Data) / f.RecordSize
	first, count := fromLE24(params[1:4]), fromLE24(params[4:7])
	if count == 0 {
		count = total - first
	}
	if first >= total || count <= 0 || first+count > total {
		return e.status(StatusBoundaryError)
	}

	// records are stored oldest first; first counts back from the newest
	end := (total - first) * f.RecordSize
	start := end - count*f.RecordSize
	return e.respond(f.Data[start:end])
}

func (e *Emulator) file(id byte) (FileImage, Status) {
	if e.selected == nil {
		return FileImage{}, StatusPermissionDenied
	}
	f, ok := e.selected.Files[id]
	if !ok {
		return FileImage{}, StatusFileNotFound
	}
	return f, StatusOK
}

// respond emits one frame of data and keeps the rest for 0xAF.
func (e *Emulator) respond(data []byte) []byte {
	if len(data) > e.frameSize {
		e.pending = data[e.frameSize:]
		return e.withStatus(data[:e.frameSize], StatusAdditionalFrame)
	}
	e.pending = nil
	return e.withStatus(data, StatusOK)
}

func (e *Emulator) withStatus(data []byte, st Status) []byte {
	out := make([]byte, 0, len(data)+2)
	out = append(out, data...)
	return append(out, statusPrefix, byte(st))
}

func (e *Emulator) status(st Status) []byte {
	return []byte{statusPrefix, byte(st)}
}
