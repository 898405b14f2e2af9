package card

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
)

// AID is a 3-byte DESFire application identifier.
type AID [3]byte

func (a AID) String() string {
	return strings.ToUpper(hex.EncodeToString(a[:]))
}

// File locates a data, value or record file of the card application.
// Size is the block size: the file length for data files, the record
// length for record files and the slot length for slotted files. Value
// files are read with GetValue instead of ReadData.
type File struct {
	ID    byte
	Size  int
	Value bool
}

// Layout is the file map of a card application.
type Layout struct {
	Profile        File
	Balance        File
	Tickets        File
	TicketSlots    int
	History        File
	HistoryRecords int
}

// Decoder turns raw blocks into typed records. Implementations are pure.
// The boolean results report whether a slot or ring entry is in use.
type Decoder interface {
	DecodeProfile(RawBlock) (*Profile, error)
	DecodeBalance(RawBlock) (Balance, error)
	DecodeSeasonTicket(RawBlock) (SeasonTicket, bool, error)
	DecodeHistory(RawBlock) (HistoryEntry, bool, error)
}

// Type describes one card product.
type Type interface {
	Decoder
	Name() string
	ApplicationID() AID
	Layout() Layout
}

var (
	regMu    sync.RWMutex
	registry []Type
)

// Register makes a card type available for detection. Types are tried in
// registration order. Registering the same name twice panics.
func Register(t Type) {
	regMu.Lock()
	defer regMu.Unlock()
	for _, existing := range registry {
		if existing.Name() == t.Name() {
			panic(fmt.Sprintf("card: type %q registered twice", t.Name()))
		}
	}
	registry = append(registry, t)
}

// Lookup returns the registered type with the given name.
func Lookup(name string) (Type, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	for _, t := range registry {
		if t.Name() == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("card type %q not registered", name)
}

// Types returns all registered types in registration order.
func Types() []Type {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]Type, len(registry))
	copy(out, registry)
	return out
}

// Resolve returns the types named in names, or every registered type when
// names is empty.
func Resolve(names []string) ([]Type, error) {
	if len(names) == 0 {
		return Types(), nil
	}
	out := make([]Type, 0, len(names))
	for _, name := range names {
		t, err := Lookup(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
