package card

// Status is the reader state exposed to the presentation layer.
type Status int

const (
	StatusNfcNotSupported Status = iota
	StatusDisabled
	StatusIdle
	StatusReading
	StatusReady
	StatusUnsupportedCard
	StatusReadError
)

var statusNames = map[Status]string{
	StatusNfcNotSupported: "NfcNotSupported",
	StatusDisabled:        "Disabled",
	StatusIdle:            "Idle",
	StatusReading:         "Reading",
	StatusReady:           "Ready",
	StatusUnsupportedCard: "UnsupportedCard",
	StatusReadError:       "ReadError",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Status(?)"
}
