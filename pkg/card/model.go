package card

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (cents).
type Money int64

// Decimal returns the amount in major units with two decimal digits.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// RawBlock is a byte sequence fetched from one file on the card.
type RawBlock struct {
	File   byte
	Offset int
	Data   []byte
}

func (b RawBlock) String() string {
	return fmt.Sprintf("file %02X @%d (%d bytes)", b.File, b.Offset, len(b.Data))
}

// Profile holds cardholder and application information.
// Zero Birthday or IssueDate means the card does not record it.
type Profile struct {
	AppVersion int
	CardNumber string
	HolderName string
	Birthday   time.Time
	IssueDate  time.Time
}

// Balance is the stored value purse.
type Balance struct {
	Current    Money
	LastLoaded Money
	LoadedAt   time.Time
}

// AreaType tells how a validity area code is to be interpreted.
type AreaType int

const (
	AreaZone AreaType = iota
	AreaVehicle
	AreaMultiZone
	AreaUnknown
)

// Area is the validity area of a ticket.
type Area struct {
	Type AreaType
	Code int
	Name string
}

func (a Area) String() string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprintf("area %d/%d", a.Type, a.Code)
}

// SeasonTicket is a time-bounded travel entitlement.
// Start and End are calendar days in the card's time zone, End inclusive.
type SeasonTicket struct {
	Product        int
	Area           Area
	Start          time.Time
	End            time.Time
	BoardingWindow time.Duration
	GroupSize      int
}

// Active reports whether now falls within the validity period.
func (t SeasonTicket) Active(now time.Time) bool {
	return t.DaysRemaining(now) > 0
}

// DaysRemaining returns the number of validity days left including today,
// or 0 if the period has not started or has ended.
func (t SeasonTicket) DaysRemaining(now time.Time) int {
	today := civilDay(now.In(t.End.Location()))
	first := civilDay(t.Start)
	last := civilDay(t.End)
	if today.Before(first) || today.After(last) {
		return 0
	}
	return int(last.Sub(today).Hours()/24) + 1
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TransactionKind classifies a history entry.
type TransactionKind int

const (
	TransactionUnknown TransactionKind = iota
	TransactionSeasonTicketUse
	TransactionBoarding
	TransactionValueDeduction
	TransactionIssue
	TransactionCharge
	TransactionDeposit
)

func (k TransactionKind) String() string {
	switch k {
	case TransactionSeasonTicketUse:
		return "season-ticket-use"
	case TransactionBoarding:
		return "boarding"
	case TransactionValueDeduction:
		return "value-deduction"
	case TransactionIssue:
		return "issue"
	case TransactionCharge:
		return "charge"
	case TransactionDeposit:
		return "deposit"
	default:
		return "unknown"
	}
}

// HistoryEntry is one transaction of the card's circular log.
// Code keeps the raw type code so unknown transactions stay inspectable.
type HistoryEntry struct {
	Time      time.Time
	Kind      TransactionKind
	Code      int
	Fare      Money
	GroupSize int
	Remaining Money
}
