package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/en1545"
	"github.com/gregLibert/travel-card/pkg/hsl"
	"github.com/gregLibert/travel-card/pkg/nysse"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

func euros(m card.Money) string {
	return m.Decimal().StringFixed(2) + " €"
}

// writeReport prints a snapshot in the sectioned layout of the card reports.
func writeReport(w io.Writer, snap *card.Snapshot) error {
	var sb strings.Builder

	sb.WriteString("=============================================\n")
	fmt.Fprintf(&sb, " %s CARD\n", strings.ToUpper(snap.CardType()))
	sb.WriteString("=============================================\n")
	if id := snap.SessionID(); id != "" {
		fmt.Fprintf(&sb, "  Session: %s (%s)\n", id, snap.ReadAt().Format(time.RFC3339))
	}

	if p, ok := snap.Profile(); ok {
		sb.WriteString("\n  [Profile]\n")
		if p.HolderName != "" {
			fmt.Fprintf(&sb, "    - Holder: %s\n", p.HolderName)
		}
		if p.CardNumber != "" {
			fmt.Fprintf(&sb, "    - Card number: %s\n", p.CardNumber)
			fmt.Fprintf(&sb, "    - Application version: %d\n", p.AppVersion)
		}
		if !p.IssueDate.IsZero() {
			fmt.Fprintf(&sb, "    - Issued: %s\n", p.IssueDate.Format(dateLayout))
		}
		if !p.Birthday.IsZero() {
			fmt.Fprintf(&sb, "    - Birthday: %s\n", p.Birthday.Format(dateLayout))
		}
	}

	b := snap.Balance()
	sb.WriteString("\n  [Balance]\n")
	fmt.Fprintf(&sb, "    - Value: %s\n", euros(b.Current))
	if !b.LoadedAt.IsZero() {
		fmt.Fprintf(&sb, "    - Last loaded: %s on %s\n", euros(b.LastLoaded), b.LoadedAt.Format(dateTimeLayout))
	}

	now := snap.ReadAt()
	if now.IsZero() {
		now = time.Now()
	}
	tickets := snap.SeasonTickets()
	fmt.Fprintf(&sb, "\n  [Season tickets] (%d)\n", len(tickets))
	for i, t := range tickets {
		line := fmt.Sprintf("    - #%d", i+1)
		if t.Area.Type != card.AreaUnknown || t.Area.Name != "" {
			line += " " + t.Area.String() + ","
		}
		if !t.Start.IsZero() {
			line += " " + t.Start.Format(dateLayout) + " to"
		} else {
			line += " until"
		}
		fmt.Fprintf(&sb, "%s %s, %d days left\n", line, t.End.Format(dateLayout), t.DaysRemaining(now))
	}

	history := snap.History()
	fmt.Fprintf(&sb, "\n  [History] (%d)\n", len(history))
	for _, e := range history {
		line := fmt.Sprintf("    - %s %-17s", e.Time.Format(dateTimeLayout), e.Kind)
		if e.Fare > 0 {
			line += " fare " + euros(e.Fare)
		}
		if e.Remaining > 0 {
			line += ", remaining " + euros(e.Remaining)
		}
		sb.WriteString(line + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// sampleCard is the content of the demo card written by the sample command.
func sampleCard() hsl.Contents {
	at := func(y int, m time.Month, d, hh, mm int) time.Time {
		return time.Date(y, m, d, hh, mm, 0, 0, en1545.Location())
	}
	return hsl.Contents{
		Profile: card.Profile{
			AppVersion: 2,
			CardNumber: "924620001234567890",
			IssueDate:  at(2019, time.June, 3, 0, 0),
		},
		Balance: card.Balance{Current: 1550, LastLoaded: 500, LoadedAt: at(2024, time.March, 4, 8, 12)},
		Tickets: []card.SeasonTicket{{
			Product:        1,
			Area:           hsl.NewArea(2, 1),
			Start:          at(2024, time.March, 1, 0, 0),
			End:            at(2024, time.March, 30, 0, 0),
			BoardingWindow: 80 * time.Minute,
			GroupSize:      1,
		}},
		History: []card.HistoryEntry{
			{Time: at(2024, time.March, 4, 8, 20), Code: 2, Fare: 320, GroupSize: 1, Remaining: 1870},
			{Time: at(2024, time.March, 5, 7, 58), Code: 0, GroupSize: 1, Remaining: 1870},
			{Time: at(2024, time.March, 5, 17, 31), Code: 2, Fare: 320, GroupSize: 1, Remaining: 1550},
		},
	}
}

// sampleNysseCard is the demo content of a Nysse card.
func sampleNysseCard() nysse.Contents {
	at := func(y int, m time.Month, d, hh, mm int) time.Time {
		return time.Date(y, m, d, hh, mm, 0, 0, en1545.Location())
	}
	return nysse.Contents{
		Profile: card.Profile{HolderName: "Virtanen Aino"},
		Balance: card.Balance{Current: 1240},
		Pass:    &card.SeasonTicket{Product: 1, End: at(2024, time.March, 30, 0, 0), GroupSize: 1},
		History: []card.HistoryEntry{
			{Time: at(2024, time.March, 1, 9, 15), Kind: card.TransactionCharge, Fare: 2000},
			{Time: at(2024, time.March, 4, 7, 42), Kind: card.TransactionBoarding, Fare: 380},
			{Time: at(2024, time.March, 5, 16, 3), Kind: card.TransactionBoarding, Fare: 380},
		},
	}
}
