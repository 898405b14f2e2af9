package nysse

import (
	"fmt"

	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/desfire"
)

// Contents is the record set of a Nysse card image. History is given
// oldest first.
type Contents struct {
	Profile card.Profile
	Balance card.Balance
	Pass    *card.SeasonTicket
	History []card.HistoryEntry
}

// NewImage encodes c into an application image that desfire.Emulator can
// serve. A nil Pass leaves the season pass file empty.
func NewImage(c Contents) (desfire.Application, error) {
	if len(c.History) > HistoryRecords {
		return desfire.Application{}, fmt.Errorf("image: %d history records for a ring of %d", len(c.History), HistoryRecords)
	}

	owner, err := EncodeOwner(c.Profile)
	if err != nil {
		return desfire.Application{}, err
	}
	balance, err := EncodeBalance(c.Balance)
	if err != nil {
		return desfire.Application{}, err
	}
	pass := make([]byte, SeasonPassSize)
	if c.Pass != nil {
		if pass, err = EncodeSeasonPass(*c.Pass); err != nil {
			return desfire.Application{}, err
		}
	}

	history := make([]byte, HistoryRecords*HistorySize)
	empty := HistoryRecords - len(c.History)
	for i, e := range c.History {
		rec, err := EncodeHistory(e)
		if err != nil {
			return desfire.Application{}, err
		}
		copy(history[(empty+i)*HistorySize:], rec)
	}

	return desfire.Application{
		CardType: Name,
		AID:      ApplicationID,
		Files: map[byte]desfire.FileImage{
			FileBalance:    {Data: balance, Value: true},
			FileSeasonPass: {Data: pass},
			FileHistory:    {Data: history, RecordSize: HistorySize},
			FileOwner:      {Data: owner},
		},
	}, nil
}
