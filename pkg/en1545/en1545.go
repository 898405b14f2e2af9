// Package en1545 decodes the EN 1545 date and time primitives used by
// Finnish transit cards.
//
//   - DateStamp: 14 bits, days since 1997-01-01.
//   - TimeStamp: 11 bits, minutes since midnight.
//   - BirthDate: 16 bits, days since 1900-01-01.
//
// All values are local to Europe/Helsinki. A zero field means the card does
// not record the value.
package en1545

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/gregLibert/travel-card/pkg/bits"
	"github.com/gregLibert/travel-card/pkg/card"
)

const (
	DateBits      = 14
	TimeBits      = 11
	BirthDateBits = 16

	minutesPerDay = 24 * 60
)

var (
	locOnce sync.Once
	loc     *time.Location
)

// Location returns the time zone of card timestamps.
func Location() *time.Location {
	locOnce.Do(func() {
		var err error
		loc, err = time.LoadLocation("Europe/Helsinki")
		if err != nil {
			loc = time.FixedZone("EET", 2*60*60)
		}
	})
	return loc
}

// Epoch returns day zero of DateStamp fields.
func Epoch() time.Time {
	return time.Date(1997, time.January, 1, 0, 0, 0, 0, Location())
}

// MinDate and MaxDate bound any date a card may plausibly carry.
func MinDate() time.Time {
	return time.Date(1900, time.January, 1, 0, 0, 0, 0, Location())
}

func MaxDate() time.Time {
	return Epoch().AddDate(150, 0, 0)
}

// CheckRange fails with card.ErrInvalidDate when t lies outside [MinDate, MaxDate].
// A misaligned bit offset usually lands here.
func CheckRange(t time.Time) error {
	if t.Before(MinDate()) || t.After(MaxDate()) {
		return fmt.Errorf("%w: %s out of range", card.ErrInvalidDate, t.Format(time.DateOnly))
	}
	return nil
}

// Date converts a DateStamp to a calendar day.
func Date(days uint64) time.Time {
	return Epoch().AddDate(0, 0, int(days))
}

// DateTime combines a DateStamp and a TimeStamp.
func DateTime(days, minutes uint64) (time.Time, error) {
	if minutes >= minutesPerDay {
		return time.Time{}, fmt.Errorf("%w: time stamp %d minutes", card.ErrInvalidDate, minutes)
	}
	y, m, d := Date(days).Date()
	return time.Date(y, m, d, int(minutes/60), int(minutes%60), 0, 0, Location()), nil
}

// DaysSinceEpoch is the inverse of Date.
func DaysSinceEpoch(t time.Time) (uint64, error) {
	y, m, d := t.In(Location()).Date()
	epoch := Epoch()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	zero := time.Date(epoch.Year(), epoch.Month(), epoch.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(zero) {
		return 0, fmt.Errorf("%w: %s before epoch", card.ErrInvalidDate, t.Format(time.DateOnly))
	}
	return uint64(day.Sub(zero).Hours() / 24), nil
}

// MinuteOfDay returns the TimeStamp of t.
func MinuteOfDay(t time.Time) uint64 {
	local := t.In(Location())
	return uint64(local.Hour()*60 + local.Minute())
}

// Days1900 converts a count of days since 1900-01-01 to a calendar day.
func Days1900(days uint64) (time.Time, error) {
	t := MinDate().AddDate(0, 0, int(days))
	if err := CheckRange(t); err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// DaysSince1900 is the inverse of Days1900.
func DaysSince1900(t time.Time) (uint64, error) {
	if err := CheckRange(t); err != nil {
		return 0, err
	}
	y, m, d := t.In(Location()).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return uint64(day.Sub(time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)).Hours() / 24), nil
}

// ReadOptionalDate extracts a DateStamp that may be empty.
func ReadOptionalDate(r *bits.Reader) (t time.Time, ok bool, err error) {
	days, err := r.Uint(DateBits)
	if err != nil || days == 0 {
		return time.Time{}, false, err
	}
	t = Date(days)
	if err := CheckRange(t); err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// ReadDateTime extracts a DateStamp immediately followed by a TimeStamp.
func ReadDateTime(r *bits.Reader) (time.Time, error) {
	days, err := r.Uint(DateBits)
	if err != nil {
		return time.Time{}, err
	}
	minutes, err := r.Uint(TimeBits)
	if err != nil {
		return time.Time{}, err
	}
	return DateTime(days, minutes)
}

// ReadOptionalDateTime is ReadDateTime for a pair of fields that are both
// zero when unset.
func ReadOptionalDateTime(r *bits.Reader) (t time.Time, ok bool, err error) {
	days, err := r.Uint(DateBits)
	if err != nil {
		return time.Time{}, false, err
	}
	minutes, err := r.Uint(TimeBits)
	if err != nil || (days == 0 && minutes == 0) {
		return time.Time{}, false, err
	}
	if t, err = DateTime(days, minutes); err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// ReadBirthDate extracts a BirthDate.
func ReadBirthDate(r *bits.Reader) (t time.Time, ok bool, err error) {
	days, err := r.Uint(BirthDateBits)
	if err != nil || days == 0 {
		return time.Time{}, false, err
	}
	if t, err = Days1900(days); err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// WriteDate packs a DateStamp.
func WriteDate(w *bits.Writer, t time.Time) error {
	days, err := DaysSinceEpoch(t)
	if err != nil {
		return err
	}
	return w.PutUint(DateBits, days)
}

// WriteOptionalDate packs a DateStamp; the zero time is written as an empty field.
func WriteOptionalDate(w *bits.Writer, t time.Time) error {
	if t.IsZero() {
		return w.PutUint(DateBits, 0)
	}
	return WriteDate(w, t)
}

// WriteDateTime packs a DateStamp followed by a TimeStamp.
func WriteDateTime(w *bits.Writer, t time.Time) error {
	if err := WriteDate(w, t); err != nil {
		return err
	}
	return w.PutUint(TimeBits, MinuteOfDay(t))
}

// WriteBirthDate packs a BirthDate; the zero time is written as an empty field.
func WriteBirthDate(w *bits.Writer, t time.Time) error {
	if t.IsZero() {
		return w.PutUint(BirthDateBits, 0)
	}
	days, err := DaysSince1900(t)
	if err != nil {
		return err
	}
	return w.PutUint(BirthDateBits, days)
}
