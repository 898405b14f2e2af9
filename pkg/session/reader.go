package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/desfire"
	"github.com/gregLibert/travel-card/pkg/iso7816"
)

// DefaultRetryLimit is the number of extra attempts a step gets after a
// transport failure.
const DefaultRetryLimit = 2

// Reader runs the fixed read sequence over an open connection: select the
// application, then profile, balance, season tickets and history.
type Reader struct {
	Types      []card.Type
	RetryLimit int
	RetryDelay time.Duration
	Log        logrus.FieldLogger
}

func (r *Reader) logger() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

func (r *Reader) backoff() retry.Backoff {
	limit := r.RetryLimit
	if limit < 0 {
		limit = 0
	}
	var next retry.Backoff = retry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
	if r.RetryDelay > 0 {
		next = retry.NewConstant(r.RetryDelay)
	}
	return retry.WithMaxRetries(uint64(limit), next)
}

// step runs one card operation, retrying transport failures.
func step[T any](ctx context.Context, r *Reader, name string, op func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	return retry.DoValue(ctx, r.backoff(), func(ctx context.Context) (T, error) {
		attempt++
		v, err := op(ctx)
		if err != nil && card.IsRetryable(err) {
			r.logger().WithFields(logrus.Fields{"step": name, "attempt": attempt}).WithError(err).Warn("step failed, retrying")
			return v, retry.RetryableError(err)
		}
		return v, err
	})
}

// Read performs the sequence through ex and assembles the snapshot. Any
// failure discards everything read so far.
func (r *Reader) Read(ctx context.Context, ex iso7816.Exchanger, opts ...card.Option) (*card.Snapshot, error) {
	sel := desfire.NewSelector(ex, r.logger())

	t, err := r.detect(ctx, sel)
	if err != nil {
		return nil, err
	}
	log := r.logger().WithField("card", t.Name())
	l := t.Layout()

	profileBlock, err := r.readFile(ctx, sel, "profile", l.Profile, 0)
	if err != nil {
		return nil, err
	}
	profile, err := t.DecodeProfile(profileBlock)
	if err != nil {
		return nil, err
	}

	balanceBlock, err := r.readFile(ctx, sel, "balance", l.Balance, 0)
	if err != nil {
		return nil, err
	}
	balance, err := t.DecodeBalance(balanceBlock)
	if err != nil {
		return nil, err
	}

	var tickets []card.SeasonTicket
	for slot := 0; slot < l.TicketSlots; slot++ {
		b, err := r.readFile(ctx, sel, "season ticket", l.Tickets, slot*l.Tickets.Size)
		if err != nil {
			return nil, err
		}
		ticket, ok, err := t.DecodeSeasonTicket(b)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", slot, err)
		}
		if !ok {
			break
		}
		tickets = append(tickets, ticket)
	}

	history, err := r.readHistory(ctx, sel, t)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"tickets": len(tickets),
		"history": len(history),
	}).Debug("card read")

	return card.Assemble(t, profile, balance, tickets, history, opts...)
}

// detect selects the application of the first card type the card holds.
func (r *Reader) detect(ctx context.Context, sel *desfire.Selector) (card.Type, error) {
	for _, t := range r.Types {
		_, err := step(ctx, r, "select", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, sel.SelectApplication(ctx, t.ApplicationID())
		})
		switch {
		case err == nil:
			r.logger().WithField("card", t.Name()).Debug("card type detected")
			return t, nil
		case errors.Is(err, card.ErrUnsupportedCard):
			continue
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: no known application", card.ErrUnsupportedCard)
}

func (r *Reader) readFile(ctx context.Context, sel *desfire.Selector, name string, f card.File, offset int) (card.RawBlock, error) {
	return step(ctx, r, name, func(ctx context.Context) (card.RawBlock, error) {
		return sel.Read(ctx, f, offset)
	})
}

// readHistory reads the whole ring and decodes it newest first.
func (r *Reader) readHistory(ctx context.Context, sel *desfire.Selector, t card.Type) ([]card.HistoryEntry, error) {
	f := t.Layout().History
	data, err := step(ctx, r, "history", func(ctx context.Context) ([]byte, error) {
		return sel.ReadRecords(ctx, f.ID, 0, 0)
	})
	if err != nil {
		return nil, err
	}

	var entries []card.HistoryEntry
	for end := len(data); end > 0; end -= f.Size {
		start := max(end-f.Size, 0)
		entry, ok, err := t.DecodeHistory(card.RawBlock{File: f.ID, Offset: start, Data: data[start:end]})
		if err != nil {
			return nil, fmt.Errorf("history record at %d: %w", start, err)
		}
		if ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
