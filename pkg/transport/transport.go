// Package transport owns the exclusive command/response channel to a tag.
//
// The Adapter turns the raw Link of the NFC layer into a context-aware
// Exchange primitive: it enforces that exchanges only happen while a
// connection is open, serialises them, applies the exchange timeout and maps
// link failures to card.ErrTransport. It never retries.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gregLibert/travel-card/pkg/card"
)

// MinResponseLength is the size of a bare status word.
const MinResponseLength = 2

// DefaultTimeout bounds an exchange when no WithTimeout option is given.
const DefaultTimeout = 2 * time.Second

// ErrNotConnected is returned by Exchange outside an open connection.
// It signals a programming error in the caller, not a link condition.
var ErrNotConnected = errors.New("transport: exchange without an open connection")

// Link is the raw exchange primitive provided by the NFC layer.
// Transmit blocks until the tag answers or the link fails.
type Link interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout bounds every exchange. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// WithLogger sets the logger used for frame tracing.
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Adapter) { a.log = l }
}

// Adapter serialises exchanges over one Link.
type Adapter struct {
	link    Link
	timeout time.Duration
	log     logrus.FieldLogger

	mu   sync.Mutex
	open bool

	// busy holds a token while a Transmit is in flight, including one
	// abandoned by a timed out Exchange.
	busy chan struct{}
}

// NewAdapter wraps link. The adapter starts closed.
func NewAdapter(link Link, opts ...Option) *Adapter {
	a := &Adapter{
		link:    link,
		timeout: DefaultTimeout,
		log:     logrus.StandardLogger(),
		busy:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Open marks the connection as established.
func (a *Adapter) Open() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.open = true
}

// Close ends the connection. Later exchanges fail with ErrNotConnected.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.open = false
}

// Active reports whether the connection is open.
func (a *Adapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.open
}

type result struct {
	resp []byte
	err  error
}

// Exchange sends one command frame and returns the response frame.
//
// Errors:
//   - ErrNotConnected when the adapter is closed.
//   - card.ErrTagRemoved when the link reports the tag is gone.
//   - card.ErrTransport on link failure, timeout or a response shorter than a status word.
//   - the context error when ctx is cancelled by the caller.
func (a *Adapter) Exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	if !a.Active() {
		return nil, ErrNotConnected
	}

	exCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		exCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	select {
	case a.busy <- struct{}{}:
	case <-exCtx.Done():
		return nil, a.interrupted(ctx)
	}

	a.log.WithField("cmd", fmt.Sprintf("% X", cmd)).Trace("exchange >>")

	done := make(chan result, 1)
	go func() {
		defer func() { <-a.busy }()
		resp, err := a.link.Transmit(cmd)
		done <- result{resp: resp, err: err}
	}()

	select {
	case res := <-done:
		return a.check(res)
	case <-exCtx.Done():
		return nil, a.interrupted(ctx)
	}
}

// interrupted reports why an exchange stopped waiting: the caller gave up,
// or the exchange timeout expired.
func (a *Adapter) interrupted(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("exchange aborted: %w", ctx.Err())
	}
	return fmt.Errorf("%w: no response within %s", card.ErrTransport, a.timeout)
}

func (a *Adapter) check(res result) ([]byte, error) {
	if res.err != nil {
		if errors.Is(res.err, card.ErrTagRemoved) {
			return nil, res.err
		}
		return nil, fmt.Errorf("%w: %w", card.ErrTransport, res.err)
	}
	if len(res.resp) < MinResponseLength {
		return nil, fmt.Errorf("%w: response of %d bytes", card.ErrTransport, len(res.resp))
	}
	a.log.WithField("resp", fmt.Sprintf("% X", res.resp)).Trace("exchange <<")
	return res.resp, nil
}
