package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gregLibert/travel-card/pkg/card"
	"github.com/gregLibert/travel-card/pkg/transport"
)

// ErrNfcNotSupported is returned by Run when the adapter has no NFC capability.
var ErrNfcNotSupported = errors.New("session: NFC not supported")

// Option configures a Machine.
type Option func(*Machine)

// WithTypes sets the card types tried, in order.
func WithTypes(types ...card.Type) Option {
	return func(m *Machine) { m.reader.Types = types }
}

// WithRetry bounds the extra attempts of a step after a transport failure.
func WithRetry(limit int, delay time.Duration) Option {
	return func(m *Machine) {
		m.reader.RetryLimit = limit
		m.reader.RetryDelay = delay
	}
}

// WithExchangeTimeout bounds a single command exchange.
func WithExchangeTimeout(d time.Duration) Option {
	return func(m *Machine) { m.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Machine) { m.log = l }
}

// WithUpdates publishes every state change on ch.
func WithUpdates(ch chan<- Update) Option {
	return func(m *Machine) { m.updates = ch }
}

// WithClock overrides the clock stamping snapshots.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine is the read session state machine. State is only changed by the
// Run loop; the accessors may be called from any goroutine.
type Machine struct {
	adapter Adapter
	reader  Reader
	timeout time.Duration
	log     logrus.FieldLogger
	updates chan<- Update
	now     func() time.Time

	mu       sync.RWMutex
	state    State
	failure  card.Status
	snapshot *card.Snapshot
}

// New returns an idle machine. Without WithTypes every registered card
// type is tried.
func New(adapter Adapter, opts ...Option) *Machine {
	m := &Machine{
		adapter: adapter,
		reader:  Reader{RetryLimit: DefaultRetryLimit},
		timeout: transport.DefaultTimeout,
		log:     logrus.StandardLogger(),
		now:     time.Now,
		state:   Idle,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.reader.Types == nil {
		m.reader.Types = card.Types()
	}
	m.reader.Log = m.log
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Snapshot returns the last snapshot, or nil unless the state is Ready.
func (m *Machine) Snapshot() *card.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Status returns the user-visible status.
func (m *Machine) Status() card.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Machine) statusLocked() card.Status {
	switch {
	case !m.adapter.Supported():
		return card.StatusNfcNotSupported
	case !m.adapter.Enabled():
		return card.StatusDisabled
	}
	switch {
	case m.state == Ready:
		return card.StatusReady
	case m.state == Failed:
		return m.failure
	case m.state.busy():
		return card.StatusReading
	default:
		return card.StatusIdle
	}
}

// job is one read in flight.
type job struct {
	id       string
	log      logrus.FieldLogger
	cancel   context.CancelFunc
	progress chan State
	done     chan result
}

type result struct {
	snapshot *card.Snapshot
	err      error
}

// Run consumes events until ctx is done or events is closed. It returns
// ErrNfcNotSupported at once when the adapter cannot read tags.
func (m *Machine) Run(ctx context.Context, events <-chan Event) error {
	if !m.adapter.Supported() {
		m.publish(ctx)
		return ErrNfcNotSupported
	}
	m.publish(ctx)

	var current *job
	defer func() {
		if current != nil {
			m.abort(current)
		}
	}()

	for {
		var progress <-chan State
		var done <-chan result
		if current != nil {
			progress, done = current.progress, current.done
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case TagDetected:
				if current != nil {
					m.log.Debug("tag detected during a read, ignored")
					continue
				}
				if !m.adapter.Enabled() {
					m.log.Info("tag detected while NFC is disabled, ignored")
					m.publish(ctx)
					continue
				}
				current = m.start(ctx, ev.Tag)
				m.set(ctx, Detecting, nil, 0)

			case TagRemoved:
				if current == nil {
					continue
				}
				current.log.Info("tag removed, read discarded")
				m.abort(current)
				current = nil
				m.set(ctx, Idle, nil, 0)
			}

		case st := <-progress:
			m.set(ctx, st, nil, 0)

		case res := <-done:
			log := current.log
			current = nil
			m.finish(ctx, log, res)
		}
	}
}

// finish moves to the terminal state of a completed read.
func (m *Machine) finish(ctx context.Context, log logrus.FieldLogger, res result) {
	if res.err == nil {
		log.WithField("card", res.snapshot.CardType()).Info("card read")
		m.set(ctx, Ready, res.snapshot, 0)
		return
	}

	status := card.StatusOf(res.err)
	if status == card.StatusIdle {
		log.WithError(res.err).Info("tag lost during read")
		m.set(ctx, Idle, nil, 0)
		return
	}
	log.WithError(res.err).WithField("status", status.String()).Warn("read failed")
	m.set(ctx, Failed, nil, status)
}

// start launches the read goroutine for tag.
func (m *Machine) start(ctx context.Context, tag Tag) *job {
	readCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	j := &job{
		id:       id,
		log:      m.log.WithField("session", id),
		cancel:   cancel,
		progress: make(chan State),
		done:     make(chan result, 1),
	}
	j.log.Info("tag detected")

	go func() {
		snap, err := m.read(readCtx, tag, j)
		j.done <- result{snapshot: snap, err: err}
	}()
	return j
}

// abort cancels j and waits for its goroutine, so no exchange outlives the
// session.
func (m *Machine) abort(j *job) {
	j.cancel()
	<-j.done
}

func (m *Machine) read(ctx context.Context, tag Tag, j *job) (*card.Snapshot, error) {
	link, err := tag.Connect(ctx)
	if err != nil {
		if errors.Is(err, card.ErrUnsupportedTag) || card.StatusOf(err) == card.StatusIdle {
			return nil, fmt.Errorf("connect: %w", err)
		}
		return nil, fmt.Errorf("connect: %w: %w", card.ErrUnsupportedTag, err)
	}
	if c, ok := link.(io.Closer); ok {
		defer c.Close()
	}

	a := transport.NewAdapter(link, transport.WithTimeout(m.timeout), transport.WithLogger(j.log))
	a.Open()
	defer a.Close()

	if !j.report(ctx, Connected) || !j.report(ctx, Reading) {
		return nil, ctx.Err()
	}
	return m.reader.Read(ctx, a, card.WithSession(j.id, m.now()))
}

// report hands a state change to the Run loop.
func (j *job) report(ctx context.Context, st State) bool {
	select {
	case j.progress <- st:
		return true
	case <-ctx.Done():
		return false
	}
}

// set changes the state and publishes it.
func (m *Machine) set(ctx context.Context, st State, snap *card.Snapshot, failure card.Status) {
	m.mu.Lock()
	m.state = st
	m.snapshot = snap
	m.failure = failure
	m.mu.Unlock()

	m.log.WithField("state", st.String()).Debug("state changed")
	m.publish(ctx)
}

func (m *Machine) publish(ctx context.Context) {
	if m.updates == nil {
		return
	}
	m.mu.RLock()
	u := Update{State: m.state, Status: m.statusLocked(), Snapshot: m.snapshot}
	m.mu.RUnlock()

	select {
	case m.updates <- u:
	case <-ctx.Done():
	}
}
