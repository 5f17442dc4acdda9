package channels

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	errNilSubscriber  = errors.New("subscriber channel cannot be nil")
	errAlreadyStarted = errors.New("broadcaster already started")
)

// SubscribeOption configures how messages reach one subscriber.
type SubscribeOption func(*subscriber) error

// WithSendTimeout makes sends to the subscriber wait up to d before the
// message is dropped. Without it, sends never block.
func WithSendTimeout(d time.Duration) SubscribeOption {
	return func(s *subscriber) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		s.timeout = d

		return nil
	}
}

type subscriber struct {
	name     string
	timeout  time.Duration
	inactive atomic.Bool
	dropped  atomic.Int32
}

type subscription[T any] struct {
	*subscriber
	ch chan<- T
}

func (s subscription[T]) deliver(msg T) {
	if s.inactive.Load() {
		s.dropped.Add(1)
		return
	}

	var err error
	if s.timeout > 0 {
		err = SendWithTimeout(s.ch, msg, s.timeout)
	} else {
		err = SendNonBlock(s.ch, msg)
	}
	if err == nil {
		return
	}

	s.dropped.Add(1)
	if errors.Is(err, ErrChannelClosed) {
		s.inactive.Store(true)
	}
}

// Broadcaster copies every message written to its input channel to each
// subscriber. A subscriber that is full loses the message; one whose
// channel was closed is skipped from then on.
//
// The input channel is closed when the context passed to Run is cancelled.
// Messages already queued are still delivered before Wait returns.
type Broadcaster[T any] struct {
	subs    []subscription[T]
	input   chan T
	started atomic.Bool
	wg      sync.WaitGroup
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{}
}

// Subscribe registers ch under name. It must be called before Run.
func (b *Broadcaster[T]) Subscribe(name string, ch chan<- T, opts ...SubscribeOption) error {
	if ch == nil {
		return errNilSubscriber
	}
	if b.started.Load() {
		return errAlreadyStarted
	}

	sub := &subscriber{name: name}
	for _, opt := range opts {
		if err := opt(sub); err != nil {
			return fmt.Errorf("subscriber %q: %w", name, err)
		}
	}
	b.subs = append(b.subs, subscription[T]{subscriber: sub, ch: ch})

	return nil
}

// Run starts delivery and returns the input channel. The channel belongs to
// the broadcaster; callers must not close it.
func (b *Broadcaster[T]) Run(ctx context.Context) (chan<- T, error) {
	if !b.started.CompareAndSwap(false, true) {
		return nil, errAlreadyStarted
	}
	if len(b.subs) == 0 {
		b.started.Store(false)
		return nil, errors.New("no subscribers available")
	}

	b.input = make(chan T, len(b.subs)*2)

	b.wg.Go(func() {
		for msg := range b.input {
			for _, s := range b.subs {
				s.deliver(msg)
			}
		}
	})

	go func() {
		<-ctx.Done()
		close(b.input)
	}()

	return b.input, nil
}

// Wait blocks until the input channel is closed and drained.
func (b *Broadcaster[T]) Wait() {
	b.wg.Wait()
}

// SubscriberStats reports delivery health for one subscriber.
type SubscriberStats struct {
	Name     string
	Dropped  int
	Inactive bool
}

// Stats returns one entry per subscriber, in subscription order.
func (b *Broadcaster[T]) Stats() []SubscriberStats {
	stats := make([]SubscriberStats, 0, len(b.subs))
	for _, s := range b.subs {
		stats = append(stats, SubscriberStats{
			Name:     s.name,
			Dropped:  int(s.dropped.Load()),
			Inactive: s.inactive.Load(),
		})
	}

	return stats
}
