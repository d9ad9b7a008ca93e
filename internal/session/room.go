package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is how many messages a room retains for slow subscribers.
const DefaultCapacity = 64

var (
	// ErrEmpty is returned by TryRecv when nothing new has been published.
	ErrEmpty = errors.New("session: no message pending")
	// ErrClosed is returned after the subscription has been closed.
	ErrClosed = errors.New("session: subscription closed")
)

// LagError reports messages a subscriber missed because it fell more than
// the room capacity behind. The subscription resumes at the oldest retained
// message.
type LagError struct {
	Skipped uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("session: subscriber lagged, %d messages skipped", e.Skipped)
}

// Forwarder mirrors published messages somewhere outside the process.
// Forward is called with the room lock held, in publish order, and must
// not block.
type Forwarder interface {
	Forward(channel, msg string)
}

// Room is a broadcast endpoint for one channel. Publishing never waits for
// subscribers; each subscriber reads at its own pace from a ring of the
// most recent messages.
type Room struct {
	name string

	mu      sync.Mutex
	buf     []string
	next    uint64 // sequence of the next publish
	subs    int
	notify  chan struct{}
	forward Forwarder
}

func newRoom(name string, capacity int) *Room {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Room{
		name:   name,
		buf:    make([]string, capacity),
		notify: make(chan struct{}),
	}
}

func (r *Room) Name() string { return r.name }

// Publish appends msg to the room stream and returns the number of live
// subscribers it was published to. With no subscribers the message is dropped.
func (r *Room) Publish(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.appendLocked(msg)
	if r.forward != nil {
		r.forward.Forward(r.name, msg)
	}
	return n
}

// deliver publishes locally only; used for messages that arrive over a bridge.
func (r *Room) deliver(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendLocked(msg)
}

func (r *Room) appendLocked(msg string) int {
	if r.subs == 0 {
		return 0
	}
	r.buf[r.next%uint64(len(r.buf))] = msg
	r.next++
	close(r.notify)
	r.notify = make(chan struct{})
	return r.subs
}

// Subscribe returns a subscription that sees every message published from now on.
func (r *Room) Subscribe() *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs++
	return &Subscription{room: r, pos: r.next}
}

// Subscribers is the number of open subscriptions.
func (r *Room) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs
}

// Subscription is a read cursor into a room. It is not safe for concurrent
// use by multiple goroutines.
type Subscription struct {
	room   *Room
	pos    uint64
	closed bool
}

// Ready returns a channel that is closed once a message may be available.
// Callers should drain with TryRecv after it fires and fetch Ready again.
func (s *Subscription) Ready() <-chan struct{} {
	r := s.room
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.closed || s.pos != r.next {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return r.notify
}

// TryRecv returns the next message without waiting. It returns ErrEmpty
// when caught up and a *LagError once after messages were overwritten.
func (s *Subscription) TryRecv() (string, error) {
	r := s.room
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}
	if s.pos == r.next {
		return "", ErrEmpty
	}

	capacity := uint64(len(r.buf))
	if r.next-s.pos > capacity {
		oldest := r.next - capacity
		skipped := oldest - s.pos
		s.pos = oldest
		return "", &LagError{Skipped: skipped}
	}

	msg := r.buf[s.pos%capacity]
	s.pos++
	return msg, nil
}

// Recv blocks until a message is available or ctx is done.
func (s *Subscription) Recv(ctx context.Context) (string, error) {
	for {
		msg, err := s.TryRecv()
		if !errors.Is(err, ErrEmpty) {
			return msg, err
		}
		select {
		case <-s.Ready():
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	r := s.room
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	r.subs--
}
