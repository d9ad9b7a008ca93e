package session

import (
	"log/slog"
	"sync"
)

// Attacher is notified once per newly created room, outside the registry lock.
type Attacher interface {
	Forwarder
	Attach(r *Room)
}

// Registry maps channel names to rooms. Rooms are created on first use and
// live as long as the registry; nothing prunes them.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	capacity int
	bridge   Attacher
}

type Option func(*Registry)

// WithCapacity sets the per-room replay capacity.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithBridge mirrors every room through b.
func WithBridge(b Attacher) Option {
	return func(r *Registry) { r.bridge = b }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:    make(map[string]*Room),
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate returns the room for channel, creating it if needed.
func (reg *Registry) GetOrCreate(channel string) *Room {
	reg.mu.Lock()
	room, ok := reg.rooms[channel]
	if !ok {
		room = newRoom(channel, reg.capacity)
		if reg.bridge != nil {
			room.forward = reg.bridge
		}
		reg.rooms[channel] = room
	}
	reg.mu.Unlock()

	if !ok {
		slog.Debug("room created", "channel", channel)
		if reg.bridge != nil {
			reg.bridge.Attach(room)
		}
	}
	return room
}

// Lookup returns the room for channel without creating it.
func (reg *Registry) Lookup(channel string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[channel]
	return room, ok
}

// Stats reports the number of rooms and open subscriptions.
func (reg *Registry) Stats() (rooms, subscribers int) {
	reg.mu.Lock()
	all := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		all = append(all, room)
	}
	reg.mu.Unlock()

	for _, room := range all {
		subscribers += room.Subscribers()
	}
	return len(all), subscribers
}
