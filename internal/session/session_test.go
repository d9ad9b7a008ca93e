package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetOrCreateIsShared(t *testing.T) {
	reg := NewRegistry()

	const workers = 64
	rooms := make([]*Room, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			rooms[i] = reg.GetOrCreate("lobby")
		}(i)
	}
	wg.Wait()

	for _, r := range rooms {
		assert.Same(t, rooms[0], r)
	}
	n, _ := reg.Stats()
	assert.Equal(t, 1, n)
}

func TestRegistry_Isolation(t *testing.T) {
	a, b := NewRegistry(), NewRegistry()

	assert.NotSame(t, a.GetOrCreate("lobby"), b.GetOrCreate("lobby"))
	assert.NotSame(t, a.GetOrCreate("lobby"), a.GetOrCreate("42"))
}

func TestRegistry_Lookup(t *testing.T) {
	reg := NewRegistry()

	_, ok := reg.Lookup("nope")
	assert.False(t, ok)

	created := reg.GetOrCreate("yes")
	found, ok := reg.Lookup("yes")
	require.True(t, ok)
	assert.Same(t, created, found)
}

func TestRegistry_Stats(t *testing.T) {
	reg := NewRegistry()
	s1 := reg.GetOrCreate("r1").Subscribe()
	reg.GetOrCreate("r1").Subscribe()
	reg.GetOrCreate("r2").Subscribe()

	rooms, subs := reg.Stats()
	assert.Equal(t, 2, rooms)
	assert.Equal(t, 3, subs)

	s1.Close()
	rooms, subs = reg.Stats()
	assert.Equal(t, 2, rooms, "rooms are never pruned")
	assert.Equal(t, 2, subs)
}

func TestRegistry_WithCapacity(t *testing.T) {
	reg := NewRegistry(WithCapacity(2))
	r := reg.GetOrCreate("tiny")
	s := r.Subscribe()

	r.Publish("a")
	r.Publish("b")
	r.Publish("c")

	_, err := s.TryRecv()
	var lag *LagError
	require.ErrorAs(t, err, &lag)
	assert.Equal(t, uint64(1), lag.Skipped)
}

type fakeAttacher struct {
	recordingForwarder
	mu       sync.Mutex
	attached []string
}

func (f *fakeAttacher) Attach(r *Room) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = append(f.attached, r.Name())
}

func TestRegistry_BridgeAttachedOncePerRoom(t *testing.T) {
	br := &fakeAttacher{}
	reg := NewRegistry(WithBridge(br))

	reg.GetOrCreate("lobby")
	reg.GetOrCreate("lobby")
	reg.GetOrCreate("42")

	assert.Equal(t, []string{"lobby", "42"}, br.attached)

	r := reg.GetOrCreate("lobby")
	r.Subscribe()
	r.Publish("hi")
	assert.Equal(t, []string{"lobby|hi"}, br.got)
}
