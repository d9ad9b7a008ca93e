package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	bridgePrefix         = "fretquiz:room:"
	bridgePublishTimeout = 500 * time.Millisecond
	bridgeQueueSize      = 256
)

type outbound struct {
	channel string
	data    []byte
}

type bridgeEnvelope struct {
	Origin  string `json:"origin"`
	Payload string `json:"payload"`
}

// Bridge mirrors room traffic between server instances over Redis pub/sub.
// Each instance tags what it publishes with its own origin id and ignores
// its own messages on the way back. Outgoing messages go through one queue
// so Redis latency never reaches publishers and order is kept.
type Bridge struct {
	client *redis.Client
	origin string
	queue  chan outbound

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBridge connects to Redis at addr and verifies the connection.
func NewBridge(ctx context.Context, addr string) (*Bridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     50,
		MinIdleConns: 4,
		ReadTimeout:  bridgePublishTimeout,
		WriteTimeout: bridgePublishTimeout,
		DialTimeout:  bridgePublishTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	b := newBridge(client)
	b.start()
	return b, nil
}

func newBridge(client *redis.Client) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		client: client,
		origin: uuid.NewString(),
		queue:  make(chan outbound, bridgeQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Forward queues msg for other instances. A full queue drops the message;
// local delivery has already happened.
func (b *Bridge) Forward(channel, msg string) {
	data, err := json.Marshal(bridgeEnvelope{Origin: b.origin, Payload: msg})
	if err != nil {
		slog.Error("bridge marshal failed", "channel", channel, "error", err)
		return
	}
	select {
	case b.queue <- outbound{channel: channel, data: data}:
	default:
		slog.Warn("bridge queue full, message dropped", "channel", channel)
	}
}

func (b *Bridge) start() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case out := <-b.queue:
				b.publish(out)
			case <-b.ctx.Done():
				return
			}
		}
	}()
}

func (b *Bridge) publish(out outbound) {
	ctx, cancel := context.WithTimeout(b.ctx, bridgePublishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, bridgePrefix+out.channel, out.data).Err(); err != nil {
		slog.Warn("bridge publish failed", "channel", out.channel, "error", err)
	}
}

// Attach subscribes to the room's Redis channel until Close.
func (b *Bridge) Attach(r *Room) {
	pubsub := b.client.Subscribe(b.ctx, bridgePrefix+r.Name())

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.receive(r, msg.Payload)
			case <-b.ctx.Done():
				return
			}
		}
	}()
}

func (b *Bridge) receive(r *Room, payload string) {
	var env bridgeEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		slog.Warn("bridge message dropped", "channel", r.Name(), "error", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	r.deliver(env.Payload)
}

// Close stops every room subscription and closes the Redis client.
func (b *Bridge) Close() error {
	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}
