// internal/types/client.go
package types

// Publisher is the room side of a connection.
type Publisher interface {
	Publish(msg string) int
}

// Client is a connection that has joined a channel.
type Client struct {
	ID      string
	User    User
	Channel string
	Room    Publisher
	Send    chan []byte
}
