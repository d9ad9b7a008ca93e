// internal/utils/json.go
package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrUnknownType  = errors.New("unknown message type")
)

// ConnectMessage is the first frame a client sends to join a channel.
type ConnectMessage struct {
	Token   string `json:"token"`
	Channel string `json:"channel"`
}

// ParseConnectMessage decodes a join frame; both fields are required.
func ParseConnectMessage(data []byte) (ConnectMessage, error) {
	var msg ConnectMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ConnectMessage{}, err
	}
	msg.Channel = strings.TrimSpace(msg.Channel)
	switch {
	case msg.Token == "":
		return ConnectMessage{}, fmt.Errorf("%w: token", ErrMissingField)
	case msg.Channel == "":
		return ConnectMessage{}, fmt.Errorf("%w: channel", ErrMissingField)
	}
	return msg, nil
}

// Action frame tags.
const (
	TypeStartGame = "StartGame"
	TypeChat      = "Chat"
)

// AppMessage is one decoded action frame. Exactly one variant is set.
type AppMessage struct {
	Type      string
	StartGame *StartGame
	Chat      *Chat
}

type StartGame struct {
	Token  string `json:"token"`
	GameID int64  `json:"game_id"`
}

type Chat struct {
	Text string `json:"text"`
}

// ParseAppMessage decodes an action frame by its "type" tag.
func ParseAppMessage(data []byte) (AppMessage, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return AppMessage{}, err
	}

	msg := AppMessage{Type: head.Type}
	switch head.Type {
	case TypeStartGame:
		var v StartGame
		if err := json.Unmarshal(data, &v); err != nil {
			return AppMessage{}, err
		}
		if v.Token == "" {
			return AppMessage{}, fmt.Errorf("%w: token", ErrMissingField)
		}
		msg.StartGame = &v
	case TypeChat:
		var v Chat
		if err := json.Unmarshal(data, &v); err != nil {
			return AppMessage{}, err
		}
		msg.Chat = &v
	case "":
		return AppMessage{}, fmt.Errorf("%w: type", ErrMissingField)
	default:
		return AppMessage{}, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
	return msg, nil
}

// Envelope types sent from server to client.
const (
	EventJoined      = "joined"
	EventLeft        = "left"
	EventChat        = "chat"
	EventGameStarted = "game_started"
	EventLagged      = "lagged"
	EventError       = "error"
)

// Envelope is every server to client frame. Text carries the human
// readable line so plain clients can print it as is.
type Envelope struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel,omitempty"`
	User    string      `json:"user,omitempty"`
	Text    string      `json:"text,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func JoinedEnvelope(user, channel string) Envelope {
	return Envelope{Type: EventJoined, Channel: channel, User: user, Text: user + " joined " + channel}
}

func LeftEnvelope(user, channel string) Envelope {
	return Envelope{Type: EventLeft, Channel: channel, User: user, Text: user + " left."}
}

func ChatEnvelope(user, channel, text string) Envelope {
	return Envelope{Type: EventChat, Channel: channel, User: user, Text: user + ": " + text}
}

func LaggedEnvelope(channel string, skipped uint64) Envelope {
	return Envelope{
		Type:    EventLagged,
		Channel: channel,
		Text:    fmt.Sprintf("missed %d messages", skipped),
		Data:    map[string]uint64{"skipped": skipped},
	}
}

func ErrorEnvelope(errorType, message string) Envelope {
	return Envelope{
		Type: EventError,
		Text: message,
		Data: map[string]string{
			"error":   errorType,
			"message": message,
		},
	}
}

// Encode renders v as a JSON string ready to publish to a room.
func Encode(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SendJSON queues v on send without blocking; a full queue drops the frame.
func SendJSON(send chan<- []byte, v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal outgoing frame", "error", err)
		return false
	}
	select {
	case send <- data:
		return true
	default:
		slog.Warn("send queue full, frame dropped")
		return false
	}
}

func SendError(send chan<- []byte, errorType, message string) bool {
	return SendJSON(send, ErrorEnvelope(errorType, message))
}
