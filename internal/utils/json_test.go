package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConnectMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    ConnectMessage
		wantErr error
	}{
		{
			name: "valid",
			in:   `{"token":"abc","channel":"lobby"}`,
			want: ConnectMessage{Token: "abc", Channel: "lobby"},
		},
		{
			name: "channel is trimmed",
			in:   `{"token":"abc","channel":"  42 "}`,
			want: ConnectMessage{Token: "abc", Channel: "42"},
		},
		{
			name:    "missing channel",
			in:      `{"token":"abc"}`,
			wantErr: ErrMissingField,
		},
		{
			name:    "blank channel",
			in:      `{"token":"abc","channel":"   "}`,
			wantErr: ErrMissingField,
		},
		{
			name:    "missing token",
			in:      `{"channel":"lobby"}`,
			wantErr: ErrMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConnectMessage([]byte(tt.in))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseConnectMessage([]byte("hello"))
	assert.Error(t, err)
}

func TestParseAppMessage(t *testing.T) {
	msg, err := ParseAppMessage([]byte(`{"type":"StartGame","token":"t","game_id":42}`))
	require.NoError(t, err)
	require.NotNil(t, msg.StartGame)
	assert.Nil(t, msg.Chat)
	assert.Equal(t, StartGame{Token: "t", GameID: 42}, *msg.StartGame)

	msg, err = ParseAppMessage([]byte(`{"type":"Chat","text":"hello"}`))
	require.NoError(t, err)
	require.NotNil(t, msg.Chat)
	assert.Equal(t, "hello", msg.Chat.Text)
}

func TestParseAppMessage_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"unknown tag", `{"type":"EndGame"}`, ErrUnknownType},
		{"missing tag", `{"token":"t"}`, ErrMissingField},
		{"start game without token", `{"type":"StartGame","game_id":1}`, ErrMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAppMessage([]byte(tt.in))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := ParseAppMessage([]byte(`{"type":"StartGame","game_id":"seven","token":"t"}`))
	assert.Error(t, err)
	_, err = ParseAppMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestEnvelopeText(t *testing.T) {
	assert.Equal(t, "ann joined lobby", JoinedEnvelope("ann", "lobby").Text)
	assert.Equal(t, "ann left.", LeftEnvelope("ann", "lobby").Text)
	assert.Equal(t, "ann: hello", ChatEnvelope("ann", "lobby", "hello").Text)
}

func TestSendError(t *testing.T) {
	send := make(chan []byte, 1)

	require.True(t, SendError(send, "invalid_join", "channel is required"))
	assert.False(t, SendError(send, "dropped", "queue is full"))

	var env struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(<-send, &env))
	assert.Equal(t, EventError, env.Type)
	assert.Equal(t, "invalid_join", env.Data["error"])
	assert.Equal(t, "channel is required", env.Data["message"])
}
