package websocket

import (
	"context"
	"errors"
	"log/slog"

	"fretquiz/internal/types"
	"fretquiz/internal/utils"
)

func handleAppMessage(ctx context.Context, handlers Dispatcher, c *types.Client, data []byte) {
	msg, err := utils.ParseAppMessage(data)
	if err != nil {
		slog.Info("invalid action frame", "conn", c.ID, "error", err)
		switch {
		case errors.Is(err, utils.ErrUnknownType):
			utils.SendError(c.Send, "unknown_type", "Unknown message type")
		case errors.Is(err, utils.ErrMissingField):
			utils.SendError(c.Send, "missing_field", err.Error())
		default:
			utils.SendError(c.Send, "invalid_json", "Malformed JSON")
		}
		return
	}
	handlers.Dispatch(ctx, c, msg)
}
