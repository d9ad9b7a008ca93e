package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"fretquiz/internal/auth"
	"fretquiz/internal/session"
	"fretquiz/internal/types"
	"fretquiz/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32

	defaultNegotiateTimeout = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Identity interface {
	Decode(ctx context.Context, token string) (*auth.Claims, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, c *types.Client, msg utils.AppMessage)
}

// Server upgrades authenticated requests and runs one connection per request.
type Server struct {
	rooms            *session.Registry
	identity         Identity
	handlers         Dispatcher
	negotiateTimeout time.Duration

	live sync.WaitGroup
}

func NewServer(rooms *session.Registry, identity Identity, handlers Dispatcher, negotiateTimeout time.Duration) *Server {
	if negotiateTimeout <= 0 {
		negotiateTimeout = defaultNegotiateTimeout
	}
	return &Server{
		rooms:            rooms,
		identity:         identity,
		handlers:         handlers,
		negotiateTimeout: negotiateTimeout,
	}
}

func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	// Counted before the hijack so http.Server.Shutdown, which waits for
	// active requests, orders every Add before Wait.
	s.live.Add(1)
	defer s.live.Done()

	token := auth.TokenFromRequest(r)
	if token == "" {
		utils.WriteError(w, http.StatusUnauthorized, "unauthorized", "Missing identity token")
		return
	}
	claims, err := s.identity.Decode(r.Context(), token)
	if err != nil {
		slog.Info("rejected websocket upgrade", "remote", r.RemoteAddr, "error", err)
		utils.WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid identity token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade", "remote", r.RemoteAddr, "error", err)
		return
	}

	s.serveConn(r.Context(), conn, claims.User())
}

// Wait blocks until every connection handler has returned or ctx is done.
// Connections end when the request context they were served under is
// cancelled.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.live.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn, user types.User) {
	id := uuid.NewString()
	log := slog.With("conn", id, "user_id", user.ID)
	log.Info("client connected", "remote", conn.RemoteAddr().String())

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	join, ok := s.negotiate(ctx, conn, user, log)
	if !ok {
		conn.Close()
		log.Info("client disconnected before joining")
		return
	}

	room := s.rooms.GetOrCreate(join.Channel)
	sub := room.Subscribe()
	client := &types.Client{
		ID:      id,
		User:    user,
		Channel: join.Channel,
		Room:    room,
		Send:    make(chan []byte, sendBuffer),
	}
	publish(client, utils.JoinedEnvelope(user.Name, join.Channel))
	log.Info("client joined", "channel", join.Channel)

	err := s.relay(ctx, conn, client, sub)

	sub.Close()
	publish(client, utils.LeftEnvelope(user.Name, join.Channel))
	conn.Close()
	log.Info("client disconnected", "channel", join.Channel, "reason", err)
}

// negotiate waits for a valid join frame. Malformed frames get an error and
// another chance; a token for a different user ends the connection.
func (s *Server) negotiate(ctx context.Context, conn *websocket.Conn, user types.User, log *slog.Logger) (utils.ConnectMessage, bool) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.negotiateTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.Info("join negotiation timed out")
				closeWith(conn, websocket.ClosePolicyViolation, "negotiation timeout")
			} else {
				log.Debug("read during negotiation", "error", err)
			}
			return utils.ConnectMessage{}, false
		}

		join, err := utils.ParseConnectMessage(data)
		if err != nil {
			log.Debug("invalid join frame", "error", err)
			if writeFrame(conn, utils.ErrorEnvelope("invalid_join", "Expected {\"token\", \"channel\"}")) != nil {
				return utils.ConnectMessage{}, false
			}
			continue
		}

		claims, err := s.identity.Decode(ctx, join.Token)
		if err != nil || claims.ID != user.ID {
			log.Warn("join token does not match connection", "error", err)
			_ = writeFrame(conn, utils.ErrorEnvelope("unauthorized", "Token does not belong to this connection"))
			closeWith(conn, websocket.ClosePolicyViolation, "unauthorized")
			return utils.ConnectMessage{}, false
		}

		_ = conn.SetReadDeadline(time.Time{})
		return join, true
	}
}

// relay runs the outbound and inbound pumps until either side stops.
func (s *Server) relay(ctx context.Context, conn *websocket.Conn, c *types.Client, sub *session.Subscription) error {
	g, gctx := errgroup.WithContext(ctx)
	// Unblocks ReadMessage once the other pump has quit.
	stop := context.AfterFunc(gctx, func() { conn.Close() })
	defer stop()

	g.Go(func() error { return writePump(gctx, conn, c, sub) })
	g.Go(func() error { return s.readPump(gctx, conn, c) })
	return g.Wait()
}

func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, c *types.Client) error {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		handleAppMessage(ctx, s.handlers, c, data)
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, c *types.Client, sub *session.Subscription) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			closeWith(conn, websocket.CloseGoingAway, "")
			return ctx.Err()

		case data := <-c.Send:
			if err := write(conn, websocket.TextMessage, data); err != nil {
				return err
			}

		case <-sub.Ready():
			if err := drain(conn, c, sub); err != nil {
				return err
			}

		case <-ticker.C:
			if err := write(conn, websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// drain writes everything the subscription has pending.
func drain(conn *websocket.Conn, c *types.Client, sub *session.Subscription) error {
	for {
		msg, err := sub.TryRecv()
		var lag *session.LagError
		switch {
		case errors.Is(err, session.ErrEmpty):
			return nil
		case errors.As(err, &lag):
			slog.Warn("client lagged", "conn", c.ID, "channel", c.Channel, "skipped", lag.Skipped)
			if err := writeFrame(conn, utils.LaggedEnvelope(c.Channel, lag.Skipped)); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := write(conn, websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}
		}
	}
}

func write(conn *websocket.Conn, messageType int, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, data)
}

func writeFrame(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}

func publish(c *types.Client, env utils.Envelope) {
	out, err := utils.Encode(env)
	if err != nil {
		slog.Error("encode envelope", "type", env.Type, "error", err)
		return
	}
	c.Room.Publish(out)
}
