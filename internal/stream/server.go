package stream

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"papertrade/internal/auth"
	"papertrade/internal/telemetry"
)

type Server struct {
	Hub      *Hub
	Verifier auth.Verifier
}

type clientMessage struct {
	Type   string `json:"type"`
	Token  string `json:"token,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

type serverMessage struct {
	Type   string      `json:"type"`
	Error  string      `json:"error,omitempty"`
	Prices []PriceTick `json:"prices,omitempty"`
}

func NewServer(hub *Hub, verifier auth.Verifier) *Server {
	return &Server{Hub: hub, Verifier: verifier}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "server error")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		claims, ok := s.authenticate(ctx, conn)
		if !ok {
			telemetry.StreamAuthFailure()
			conn.Close(websocket.StatusPolicyViolation, "authentication failed")
			return
		}

		sessionID := uuid.NewString()
		ticks, err := s.Hub.Add(sessionID, claims.Subject)
		if err != nil {
			conn.Close(websocket.StatusInternalError, "session init failed")
			return
		}
		defer s.Hub.Remove(sessionID)

		telemetry.StreamConnectionOpened()
		defer telemetry.StreamConnectionClosed()

		_ = wsjson.Write(ctx, conn, serverMessage{Type: "ready"})

		go s.writeLoop(ctx, conn, ticks)
		s.readLoop(ctx, conn, sessionID)

		conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

// authenticate expects the first client frame to carry a bearer token.
func (s *Server) authenticate(ctx context.Context, conn *websocket.Conn) (auth.Claims, bool) {
	authCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var msg clientMessage
	if err := wsjson.Read(authCtx, conn, &msg); err != nil {
		return auth.Claims{}, false
	}
	if msg.Type != "auth" || strings.TrimSpace(msg.Token) == "" {
		return auth.Claims{}, false
	}

	claims, err := s.Verifier.Verify(authCtx, msg.Token)
	if err != nil {
		return auth.Claims{}, false
	}
	return claims, true
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sessionID string) {
	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return
		}

		symbol := strings.ToUpper(strings.TrimSpace(msg.Symbol))
		switch msg.Type {
		case "subscribe_all":
			s.Hub.SubscribeAll(sessionID)
		case "subscribe":
			if symbol != "" {
				s.Hub.SubscribeSymbol(sessionID, symbol)
			}
		case "unsubscribe":
			if symbol != "" {
				s.Hub.UnsubscribeSymbol(sessionID, symbol)
			}
		default:
			_ = wsjson.Write(ctx, conn, serverMessage{Type: "error", Error: "unknown message type"})
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, ticks <-chan []PriceTick) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-ticks:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, serverMessage{Type: "prices", Prices: batch}); err != nil {
				return
			}
		}
	}
}
