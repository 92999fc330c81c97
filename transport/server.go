// Package transport exposes the relay over websockets: an accept loop
// that yields connection handles, per-connection read/write pumps feeding
// the router, and the owner-token endpoint.
package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"relay-lab/auth"
	"relay-lab/contract"
)

type Server struct {
	log            *slog.Logger
	router         contract.IRouter
	table          *ConnTable
	issuer         auth.TokenIssuer
	connBufferSize int
	maxMessageSize int64
	upgrader       websocket.Upgrader
}

func NewServer(log *slog.Logger, router contract.IRouter, table *ConnTable,
	issuer auth.TokenIssuer, connBufferSize int, maxMessageSize int64) *Server {
	return &Server{
		log:            log,
		router:         router,
		table:          table,
		issuer:         issuer,
		connBufferSize: connBufferSize,
		maxMessageSize: maxMessageSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP surface: the websocket endpoint, owner-token
// issuance, and a health probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/token", s.handleToken)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Websocket upgrade failed", "err", err)
		return
	}

	conn := NewConn(s.log, ws, s.connBufferSize)
	s.table.Add(conn)
	s.log.Info("Connection accepted", "conn_id", conn.ID(), "remote", r.RemoteAddr)

	go conn.writePump()
	s.readPump(r.Context(), conn, ws)
}

// readPump feeds inbound frames to the router until the peer goes away,
// then runs the shared cleanup path exactly as a liveness eviction would.
func (s *Server) readPump(ctx context.Context, conn *Conn, ws *websocket.Conn) {
	defer func() {
		s.table.Remove(conn.ID())
		_ = conn.Close()
		s.router.Disconnect(context.WithoutCancel(ctx), conn)
		s.log.Info("Connection closed", "conn_id", conn.ID())
	}()

	ws.SetReadLimit(s.maxMessageSize)
	ws.SetPongHandler(func(string) error {
		conn.MarkAlive(true)
		return nil
	})

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("Read failed", "conn_id", conn.ID(), "err", err)
			}
			return
		}
		// Any inbound traffic proves the peer is alive.
		conn.MarkAlive(true)
		s.router.Dispatch(ctx, conn, frame)
	}
}

func (s *Server) handleToken(w http.ResponseWriter, _ *http.Request) {
	token, err := s.issuer.Mint()
	if err != nil {
		http.Error(w, "token minting failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"ownerToken": token})
}
