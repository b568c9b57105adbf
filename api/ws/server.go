// Package ws serves the market-data stream to websocket subscribers. The
// feed is subscribe-only; order entry stays on the in-process producer.
package ws

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"mercury/domain/market"
	"mercury/marketdata"
)

// Envelope is the JSON frame sent to clients.
type Envelope struct {
	Type string `json:"type"` // "trade", "tob", "depth"
	Data any    `json:"data"`
}

type depthFrame struct {
	Symbol market.SymbolId    `json:"symbol"`
	Bids   []market.BookLevel `json:"bids"`
	Asks   []market.BookLevel `json:"asks"`
}

type Server struct {
	hub        *Hub[Envelope]
	depth      *marketdata.DepthCache
	primeDepth int
	upgrader   websocket.Upgrader
}

// NewServer builds the fan-out server. New subscribers are primed with the
// cached depth view of every known symbol before live events flow.
func NewServer(depth *marketdata.DepthCache, primeDepth int) *Server {
	return &Server{
		hub:        NewHub[Envelope](),
		depth:      depth,
		primeDepth: primeDepth,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// BroadcastTrade forwards a trade to all subscribers. Never blocks.
func (s *Server) BroadcastTrade(t market.Trade) {
	s.hub.Broadcast(Envelope{Type: "trade", Data: t})
}

// BroadcastTopOfBook forwards a quote update to all subscribers. Never blocks.
func (s *Server) BroadcastTopOfBook(tob market.TopOfBook) {
	s.hub.Broadcast(Envelope{Type: "tob", Data: tob})
}

// BroadcastDepth forwards a depth snapshot to all subscribers. Never blocks.
func (s *Server) BroadcastDepth(symbol market.SymbolId, bids, asks []market.BookLevel) {
	s.hub.Broadcast(Envelope{Type: "depth", Data: depthFrame{Symbol: symbol, Bids: bids, Asks: asks}})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	session := uuid.NewString()
	log.Info().Str("session", session).Str("remote", r.RemoteAddr).Msg("subscriber connected")

	sub := s.hub.Subscribe(1024)
	defer func() {
		s.hub.Unsubscribe(sub)
		conn.Close()
		log.Info().Str("session", session).Msg("subscriber disconnected")
	}()

	// The feed is one-way; the read loop only notices the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.prime(conn); err != nil {
		return
	}

	for {
		select {
		case env, ok := <-sub.C():
			if !ok {
				return
			}
			if err := writeJSON(conn, env); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (s *Server) prime(conn *websocket.Conn) error {
	for _, symbol := range s.depth.Symbols() {
		bids, asks := s.depth.Top(symbol, s.primeDepth)
		env := Envelope{Type: "depth", Data: depthFrame{Symbol: symbol, Bids: bids, Asks: asks}}
		if err := writeJSON(conn, env); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(conn *websocket.Conn, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
