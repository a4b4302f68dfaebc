package companion

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var ErrPeerUnreachable = errors.New("companion peer not reachable")

// TransportHandler receives what the transport hears from the peer.
type TransportHandler interface {
	HandleInbound(raw []byte)
	HandleReachabilityChanged(reachable bool)
}

// WSTransport carries the companion link over a websocket. There is a
// single peer: a new connection replaces the previous one. On connect
// the durable context is replayed first, so a companion that was away
// catches up before any live traffic arrives.
type WSTransport struct {
	upgrader websocket.Upgrader

	mu            sync.Mutex
	conn          *websocket.Conn
	latestContext []byte
	handler       TransportHandler
}

func NewWSTransport() *WSTransport {
	return &WSTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the auth middleware already vets the request
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

func (t *WSTransport) SetHandler(handler TransportHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

func (t *WSTransport) IsReachable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

func (t *WSTransport) SendTransient(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return ErrPeerUnreachable
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write to companion peer: %w", err)
	}
	return nil
}

// UpdateContext stores the payload for replay on the next connect and,
// when a peer is connected, also delivers it live, best effort.
func (t *WSTransport) UpdateContext(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latestContext = append([]byte(nil), payload...)
	if t.conn == nil {
		return nil
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write context to companion peer: %w", err)
	}
	return nil
}

// HandleConnect upgrades the request and adopts the connection as the
// current peer.
func (t *WSTransport) HandleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("companion ws: upgrade: %s", err)
		return
	}
	log.Debugf("companion ws: peer connected from %s", r.RemoteAddr)

	t.mu.Lock()
	if t.conn != nil {
		// single peer, the newcomer wins
		_ = t.conn.Close()
	}
	t.conn = conn
	handler := t.handler
	// replay before releasing the lock: once t.conn is published,
	// SendTransient and UpdateContext may write to it concurrently
	if t.latestContext != nil {
		if err := conn.WriteMessage(websocket.TextMessage, t.latestContext); err != nil {
			log.Errorf("companion ws: replay context: %s", err)
		}
	}
	t.mu.Unlock()

	if handler != nil {
		handler.HandleReachabilityChanged(true)
	}

	go t.readLoop(conn)
}

func (t *WSTransport) readLoop(conn *websocket.Conn) {
	defer t.dropPeer(conn)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("companion ws: read: %s", err)
			}
			return
		}

		t.mu.Lock()
		handler := t.handler
		t.mu.Unlock()
		if handler != nil {
			handler.HandleInbound(raw)
		}
	}
}

func (t *WSTransport) dropPeer(conn *websocket.Conn) {
	_ = conn.Close()

	t.mu.Lock()
	current := t.conn == conn
	if current {
		t.conn = nil
	}
	handler := t.handler
	t.mu.Unlock()

	// a replaced connection going away does not change reachability
	if current {
		log.Debugf("companion ws: peer disconnected")
		if handler != nil {
			handler.HandleReachabilityChanged(false)
		}
	}
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
