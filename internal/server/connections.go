package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	// pingInterval keeps intermediary proxies from timing out the stream and
	// lets the reaper detect dead connections.
	pingInterval = 30 * time.Second

	// outboundBuffer is the per-connection send queue. A recipient that
	// cannot drain this many events is treated as gone.
	outboundBuffer = 32

	writeTimeout = 10 * time.Second
)

// socket is the write side of a live stream. *websocket.Conn satisfies it;
// tests substitute a fake wire.
type socket interface {
	Write(ctx context.Context, typ websocket.MessageType, data []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Connection is one user's live push channel, optionally bound to a game.
// Events are queued on outbound and written by a single pump goroutine, so
// move processing never blocks on a slow client.
type Connection struct {
	UserID string
	GameID string

	sock      socket
	outbound  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *Connection) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		if err := c.sock.Close(code, reason); err != nil {
			log.Printf("Close error for %s: %v", c.UserID, err)
		}
	})
}

// ConnectionManager keeps at most one live connection per user id and fans
// events out as per-recipient payloads.
type ConnectionManager struct {
	mu     sync.RWMutex
	byUser map[string]*Connection
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byUser: make(map[string]*Connection),
	}
}

// Register binds a user's stream and starts its write pump. A newer
// connection for the same user supersedes the old one, which is told why and
// closed.
func (cm *ConnectionManager) Register(userID, gameID string, sock socket) *Connection {
	conn := &Connection{
		UserID:   userID,
		GameID:   gameID,
		sock:     sock,
		outbound: make(chan []byte, outboundBuffer),
		done:     make(chan struct{}),
	}

	cm.mu.Lock()
	old := cm.byUser[userID]
	cm.byUser[userID] = conn
	cm.mu.Unlock()

	if old != nil {
		old.close(websocket.StatusNormalClosure, "Connected from another device")
	}

	go cm.writePump(conn)
	return conn
}

// Unregister removes a connection if it is still the user's current one.
func (cm *ConnectionManager) Unregister(userID string, conn *Connection) {
	cm.mu.Lock()
	if current, exists := cm.byUser[userID]; exists && current == conn {
		delete(cm.byUser, userID)
	}
	cm.mu.Unlock()

	conn.close(websocket.StatusNormalClosure, "Stream closed")
}

// Disconnect tears down a user's connection, if any. Used by the reaper.
func (cm *ConnectionManager) Disconnect(userID string, reason string) {
	cm.mu.Lock()
	conn, exists := cm.byUser[userID]
	if exists {
		delete(cm.byUser, userID)
	}
	cm.mu.Unlock()

	if exists {
		conn.close(websocket.StatusGoingAway, reason)
	}
}

// Send queues an event for one user, framed as a ServerMessage whose type is
// the event kind. It returns false when the user has no connection or the
// connection cannot accept the event; in the latter case the connection has
// already been cleaned up. Callers treat false as best-effort delivery,
// never as a fatal error.
func (cm *ConnectionManager) Send(userID string, event GameEvent) bool {
	return cm.SendMessage(userID, ServerMessage{
		Type:    string(event.Type),
		Payload: event,
	})
}

// SendMessage queues a raw protocol message for one user.
func (cm *ConnectionManager) SendMessage(userID string, msg ServerMessage) bool {
	cm.mu.RLock()
	conn, exists := cm.byUser[userID]
	cm.mu.RUnlock()

	if !exists {
		return false
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal %s message for %s: %v", msg.Type, userID, err)
		return false
	}

	select {
	case conn.outbound <- data:
		return true
	case <-conn.done:
		return false
	default:
		// Queue full: the remote end stopped draining
		log.Printf("Dropping connection for %s: outbound queue full", userID)
		cm.Unregister(userID, conn)
		return false
	}
}

// BindGame points a user's connection at a game so spectator broadcasts can
// find it.
func (cm *ConnectionManager) BindGame(userID, gameID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if conn, exists := cm.byUser[userID]; exists {
		conn.GameID = gameID
	}
}

// UsersForGame lists every connected user bound to a game, participants and
// spectators alike.
func (cm *ConnectionManager) UsersForGame(gameID string) []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	users := make([]string, 0)
	for userID, conn := range cm.byUser {
		if conn.GameID == gameID {
			users = append(users, userID)
		}
	}
	return users
}

// Broadcast fans one logical event out to every recipient as a payload built
// specifically for them, so a shared payload can never leak a private zone.
func (cm *ConnectionManager) Broadcast(recipients []string, build func(userID string) (GameEvent, bool)) {
	for _, userID := range recipients {
		if userID == AIUserID {
			continue
		}
		event, ok := build(userID)
		if !ok {
			continue
		}
		cm.Send(userID, event)
	}
}

// Connected reports whether a user currently has a live stream.
func (cm *ConnectionManager) Connected(userID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, exists := cm.byUser[userID]
	return exists
}

func (cm *ConnectionManager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	write := func(data []byte) bool {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := conn.sock.Write(ctx, websocket.MessageText, data); err != nil {
			log.Printf("Write failed for %s: %v", conn.UserID, err)
			cm.Unregister(conn.UserID, conn)
			return false
		}
		return true
	}

	ping, _ := json.Marshal(ServerMessage{Type: string(EventPing), Payload: pingEvent()})

	for {
		select {
		case data := <-conn.outbound:
			if !write(data) {
				return
			}
		case <-ticker.C:
			if !write(ping) {
				return
			}
		case <-conn.done:
			return
		}
	}
}
