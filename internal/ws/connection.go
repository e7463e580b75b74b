package ws

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection is one upgraded client socket.
type Connection struct {
	ID           string        // connection id, also the session id
	Conn         net.Conn      // upgraded TCP connection
	Fd           int           // socket descriptor registered with epoll
	CreatedAt    time.Time
	WriteTimeout time.Duration // per-frame write deadline, 0 for none
	lastActive   atomic.Int64  // unix nanos of the last frame received
	writeMu      sync.Mutex    // one writer at a time
	processing   int32         // 1 while a worker is reading a frame
}

// Touch records activity at t.
func (c *Connection) Touch(t time.Time) {
	c.lastActive.Store(t.UnixNano())
}

// LastActive returns when a frame was last received.
func (c *Connection) LastActive() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

// WriteMessage sends a text frame. Frames from concurrent writers never
// interleave, and a peer that stops reading fails the write after
// WriteTimeout.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	defer c.setWriteDeadline()()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// setWriteDeadline arms the write deadline and returns its reset. Callers
// hold writeMu.
func (c *Connection) setWriteDeadline() func() {
	if c.WriteTimeout <= 0 {
		return func() {}
	}
	_ = c.Conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	return func() { _ = c.Conn.SetWriteDeadline(time.Time{}) }
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ConnectionManager indexes live connections by id and by descriptor.
type ConnectionManager struct {
	mu   sync.RWMutex
	byID map[string]*Connection
	byFd map[int]*Connection
}

// NewConnectionManager creates an empty ConnectionManager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byID: make(map[string]*Connection),
		byFd: make(map[int]*Connection),
	}
}

// Add registers conn under both indexes.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.byID[conn.ID] = conn
	cm.byFd[conn.Fd] = conn
	cm.mu.Unlock()
}

// Remove unregisters and closes the connection with the given id. It reports
// false if the connection was already gone.
func (cm *ConnectionManager) Remove(id string) bool {
	cm.mu.Lock()
	conn, ok := cm.byID[id]
	if ok {
		delete(cm.byID, id)
		delete(cm.byFd, conn.Fd)
	}
	cm.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok
}

// Get returns the connection with the given id, or nil.
func (cm *ConnectionManager) Get(id string) *Connection {
	cm.mu.RLock()
	conn := cm.byID[id]
	cm.mu.RUnlock()
	return conn
}

// GetByFd returns the connection registered for fd, or nil.
func (cm *ConnectionManager) GetByFd(fd int) *Connection {
	cm.mu.RLock()
	conn := cm.byFd[fd]
	cm.mu.RUnlock()
	return conn
}

// GetByConn looks a connection up by its socket descriptor.
func (cm *ConnectionManager) GetByConn(c net.Conn) *Connection {
	return cm.GetByFd(socketFD(c))
}

// Count returns the number of live connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	n := len(cm.byID)
	cm.mu.RUnlock()
	return n
}

// All returns a snapshot of the live connections.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.byID))
	for _, conn := range cm.byID {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()
	return conns
}
