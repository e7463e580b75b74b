package ws

import (
	"log"
	"time"

	"github.com/gobwas/ws"
)

// HeartbeatConfig controls liveness checks.
type HeartbeatConfig struct {
	Interval time.Duration // time between ping rounds
	Timeout  time.Duration // grace period on top of Interval
}

// DefaultHeartbeatConfig pings every 30s and evicts after 40s of silence.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// StartHeartbeat pings every connection each Interval and evicts those that
// have been silent for longer than Interval + Timeout. It returns at once; the
// loop stops with the server.
func StartHeartbeat(server *Server, config HeartbeatConfig) {
	go func() {
		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-server.done:
				return
			case now := <-ticker.C:
				for _, c := range staleConnections(server.Connections().All(), config, now) {
					log.Printf("ws: heartbeat timeout conn=%s last_activity=%s ago",
						c.ID, now.Sub(c.LastActive()).Round(time.Second))
					server.RemoveConnection(c)
				}
				pingAll(server, config, now)
			}
		}
	}()
}

// staleConnections returns the connections silent for longer than the
// heartbeat deadline at now.
func staleConnections(conns []*Connection, config HeartbeatConfig, now time.Time) []*Connection {
	deadline := config.Interval + config.Timeout
	var stale []*Connection
	for _, c := range conns {
		if now.Sub(c.LastActive()) > deadline {
			stale = append(stale, c)
		}
	}
	return stale
}

func pingAll(server *Server, config HeartbeatConfig, now time.Time) {
	deadline := config.Interval + config.Timeout
	for _, c := range server.Connections().All() {
		if now.Sub(c.LastActive()) > deadline {
			continue
		}
		// Browsers answer protocol-level pings on their own.
		if err := c.WritePing(); err != nil {
			log.Printf("ws: heartbeat ping failed conn=%s: %v", c.ID, err)
			server.RemoveConnection(c)
		}
	}
}

// WritePing sends a protocol-level ping frame, bounded by WriteTimeout.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	defer c.setWriteDeadline()()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}
