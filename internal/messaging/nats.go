// Package messaging provides a NATS client wrapper for pub/sub messaging
// across SkillSwap server instances. Each user has a personal subject that
// carries match and chat change notifications to whichever gateway holds
// that user's connection.
package messaging

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectUser is the prefix of per-user notification subjects: user.<uid>.
const SubjectUser = "user"

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "skillswap",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// UserSubject returns the notification subject for uid. Uids that contain
// characters NATS reserves for subject syntax are hex encoded.
func UserSubject(uid string) string {
	if uid == "" || strings.ContainsAny(uid, ".*> \t\r\n") {
		return SubjectUser + ".x" + hex.EncodeToString([]byte(uid))
	}
	return SubjectUser + "." + uid
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	return c.subscribeKeyed(subject, subject, handler)
}

// SubscribeUser subscribes a single connection to uid's notification subject.
// The subscription is keyed by connID so two connections of the same user
// on one server do not overwrite each other.
func (c *NATSClient) SubscribeUser(uid, connID string, handler func(data []byte)) error {
	return c.subscribeKeyed("usersub:"+connID, UserSubject(uid), func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// UnsubscribeUser removes the subscription created by SubscribeUser.
func (c *NATSClient) UnsubscribeUser(connID string) error {
	return c.unsubscribe("usersub:" + connID)
}

// PublishUser publishes data to uid's notification subject.
func (c *NATSClient) PublishUser(uid string, data []byte) error {
	return c.Publish(UserSubject(uid), data)
}

func (c *NATSClient) subscribeKeyed(key, subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	old := c.subs[key]
	c.subs[key] = sub
	c.mu.Unlock()

	// Re-identifying a connection replaces its previous subscription.
	if old != nil {
		if err := old.Unsubscribe(); err != nil {
			log.Printf("[nats] unsubscribe replaced %s: %v", key, err)
		}
	}
	return nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", key, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// unsubscribe removes and unsubscribes a keyed subscription.
func (c *NATSClient) unsubscribe(key string) error {
	c.mu.Lock()
	sub, ok := c.subs[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for %s", key)
	}
	delete(c.subs, key)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", key, err)
	}
	return nil
}
