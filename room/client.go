package room

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	namesgenerator "github.com/moby/moby/pkg/namesgenerator"
	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"
)

// Client is one connected player: a websocket connection plus the
// identity the rest of the server refers to them by.
type Client struct {
	id         string
	conn       *websocket.Conn
	outbox     chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	profilemtx sync.RWMutex
	name       string
}

// NewClient wraps a websocket connection. An empty id gets a fresh uuid
// and an empty name gets a generated one.
func NewClient(id string, name string, conn *websocket.Conn) *Client {
	if id == "" {
		id = uuid.NewV4().String()
	}
	if name == "" {
		genName := strings.Split(namesgenerator.GetRandomName(0), "_")
		name = fmt.Sprintf("%s %s", strings.Title(genName[0]), strings.Title(genName[1]))
	}
	c := &Client{
		id:     id,
		name:   name,
		conn:   conn,
		outbox: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go c.writePump()
	return c
}

// ID returns the client's stable identifier.
func (c *Client) ID() string {
	return c.id
}

// Name returns the client's display name.
func (c *Client) Name() string {
	c.profilemtx.RLock()
	defer c.profilemtx.RUnlock()
	return c.name
}

// SetName updates the client's display name; empty names are ignored.
func (c *Client) SetName(n string) {
	if n == "" {
		return
	}
	c.profilemtx.Lock()
	c.name = n
	c.profilemtx.Unlock()
}

// Send queues a message for delivery without blocking; a full outbox
// drops the message.
func (c *Client) Send(b []byte) {
	select {
	case c.outbox <- b:
	case <-c.done:
	default:
		log.Warnf("lost message to %s: %s", c.Name(), b)
	}
}

// ReadLoop pumps inbound messages to the handler until the connection
// drops, then closes the client. Run on the connection's goroutine.
func (c *Client) ReadLoop(handler func(clientID string, b []byte)) {
	defer c.Close()
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error(err)
			}
			return
		}
		handler(c.id, msg)
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) writePump() {
	pingTicker := time.NewTicker(5 * time.Second)
	defer pingTicker.Stop()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.outbox:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Error(err)
				c.Close()
				return
			}
		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
