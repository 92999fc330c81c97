package transport

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"relay-lab/contract"
)

const writeWait = 10 * time.Second

// Conn wraps one websocket as a relay connection handle. Outbound frames
// go through a buffered channel drained by the write pump; Send never
// blocks and drops on overflow so one slow peer cannot stall a broadcast.
type Conn struct {
	id    string
	ws    *websocket.Conn
	out   chan []byte
	done  chan struct{}
	log   *slog.Logger
	alive atomic.Bool
	once  sync.Once
}

func NewConn(log *slog.Logger, ws *websocket.Conn, bufferSize int) *Conn {
	c := &Conn{
		id:   uuid.NewString(),
		ws:   ws,
		out:  make(chan []byte, bufferSize),
		done: make(chan struct{}),
		log:  log,
	}
	c.alive.Store(true)
	return c
}

func (c *Conn) ID() string { return c.id }

// Send queues a frame for delivery. Best effort: a full queue means the
// peer is too slow and the frame is dropped for this connection only.
func (c *Conn) Send(frame []byte) {
	select {
	case c.out <- frame:
	default:
		c.log.Warn("Outbound queue full, dropping frame", "conn_id", c.id)
	}
}

// Probe sends a ping control frame. Control frames may be written
// concurrently with the write pump.
func (c *Conn) Probe() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *Conn) Alive() bool          { return c.alive.Load() }
func (c *Conn) MarkAlive(alive bool) { c.alive.Store(alive) }

// Close asks the write pump to flush what is already queued and terminate
// the transport. Safe to call more than once, and it never blocks on the
// peer: the pump does the actual teardown under write deadlines.
func (c *Conn) Close() error {
	c.once.Do(func() {
		close(c.done)
	})
	return nil
}

// writePump drains the outbound queue onto the websocket. Runs in its own
// goroutine per connection and owns the websocket teardown.
func (c *Conn) writePump() {
	defer c.ws.Close()

	for {
		select {
		case <-c.done:
			c.flush()
			return
		case frame := <-c.out:
			if err := c.write(frame); err != nil {
				return
			}
		}
	}
}

// flush delivers the frames queued before Close and says goodbye with a
// close control frame. A sessionClosed queued right before teardown must
// still reach the peer.
func (c *Conn) flush() {
	for {
		select {
		case frame := <-c.out:
			if err := c.write(frame); err != nil {
				return
			}
		default:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *Conn) write(frame []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.log.Debug("Write failed", "conn_id", c.id, "err", err)
		return err
	}
	return nil
}

var _ contract.Conn = (*Conn)(nil)
