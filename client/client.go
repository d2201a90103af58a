package client

import (
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/luma/aswan/protocol"
)

var (
	ErrClosed           = errors.New("Client is closed")
	ErrNotConnected     = errors.New("Client is not connected, call Connect first")
	ErrAlreadyConnected = errors.New("Client is already connected")
)

// State tracks where in its lifecycle the connection is. It only ever
// moves forward, Disconnected -> Connecting -> Connected -> Closed, except
// for a failed dial which drops back to Disconnected.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}

	return "unknown"
}

// Client owns one connection to an agent's unix domain socket.
//
// A Client never retries, reconnects, caches, or keeps more than one
// exchange in flight. The protocol is half-duplex: send one request, then
// receive response lines until the terminal OK or ERR, and it is the
// caller's job to keep to that sequence.
//
// Waiters never poll. Every suspension in AwaitReady and Receive is woken
// directly by the event that satisfies it: the dial completing, a line
// arriving, an error arriving, or Close.
type Client struct {
	mu    sync.Mutex
	state State
	conn  net.Conn

	// ready closes when a dial succeeds, done closes when Close is called
	ready chan struct{}
	done  chan struct{}

	inbox *inbox

	// wmu serialises writes to the connection
	wmu sync.Mutex

	log *zap.Logger
}

func New(log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		ready: make(chan struct{}),
		done:  make(chan struct{}),
		inbox: newInbox(),
		log:   log,
	}
}

// Connect starts dialling the unix socket at socketPath. It returns once
// the client is Connecting, the dial itself completes in the background
// and flips the state to Connected. Use AwaitReady to block until then.
//
// ctx bounds the dial only, not the life of the connection.
func (c *Client) Connect(ctx context.Context, socketPath string) error {
	c.mu.Lock()

	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed

	case StateConnecting, StateConnected:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	c.state = StateConnecting
	c.mu.Unlock()

	go c.dial(ctx, socketPath)

	return nil
}

func (c *Client) dial(ctx context.Context, socketPath string) {
	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "unix", socketPath)

	c.mu.Lock()

	if c.state == StateClosed {
		// Close won the race, don't resurrect the connection
		c.mu.Unlock()

		if conn != nil {
			conn.Close()
		}

		return
	}

	if err != nil {
		c.state = StateDisconnected
		c.mu.Unlock()

		c.log.Warn("Failed to connect to the agent",
			zap.String("socket", socketPath),
			zap.Error(err))

		c.inbox.putErr(err)

		return
	}

	c.conn = conn
	c.state = StateConnected
	close(c.ready)
	c.mu.Unlock()

	c.log.Debug("Connected to the agent", zap.String("socket", socketPath))

	go c.readLoop(conn)
}

// AwaitReady blocks until the connection is up. A failed dial wakes it
// too: the dial error is returned, and stays queued for the next Send or
// Receive to observe as well.
func (c *Client) AwaitReady(ctx context.Context) error {
	for {
		wake := c.inbox.wait()

		c.mu.Lock()
		state := c.state
		c.mu.Unlock()

		switch state {
		case StateConnected:
			return nil

		case StateClosed:
			return ErrClosed

		case StateDisconnected:
			if err := c.inbox.peekErr(); err != nil {
				return err
			}

			return ErrNotConnected
		}

		select {
		case <-c.ready:
		case <-c.done:
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Send transmits one encoded request line. A transport error that arrived
// since the last call is surfaced first, before anything is written. The
// write is blocking: when Send returns nil the whole line, terminator
// included, has been handed to the transport.
func (c *Client) Send(ctx context.Context, req protocol.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	state, conn := c.state, c.conn
	c.mu.Unlock()

	if state == StateClosed {
		return ErrClosed
	}

	// A queued error outranks the state gate so that a failed dial is
	// reported as itself, not as a bare "not connected"
	if err := c.inbox.takeErr(); err != nil {
		return err
	}

	if state != StateConnected {
		return ErrNotConnected
	}

	line := make([]byte, 0, len(req)+1)
	line = append(line, req...)
	line = append(line, '\n')

	c.wmu.Lock()
	defer c.wmu.Unlock()

	_, err := conn.Write(line)

	return err
}

// Receive blocks until the agent has sent a complete line and returns the
// oldest one. A pending transport error is surfaced first, even when
// lines arrived ahead of it. Decode the line with protocol.ParseResponse.
//
// There is no timeout: an unresponsive agent blocks Receive until the
// caller's ctx expires or another goroutine calls Close.
func (c *Client) Receive(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state == StateClosed {
		return nil, ErrClosed
	}

	// A queued error outranks the state gate here too, so that a failed
	// dial is reported as itself, not as a bare "not connected"
	if err := c.inbox.takeErr(); err != nil {
		return nil, err
	}

	switch state {
	case StateDisconnected, StateConnecting:
		return nil, ErrNotConnected
	}

	return c.inbox.take(ctx)
}

// Close tears the connection down. It is idempotent, unblocks every
// suspended AwaitReady, Send, and Receive with ErrClosed, and drops
// anything still queued. Every later operation fails with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()

	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}

	c.state = StateClosed
	conn := c.conn
	c.conn = nil
	close(c.done)
	c.mu.Unlock()

	c.inbox.close()

	if conn == nil {
		return nil
	}

	return conn.Close()
}

// State reports the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// readLoop is the transport's event-delivery context. It alone feeds the
// inbox: complete lines as they reassemble, then the error that ended the
// connection.
func (c *Client) readLoop(conn net.Conn) {
	log := c.log.Named("readLoop")

	var lines protocol.LineBuffer
	buf := make([]byte, 4096)

	for {
		n, err := conn.Read(buf)

		if n > 0 {
			for _, line := range lines.Receive(buf[:n]) {
				c.inbox.putLine(line)
			}
		}

		if err != nil {
			// EOF or a real failure, either way the connection is done.
			// The caller observes this on their next Send or Receive,
			// not before.
			c.inbox.putErr(err)

			if lines.Len() > 0 {
				log.Warn("Connection ended mid-line",
					zap.Int("pendingBytes", lines.Len()))
			}

			log.Debug("Read loop exiting", zap.Error(err))

			return
		}
	}
}
