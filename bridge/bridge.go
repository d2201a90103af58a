// Package bridge exposes a local agent's unix domain socket as a TCP
// endpoint, line by line, so the agent can be poked from a debugging
// machine that only has network reach. Every accepted TCP connection gets
// its own dedicated connection to the agent: the protocol is half-duplex
// per connection, and sharing one agent connection between TCP clients
// would interleave their exchanges.
package bridge

import (
	"context"
	"errors"
	"net"
	"runtime"
	"strconv"
	"strings"
	"sync"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/aswan/journal"
)

type Bridge struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr       string
	socketPath string
	reuseport  bool
	trace      bool

	numListeners int
	listeners    []*Listener

	journal *journal.Journal

	log *zap.Logger
}

func New(options Options) *Bridge {
	numListeners := options.NumListeners

	if numListeners < 1 {
		numListeners = runtime.NumCPU()
	}

	if !options.Reuseport {
		// Without SO_REUSEPORT a second accept loop on the same port can
		// only fail
		numListeners = 1
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Bridge{
		addr:         net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		socketPath:   options.SocketPath,
		reuseport:    options.Reuseport,
		trace:        options.Trace,
		numListeners: numListeners,
		listeners:    make([]*Listener, 0, numListeners),
		journal:      options.Journal,
		log:          log,
	}
}

func (b *Bridge) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	b.cancel = cancel

	b.log.Info("Starting bridge listeners",
		zap.String("addr", b.addr),
		zap.String("socket", b.socketPath),
		zap.Int("count", b.numListeners))

	for i := 0; i < b.numListeners; i++ {
		if err := b.startListener(ctx); err != nil {
			b.Close()
			return err
		}
	}

	return nil
}

func (b *Bridge) Journal() *journal.Journal {
	return b.journal
}

// Addr reports the address the first listener is bound to, which is how
// callers that asked for port 0 learn the real port.
func (b *Bridge) Addr() net.Addr {
	if len(b.listeners) == 0 {
		return nil
	}

	return b.listeners[0].Addr()
}

func (b *Bridge) startListener(ctx context.Context) error {
	listener, err := NewListener(
		ctx,
		b,
		b.log.Named("listener").With(zap.Int("listener", len(b.listeners))),
	)
	if err != nil {
		return err
	}

	b.listeners = append(b.listeners, listener)

	b.stopWaiter.Add(1)

	go func() {
		defer b.stopWaiter.Done()

		if err := listener.AcceptLoop(); err != nil {
			b.log.Error("Listener failed", zap.Error(err))
		}
	}()

	return nil
}

// Close immediately drops all listeners and every bridged connection, then
// waits until their loops have drained.
func (b *Bridge) Close() (err error) {
	b.log.Info("Stopping bridge")

	if b.cancel != nil {
		b.cancel()
	}

	for _, listener := range b.listeners {
		err = multierr.Append(err, listener.Close())
	}

	b.stopWaiter.Wait()

	return err
}

type Listener struct {
	ctx context.Context

	bridge   *Bridge
	listener net.Listener
	log      *zap.Logger

	mu           sync.Mutex
	activeRelays map[*relay]struct{}
}

func NewListener(ctx context.Context, bridge *Bridge, log *zap.Logger) (*Listener, error) {
	var (
		listener net.Listener
		err      error
	)

	if bridge.reuseport {
		listener, err = reuseport.Listen("tcp", bridge.addr)
	} else {
		listener, err = net.Listen("tcp", bridge.addr)
	}

	if err != nil {
		return nil, err
	}

	return &Listener{
		ctx:          ctx,
		bridge:       bridge,
		listener:     listener,
		activeRelays: make(map[*relay]struct{}),
		log:          log,
	}, nil
}

func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *Listener) Close() error {
	err := l.listener.Close()

	l.mu.Lock()
	for r := range l.activeRelays {
		r.Close()
		delete(l.activeRelays, r)
	}
	l.mu.Unlock()

	return err
}

func (l *Listener) AcceptLoop() error {
	var loopWaiter sync.WaitGroup

	defer func() {
		l.log.Info("Waiting for relay loops to stop")
		loopWaiter.Wait()
		l.log.Info("Listener stopped")
	}()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.ctx.Done():
				return nil
			default:
			}

			netOpError := new(net.OpError)

			if errors.As(err, &netOpError) && strings.Contains(netOpError.Err.Error(), "use of closed network connection") {
				// The listener was closed while we were waiting for new
				// connections, that's fine
				return nil
			}

			return err
		}

		r := newRelay(l.ctx, l.bridge, conn, l.log.Named("relay").
			With(zap.String("peer", conn.RemoteAddr().String())))

		l.addRelay(r)
		l.recordConn(1)

		loopWaiter.Add(1)

		go func() {
			defer loopWaiter.Done()

			r.Run()
			l.removeRelay(r)
			l.recordConn(-1)
		}()
	}
}

func (l *Listener) addRelay(r *relay) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.activeRelays[r] = struct{}{}
}

func (l *Listener) removeRelay(r *relay) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.activeRelays, r)
}

func (l *Listener) recordConn(delta int64) {
	j := l.bridge.journal
	if j == nil {
		return
	}

	if err := j.Incr("bridge.activeConnections", delta); err != nil {
		l.log.Warn("Failed to record connection count", zap.Error(err))
	}

	if delta > 0 {
		if err := j.Incr("bridge.totalConnections", delta); err != nil {
			l.log.Warn("Failed to record connection count", zap.Error(err))
		}
	}
}
