package bridge

import (
	"context"
	"net"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luma/aswan/client"
	"github.com/luma/aswan/protocol"
)

// relay shuttles lines between one TCP peer and one dedicated agent
// connection. Two loops run under an errgroup: TCP bytes reassemble into
// lines and go to the agent, agent lines come back out with a terminator.
// Either side failing, or the bridge shutting down, tears both loops down.
//
// The relay never interprets the lines beyond framing them. Half-duplex
// sequencing stays the remote peer's responsibility, exactly as it would
// be against the agent directly.
type relay struct {
	ctx    context.Context
	cancel context.CancelFunc

	bridge *Bridge
	conn   net.Conn
	agent  *client.Client

	log *zap.Logger
}

func newRelay(parentCtx context.Context, bridge *Bridge, conn net.Conn, log *zap.Logger) *relay {
	ctx, cancel := context.WithCancel(parentCtx)

	return &relay{
		ctx:    ctx,
		cancel: cancel,
		bridge: bridge,
		conn:   conn,
		agent:  client.New(log.Named("agent")),
		log:    log,
	}
}

// Run connects to the agent and relays until either side is done. It
// returns once both loops have exited and the connections are closed.
func (r *relay) Run() {
	defer r.Close()

	if err := r.agent.Connect(r.ctx, r.bridge.socketPath); err != nil {
		r.log.Warn("Failed to start dialling the agent", zap.Error(err))
		return
	}

	if err := r.agent.AwaitReady(r.ctx); err != nil {
		r.log.Warn("Failed to connect to the agent", zap.Error(err))
		r.recordError(err)

		return
	}

	group, ctx := errgroup.WithContext(r.ctx)

	group.Go(func() error { return r.peerToAgent(ctx) })
	group.Go(func() error { return r.agentToPeer(ctx) })

	// Unblock both loops as soon as either exits
	go func() {
		<-ctx.Done()
		r.conn.Close()
		r.agent.Close()
	}()

	if err := group.Wait(); err != nil {
		r.log.Debug("Relay finished", zap.Error(err))
		r.recordError(err)
	}
}

func (r *relay) Close() {
	r.cancel()
	r.conn.Close()
	r.agent.Close()
}

// peerToAgent reassembles the TCP byte stream into lines and forwards each
// one to the agent verbatim.
func (r *relay) peerToAgent(ctx context.Context) error {
	var lines protocol.LineBuffer
	buf := make([]byte, 4096)

	for {
		n, err := r.conn.Read(buf)

		if n > 0 {
			for _, line := range lines.Receive(buf[:n]) {
				req, err := protocol.RawRequest(line)
				if err != nil {
					return err
				}

				if r.bridge.trace {
					r.log.Debug("peer -> agent", zap.ByteString("line", line))
				}

				if err := r.agent.Send(ctx, req); err != nil {
					return err
				}

				r.recordLine("bridge.linesToAgent")
			}
		}

		if err != nil {
			return err
		}
	}
}

// agentToPeer forwards every line the agent sends back out over TCP,
// terminator restored.
func (r *relay) agentToPeer(ctx context.Context) error {
	for {
		line, err := r.agent.Receive(ctx)
		if err != nil {
			return err
		}

		if r.bridge.trace {
			r.log.Debug("agent -> peer", zap.ByteString("line", line))
		}

		out := make([]byte, 0, len(line)+1)
		out = append(out, line...)
		out = append(out, '\n')

		if _, err := r.conn.Write(out); err != nil {
			return err
		}

		r.recordLine("bridge.linesFromAgent")
	}
}

func (r *relay) recordLine(path string) {
	if r.bridge.journal == nil {
		return
	}

	if err := r.bridge.journal.Incr(path, 1); err != nil {
		r.log.Warn("Failed to record relayed line", zap.Error(err))
	}
}

func (r *relay) recordError(err error) {
	if r.bridge.journal == nil {
		return
	}

	if jerr := r.bridge.journal.Record("bridge.lastError", err.Error()); jerr != nil {
		r.log.Warn("Failed to record relay error", zap.Error(jerr))
	}
}
