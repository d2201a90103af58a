// Package agent layers protocol housekeeping on top of a client.Client:
// finding the socket, consuming the greeting, and running whole half-duplex
// exchanges. Key operations (signing, decryption, pinentry) are out of
// scope, callers send those as free-form commands.
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/luma/aswan/client"
	"github.com/luma/aswan/protocol"
)

// StatusLine is one S line observed during an exchange.
type StatusLine struct {
	Keyword string
	Text    string
}

// Result is everything a completed exchange produced: the concatenated
// payload of its D lines, its S lines in order, and the message of the
// terminal OK. Comments are dropped.
type Result struct {
	Data    []byte
	Status  []StatusLine
	Message string
}

// Session drives one half-duplex conversation at a time with an agent.
//
// Transact collects a whole exchange, treating every S line as status. The
// wire cannot mark an S line as an inquiry (see the protocol package
// docs), so commands that trigger INQUIRE exchanges must not go through
// Transact: drive Client directly and apply your own protocol state to
// decide which S lines want a D/END answer.
type Session struct {
	client   *client.Client
	greeting string
	log      *zap.Logger
}

func NewSession(log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}

	return &Session{
		client: client.New(log.Named("client")),
		log:    log,
	}
}

// Client exposes the underlying connection for callers that need to run
// an inquiry exchange by hand.
func (s *Session) Client() *client.Client {
	return s.client
}

// Start connects to the agent socket at socketPath (discovered per
// Discover when empty), waits for the connection, and consumes the OK
// greeting the agent opens every connection with.
func (s *Session) Start(ctx context.Context, socketPath string) error {
	path, err := Discover(ctx, socketPath)
	if err != nil {
		return err
	}

	if err := s.client.Connect(ctx, path); err != nil {
		return err
	}

	if err := s.client.AwaitReady(ctx); err != nil {
		return err
	}

	greeting, err := s.receiveResponse(ctx)
	if err != nil {
		return err
	}

	message, err := greeting.AsOk()
	if err != nil {
		return fmt.Errorf("Agent sent '%s' instead of a greeting: %w",
			string(greeting.Raw()), err)
	}

	s.greeting = string(greeting.Raw())

	s.log.Debug("Agent greeted us",
		zap.String("socket", path),
		zap.String("greeting", message))

	return nil
}

// Greeting returns the raw OK line the agent opened the connection with,
// empty before Start.
func (s *Session) Greeting() string {
	return s.greeting
}

// Transact sends one request and collects response lines until the
// terminal OK or ERR. An ERR terminal is returned as *protocol.AgentError.
func (s *Session) Transact(ctx context.Context, req protocol.Request) (*Result, error) {
	if err := s.client.Send(ctx, req); err != nil {
		return nil, err
	}

	result := &Result{}

	for {
		resp, err := s.receiveResponse(ctx)
		if err != nil {
			return nil, err
		}

		switch resp.Type {
		case protocol.RespOk:
			result.Message, _ = resp.AsOk()
			return result, nil

		case protocol.RespErr:
			return nil, resp.ErrorOrNil()

		case protocol.RespData:
			data, err := resp.AsData()
			if err != nil {
				return nil, err
			}

			result.Data = append(result.Data, data...)

		case protocol.RespStatus:
			keyword, text, err := resp.AsStatus()
			if err != nil {
				return nil, err
			}

			result.Status = append(result.Status, StatusLine{
				Keyword: keyword,
				Text:    text,
			})

		case protocol.RespComment:
			// Comments carry no meaning
		}
	}
}

// Command builds and runs a single command exchange.
func (s *Session) Command(ctx context.Context, command protocol.Command, parameters string) (*Result, error) {
	req, err := protocol.EncodeCommand(command, parameters)
	if err != nil {
		return nil, err
	}

	return s.Transact(ctx, req)
}

// Ping sends NOP, the agent's no-op heartbeat.
func (s *Session) Ping(ctx context.Context) error {
	_, err := s.Command(ctx, protocol.NOP, "")
	return err
}

// Reset asks the agent to drop all per-connection state.
func (s *Session) Reset(ctx context.Context) error {
	_, err := s.Command(ctx, protocol.RESET, "")
	return err
}

// GetInfo queries one of the agent's informational items, e.g. "version"
// or "pid". The answer arrives as data lines.
func (s *Session) GetInfo(ctx context.Context, what string) ([]byte, error) {
	result, err := s.Command(ctx, protocol.GETINFO, what)
	if err != nil {
		return nil, err
	}

	return result.Data, nil
}

// Option sets a per-connection option on the agent.
func (s *Session) Option(ctx context.Context, key, value string) error {
	parameters := key
	if value != "" {
		parameters = key + "=" + value
	}

	_, err := s.Command(ctx, protocol.OPTION, parameters)
	return err
}

// Bye asks the agent to end the conversation, then closes the connection.
// The agent acknowledges with an OK before hanging up.
func (s *Session) Bye(ctx context.Context) error {
	if _, err := s.Command(ctx, protocol.BYE, ""); err != nil {
		s.client.Close()
		return err
	}

	return s.client.Close()
}

// Close drops the connection without the BYE handshake.
func (s *Session) Close() error {
	return s.client.Close()
}

func (s *Session) receiveResponse(ctx context.Context) (*protocol.Response, error) {
	line, err := s.client.Receive(ctx)
	if err != nil {
		return nil, err
	}

	return protocol.ParseResponse(line)
}
