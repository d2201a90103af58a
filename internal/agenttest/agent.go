package agenttest

import (
	"bufio"
	"net"
	"strings"
	"sync"
)

// Handler scripts a mock agent's reaction to one request line. It returns
// the response lines to write back, without terminators, and whether the
// connection should be closed once they are written.
type Handler func(line string) (replies []string, closeAfter bool)

// Default speaks just enough of the housekeeping commands for tests to
// hold a believable conversation with the mock.
func Default(line string) ([]string, bool) {
	switch {
	case line == "NOP":
		return []string{"OK"}, false

	case line == "BYE":
		return []string{"OK closing connection"}, true

	case line == "RESET":
		return []string{"OK"}, false

	case line == "GETINFO version":
		return []string{"D 2.2.27", "OK"}, false

	case strings.HasPrefix(line, "OPTION "):
		return []string{"OK"}, false

	case strings.HasPrefix(line, "D "):
		// Echo data lines straight back, tests use this for round-trips
		return []string{line, "OK"}, false

	default:
		return []string{"ERR 67109139 Unknown IPC command"}, false
	}
}

// Agent is an in-process mock agent on a real unix domain socket. Every
// connection is greeted the way gpg-agent greets, with an OK line, then
// the Handler scripts the rest of the conversation.
type Agent struct {
	SocketPath string

	// Greeting is sent as the first line of every connection. Change it
	// before the first client dials in.
	Greeting string

	handler  Handler
	listener net.Listener

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// Start listens on socketPath and serves connections until Close. A nil
// handler means Default.
func Start(socketPath string, handler Handler) (*Agent, error) {
	if handler == nil {
		handler = Default
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}

	agent := &Agent{
		SocketPath: socketPath,
		Greeting:   "OK Pleased to meet you",
		handler:    handler,
		listener:   listener,
		conns:      make(map[net.Conn]struct{}),
	}

	go agent.acceptLoop()

	return agent, nil
}

func (a *Agent) acceptLoop() {
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			return
		}

		a.mu.Lock()
		a.conns[conn] = struct{}{}
		a.mu.Unlock()

		go a.serve(conn)
	}
}

func (a *Agent) serve(conn net.Conn) {
	defer func() {
		conn.Close()

		a.mu.Lock()
		delete(a.conns, conn)
		a.mu.Unlock()
	}()

	if _, err := conn.Write([]byte(a.Greeting + "\n")); err != nil {
		return
	}

	scanner := bufio.NewScanner(conn)

	for scanner.Scan() {
		replies, closeAfter := a.handler(scanner.Text())

		for _, reply := range replies {
			if _, err := conn.Write([]byte(reply + "\n")); err != nil {
				return
			}
		}

		if closeAfter {
			return
		}
	}
}

// Close stops listening and drops every open connection.
func (a *Agent) Close() error {
	err := a.listener.Close()

	a.mu.Lock()
	for conn := range a.conns {
		conn.Close()
		delete(a.conns, conn)
	}
	a.mu.Unlock()

	return err
}
