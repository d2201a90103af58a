package bridge

import (
	"go.uber.org/zap"

	"github.com/luma/aswan/journal"
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on
	Port int

	// SocketPath is the agent's unix domain socket that every accepted
	// connection is bridged onto
	SocketPath string

	// Reuseport controls setting SO_REUSEPORT, which is what lets
	// NumListeners accept loops share one port
	Reuseport bool

	// Trace will dump every relayed line to the log. This is only useful
	// in local debugging
	Trace bool

	NumListeners int

	Journal *journal.Journal

	Log *zap.Logger
}
