package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

var ErrNoSocket = errors.New("No agent socket found, is the agent running?")

// redirectMarker is the first line of an Assuan socket-redirect file.
// gpg-agent writes one in place of the real socket when the home
// directory lives on a filesystem that cannot hold sockets.
const redirectMarker = "%Assuan%"

// discoverEnv is the slice of the environment that locates the agent.
type discoverEnv struct {
	// AgentSocket overrides discovery entirely
	AgentSocket string `env:"ASWAN_AGENT_SOCKET"`

	// AgentInfo is the historical GPG_AGENT_INFO form, `path:pid:proto`
	AgentInfo string `env:"GPG_AGENT_INFO"`

	GnupgHome string `env:"GNUPGHOME"`
}

// Discover resolves the path of the agent's unix domain socket. explicit,
// when non-empty, wins outright. Otherwise the environment is consulted,
// then the conventional socket locations, oldest convention last:
//
//   1. ASWAN_AGENT_SOCKET
//   2. GPG_AGENT_INFO (first colon-separated field)
//   3. $GNUPGHOME/S.gpg-agent
//   4. /run/user/<uid>/gnupg/S.gpg-agent
//   5. ~/.gnupg/S.gpg-agent
//
// A candidate that turns out to be an Assuan socket-redirect file is
// followed, one level deep.
func Discover(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return followRedirect(explicit)
	}

	var env discoverEnv
	if err := envconfig.Process(ctx, &env); err != nil {
		return "", err
	}

	if env.AgentSocket != "" {
		return followRedirect(env.AgentSocket)
	}

	if env.AgentInfo != "" {
		if path := strings.SplitN(env.AgentInfo, ":", 2)[0]; path != "" {
			return followRedirect(path)
		}
	}

	for _, candidate := range candidatePaths(env) {
		if _, err := os.Stat(candidate); err == nil {
			return followRedirect(candidate)
		}
	}

	return "", ErrNoSocket
}

func candidatePaths(env discoverEnv) []string {
	candidates := make([]string, 0, 3)

	if env.GnupgHome != "" {
		candidates = append(candidates, filepath.Join(env.GnupgHome, "S.gpg-agent"))
	}

	if u, err := user.Current(); err == nil {
		candidates = append(candidates,
			filepath.Join("/run/user", u.Uid, "gnupg", "S.gpg-agent"),
			filepath.Join(u.HomeDir, ".gnupg", "S.gpg-agent"))
	}

	return candidates
}

// followRedirect returns path unchanged unless it is a socket-redirect
// file, in which case the `socket=` target inside it is returned instead.
// Redirects are followed one level only, a redirect to a redirect is the
// agent misbehaving.
func followRedirect(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		// The path may be a live socket we cannot open as a file, leave
		// the dial to decide
		return path, nil
	}

	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() || scanner.Text() != redirectMarker {
		return path, nil
	}

	for scanner.Scan() {
		line := scanner.Text()

		if target := strings.TrimPrefix(line, "socket="); target != line {
			return target, nil
		}
	}

	return "", fmt.Errorf("Redirect file '%s' names no socket: %w", path, ErrNoSocket)
}
