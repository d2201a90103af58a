package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/luma/aswan/agent"
	"github.com/luma/aswan/client"
	"github.com/luma/aswan/protocol"
)

var (
	// The agent socket to connect to, discovered when empty
	connectSocket string

	// decode controls percent-decoding of D lines before printing
	decode bool
)

func init() {
	flags := ConnectCmd.PersistentFlags()

	flags.StringVarP(&connectSocket, "agent-socket", "S", "", "the agent socket, discovered from the environment when empty")
	flags.BoolVar(&decode, "decode", false, "percent-decode data lines before printing them")
}

var ConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Open an interactive conversation with the agent",
	Long: `Open an interactive conversation with the agent

Lines read from stdin are sent to the agent verbatim, every line the agent
sends back is printed. The conversation is half-duplex: after sending a
line, responses are read until a terminal OK or ERR before the next stdin
line is consumed.

Usage
	aswan connect
	echo "GETINFO version" | aswan connect --decode

`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer signalStop()

		session := agent.NewSession(nil)
		defer session.Close()

		if err := session.Start(ctx, connectSocket); err != nil {
			return err
		}

		// Start consumed the greeting, replay it for the user
		fmt.Println(session.Greeting())

		c := session.Client()
		stdin := bufio.NewScanner(os.Stdin)

		for stdin.Scan() {
			input := strings.TrimRight(stdin.Text(), "\r")
			if input == "" {
				continue
			}

			req, err := protocol.RawRequest([]byte(input))
			if err != nil {
				return err
			}

			if err := c.Send(ctx, req); err != nil {
				return err
			}

			if err := printResponses(ctx, c); err != nil {
				return err
			}

			if strings.EqualFold(input, string(protocol.BYE)) {
				return session.Close()
			}
		}

		if err := stdin.Err(); err != nil {
			return err
		}

		// Stdin ran out, say goodbye properly
		return session.Bye(ctx)
	},
}

// printResponses prints response lines until the terminal OK or ERR.
func printResponses(ctx context.Context, c *client.Client) error {
	for {
		line, err := c.Receive(ctx)
		if err != nil {
			return err
		}

		resp, err := protocol.ParseResponse(line)
		if err != nil {
			return err
		}

		if decode && resp.Type == protocol.RespData {
			payload, err := resp.AsData()
			if err != nil {
				return err
			}

			fmt.Printf("D %s\n", string(payload))
		} else {
			fmt.Println(string(line))
		}

		if resp.Type == protocol.RespOk || resp.Type == protocol.RespErr {
			return nil
		}
	}
}
