package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/aswan/agent"
	"github.com/luma/aswan/bridge"
	"github.com/luma/aswan/internal/env"
	"github.com/luma/aswan/journal"
)

var (
	// The host to listen on
	host string

	// The port to listen for http requests on
	httpPort string

	// The port to listen for tcp clients on
	port int

	// The agent socket to bridge onto, discovered when empty
	serveSocket string

	// Optional TOML file supplying the same settings as the flags
	configFile string
)

// serveConfig mirrors the flags for the TOML form. Flags left at their
// defaults yield to the file.
type serveConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	HTTPPort    string `toml:"http_port"`
	AgentSocket string `toml:"agent_socket"`
}

func init() {
	flags := ServeCmd.PersistentFlags()

	flags.IntVarP(&port, "port", "p", 7363, "The port to listen for bridged client connections on")
	flags.StringVar(&httpPort, "http-port", "7362", "The port to listen to HTTP requests on")
	flags.StringVarP(&host, "host", "a", "0.0.0.0", "The host to listen on")
	flags.StringVarP(&serveSocket, "agent-socket", "S", "", "the agent socket, discovered from the environment when empty")
	flags.StringVarP(&configFile, "config", "c", "", "a TOML file supplying the same settings as the flags")
}

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Bridge a local agent socket onto TCP",
	Long: `Bridge a local agent socket onto TCP

Every accepted TCP connection gets its own connection to the agent and its
lines are relayed verbatim in both directions. A small HTTP surface serves
liveness and relay statistics.

Usage
	aswan serve
	aswan serve --config aswan.toml

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(cmd.Context(), os.Interrupt, os.Kill)
		defer signalStop()

		log, err := env.MakeLogger()
		if err != nil {
			return err
		}

		if configFile != "" {
			if err := loadConfigFile(cmd, configFile); err != nil {
				return err
			}
		}

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}

		log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		socketPath, err := agent.Discover(ctx, firstOf(serveSocket, conf.AgentSocket))
		if err != nil {
			return err
		}

		j := journal.New()

		router := setupRouter(conf.DebugHTTP, log)

		// Ping test
		router.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		router.GET("/status", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", j.Snapshot())
		})

		s := &http.Server{
			Addr:    net.JoinHostPort(host, httpPort),
			Handler: router,
		}

		// Initializing the server in a goroutine so that
		// it won't block the graceful shutdown handling below
		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
			}
		}()

		b := bridge.New(bridge.Options{
			Host:       host,
			Port:       port,
			SocketPath: socketPath,
			Reuseport:  true,
			Trace:      conf.Trace,
			Journal:    j,
			Log:        log.Named("bridge"),
		})

		if err := b.Start(ctx); err != nil {
			return err
		}

		log.Info("Listening",
			zap.String("socket", socketPath),
			zap.String("host", host),
			zap.Int("port", port),
			zap.String("httpPort", httpPort))

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		// The context is used to inform the server it has 5 seconds to finish
		// the request it is currently handling
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		if serr := s.Shutdown(shutdownCtx); serr != nil {
			log.Error("Http server forced to shutdown", zap.Error(serr))
			err = multierr.Append(err, serr)
		}

		if berr := b.Close(); berr != nil {
			log.Error("Bridge forced to shutdown", zap.Error(berr))
			err = multierr.Append(err, berr)
		}

		err = multierr.Append(err, j.Close())

		log.Info("Exiting")
		return err
	},
}

// loadConfigFile fills in any flag the user did not set from the TOML
// file. Explicit flags always win.
func loadConfigFile(cmd *cobra.Command, path string) error {
	var conf serveConfig

	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return err
	}

	flags := cmd.PersistentFlags()

	if conf.Host != "" && !flags.Changed("host") {
		host = conf.Host
	}

	if conf.Port != 0 && !flags.Changed("port") {
		port = conf.Port
	}

	if conf.HTTPPort != "" && !flags.Changed("http-port") {
		httpPort = conf.HTTPPort
	}

	if conf.AgentSocket != "" && !flags.Changed("agent-socket") {
		serveSocket = conf.AgentSocket
	}

	return nil
}

func firstOf(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}

func setupRouter(debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - Logs to stdout.
	//   - RFC3339 with UTC time format.
	r.Use(ginzap.Ginzap(log, time.RFC3339, true))

	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
