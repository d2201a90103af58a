package env

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	// AgentSocket overrides agent socket discovery
	AgentSocket string `env:"ASWAN_AGENT_SOCKET"`

	DebugHTTP bool `env:"ASWAN_DEBUG_HTTP"`

	// Trace dumps every relayed line to the log
	Trace bool `env:"ASWAN_TRACE"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			panic(err)
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
