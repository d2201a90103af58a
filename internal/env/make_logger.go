package env

import (
	zap "go.uber.org/zap"
)

func MakeLogger() (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)

	// The binary is used interactively, console encoding keeps the output
	// readable next to the agent's own lines
	logConfig.Encoding = "console"

	return logConfig.Build()
}
