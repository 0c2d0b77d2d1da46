package testutil

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/dossier/core"
	logsvc "github.com/trezcool/dossier/services/logger"
)

// NewLogger returns a logger that records entries instead of writing them. Rollbar is disabled.
func NewLogger() (*logsvc.RollbarLogger, *observer.ObservedLogs) {
	obsCore, logs := observer.New(zap.DebugLevel)
	logger := logsvc.NewRollbarLogger(zap.New(obsCore), core.NewTestConfig())
	logger.Enable(false)
	return logger, logs
}
