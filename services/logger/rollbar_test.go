package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/dossier/core"
	"github.com/trezcool/dossier/core/user"
)

func newObservedLogger(t *testing.T) (*RollbarLogger, *observer.ObservedLogs) {
	t.Helper()
	obsCore, logs := observer.New(zap.DebugLevel)
	l := NewRollbarLogger(zap.New(obsCore), newTestConf())
	l.Enable(false)
	return l, logs
}

func newTestConf() *core.Config {
	return core.NewTestConfig()
}

func TestRollbarLogger_fields(t *testing.T) {
	l, logs := newObservedLogger(t)

	usr := user.User{ID: 7, Username: "awe", Email: "awe@test.cd"}
	other := user.User{ID: 8, Username: "other"}
	err := errors.New("boom")
	l.Error("upload failed", err, map[string]interface{}{"key": "documents/x.pdf"}, usr, other)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		entry := entries[0]
		assert.Equal(t, "upload failed", entry.Message)
		fields := entry.ContextMap()
		assert.Equal(t, "boom", fields["error"])
		assert.Equal(t, "documents/x.pdf", fields["key"])
		assert.EqualValues(t, 7, fields["user_id"])
		assert.Equal(t, "awe", fields["username"], "only the first user is recorded")
	}
}

func TestRollbarLogger_levels(t *testing.T) {
	l, logs := newObservedLogger(t)

	l.Debug("d")
	l.Info("i", "extra")
	l.Warn("w")
	l.Error("e")

	assert.Equal(t, 4, logs.Len())
	assert.Equal(t, 1, logs.FilterMessage("i").FilterField(zap.Any("arg0", "extra")).Len())
}
