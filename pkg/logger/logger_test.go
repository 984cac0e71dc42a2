package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitConfiguresGlobalLogger(t *testing.T) {
	t.Cleanup(func() { Replace(nil) })

	require.NoError(t, Init("debug"))
	require.True(t, Logger().Core().Enabled(zap.DebugLevel))
}

func TestInitWithConsoleFormat(t *testing.T) {
	t.Cleanup(func() { Replace(nil) })

	require.NoError(t, InitWithOptions(Options{Level: "warn", Format: "console"}))
	require.False(t, Logger().Core().Enabled(zap.InfoLevel))
	require.True(t, Logger().Core().Enabled(zap.WarnLevel))
}

func TestLoggingHelpersEmitEntries(t *testing.T) {
	core, recorded := observer.New(zap.DebugLevel)
	t.Cleanup(func() { Replace(nil) })
	Replace(zap.New(core))

	Info("invite issued", zap.String("invite_id", "inv-1"))
	Error("activation failed")
	Warn("code rejected")
	Debug("cache miss")

	entries := recorded.All()
	require.Len(t, entries, 4)
	want := []string{"invite issued", "activation failed", "code rejected", "cache miss"}
	for i, entry := range entries {
		require.Equal(t, want[i], entry.Message)
	}
	require.Equal(t, "inv-1", entries[0].ContextMap()["invite_id"])
}

func TestWithModuleAttachesModuleField(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	t.Cleanup(func() { Replace(nil) })
	Replace(zap.New(core))

	WithModule("portal.invites").Info("module test")

	entries := recorded.All()
	require.Len(t, entries, 1)
	require.Equal(t, "portal.invites", entries[0].ContextMap()["module"])
}
