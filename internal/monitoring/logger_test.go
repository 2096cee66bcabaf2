package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	assert.True(t, called, "custom logger was not called")

	// Setting nil installs a no-op logger.
	called = false
	SetLogger(nil)
	Logf("test message")
	assert.False(t, called, "no-op logger should not have triggered callback")
}

func TestSetWarnLogger(t *testing.T) {
	original := Warnf
	defer func() { Warnf = original }()

	var got string
	SetWarnLogger(func(format string, v ...interface{}) { got = format })
	Warnf("channel missing")
	assert.Equal(t, "channel missing", got)

	SetWarnLogger(nil)
	Warnf("ignored")
	assert.Equal(t, "channel missing", got)
}

func TestNewZapLoggers(t *testing.T) {
	t.Run("valid level", func(t *testing.T) {
		l, err := NewZapLoggers("warn")
		require.NoError(t, err)
		require.NotNil(t, l.Infof)
		require.NotNil(t, l.Warnf)
		require.NotNil(t, l.Sync)
		l.Warnf("frame %d rejected", 3)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := NewZapLoggers("chatty")
		assert.Error(t, err)
	})
}

func TestFromZap_WarnThreshold(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	l := FromZap(zap.New(core))

	l.Infof("tracks=%d archived=%d", 4, 1)
	l.Warnf("rejected frame %d", 7)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "rejected frame 7", entries[0].Message)
}

func TestLoggersInstall(t *testing.T) {
	origInfo, origWarn := Logf, Warnf
	defer func() { Logf, Warnf = origInfo, origWarn }()

	core, logs := observer.New(zap.InfoLevel)
	FromZap(zap.New(core)).Install()

	Logf("progress")
	Warnf("channel missing")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestFromZap_Nil(t *testing.T) {
	l := FromZap(nil)
	l.Infof("ignored")
	l.Warnf("ignored")
	assert.NoError(t, l.Sync())
}
