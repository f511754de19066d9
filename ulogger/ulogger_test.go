package ulogger_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/niklaslong/zebra/ulogger"
	"github.com/ordishs/gocore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroLoggerLevels(t *testing.T) {
	var buf bytes.Buffer

	logger := ulogger.New("state", ulogger.WithWriter(&buf), ulogger.WithLevel("WARN"))
	require.Equal(t, int(gocore.WARN), logger.LogLevel())

	logger.Infof("hidden %d", 1)
	logger.Warnf("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "state")
}

func TestZeroLoggerSetLogLevel(t *testing.T) {
	var buf bytes.Buffer

	logger := ulogger.NewZeroLogger("state", ulogger.WithWriter(&buf))
	assert.Equal(t, int(gocore.INFO), logger.LogLevel())

	logger.SetLogLevel("debug")
	assert.Equal(t, int(gocore.DEBUG), logger.LogLevel())

	logger.Debugf("debug line")
	assert.Contains(t, buf.String(), "debug line")

	logger.SetLogLevel("nonsense")
	assert.Equal(t, int(gocore.INFO), logger.LogLevel())
}

func TestZeroLoggerNewKeepsWriterAndLevel(t *testing.T) {
	var buf bytes.Buffer

	parent := ulogger.NewZeroLogger("state", ulogger.WithWriter(&buf), ulogger.WithLevel("ERROR"))
	child := parent.New("finalized")

	assert.Equal(t, int(gocore.ERROR), child.LogLevel())

	child.Errorf("child error")
	assert.Contains(t, buf.String(), "child error")
	assert.Contains(t, buf.String(), "finalized")
}

func TestZeroLoggerDuplicate(t *testing.T) {
	var buf, other bytes.Buffer

	parent := ulogger.NewZeroLogger("state", ulogger.WithWriter(&buf))
	dup := parent.Duplicate(ulogger.WithLevel("DEBUG"), ulogger.WithWriter(&other))

	assert.Equal(t, int(gocore.DEBUG), dup.LogLevel())
	assert.Equal(t, int(gocore.INFO), parent.LogLevel())

	dup.Debugf("only in other")
	assert.Contains(t, other.String(), "only in other")
	assert.NotContains(t, buf.String(), "only in other")
}

func TestNewGoCoreLogger(t *testing.T) {
	logger := ulogger.New("state", ulogger.WithLoggerType("gocore"))
	require.NotNil(t, logger)

	_, ok := logger.(*ulogger.GoCoreLogger)
	assert.True(t, ok)

	dup := logger.Duplicate(ulogger.WithSkipFrame(2))
	require.NotNil(t, dup)
}

func TestTestLogger(t *testing.T) {
	var logger ulogger.Logger = ulogger.TestLogger{}

	logger.Infof("nothing")
	logger.Errorf("nothing")
	assert.Equal(t, 0, logger.LogLevel())
	assert.Equal(t, ulogger.TestLogger{}, logger.New("x"))
}

type recordingT struct {
	mu     sync.Mutex
	logs   []string
	errors []string
}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, format)
}

func (r *recordingT) FailNow() {}

func (r *recordingT) Logf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logs = append(r.logs, format)
}

func TestErrorTestLogger(t *testing.T) {
	t.Run("info is silent", func(t *testing.T) {
		rt := &recordingT{}
		logger := ulogger.NewErrorTestLogger(rt)

		logger.Infof("fine")
		logger.Warnf("fine")
		assert.Empty(t, rt.logs)
		assert.Empty(t, rt.errors)
	})

	t.Run("error fails and cancels", func(t *testing.T) {
		rt := &recordingT{}
		cancelled := false
		logger := ulogger.NewErrorTestLogger(rt, func() { cancelled = true })

		logger.Errorf("broken %d", 1)
		assert.Len(t, rt.logs, 1)
		assert.Len(t, rt.errors, 1)
		assert.True(t, cancelled)
	})

	t.Run("skip cancel on fail only logs", func(t *testing.T) {
		rt := &recordingT{}
		logger := ulogger.NewErrorTestLogger(rt)
		logger.SkipCancelOnFail(true)

		logger.Fatalf("broken")
		assert.Len(t, rt.logs, 1)
		assert.Empty(t, rt.errors)
	})

	t.Run("shutdown drops everything", func(t *testing.T) {
		rt := &recordingT{}
		logger := ulogger.NewErrorTestLogger(rt)
		logger.Shutdown()

		logger.Errorf("late")
		assert.Empty(t, rt.logs)
		assert.Empty(t, rt.errors)
	})
}
