package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestThrottlerAllow(t *testing.T) {
	now := time.Unix(1000, 0)
	th := NewThrottler(time.Minute)
	th.now = func() time.Time { return now }

	assert.True(t, th.Allow("k"))
	assert.False(t, th.Allow("k"))
	assert.True(t, th.Allow("other"))

	now = now.Add(time.Minute)
	assert.True(t, th.Allow("k"))

	th.Clear()
	assert.True(t, th.Allow("k"))
}

func TestManagerThrottlesByKey(t *testing.T) {
	ch := NewMockChannel("mock")
	m := NewManager([]Channel{ch}, time.Minute)
	now := time.Unix(1000, 0)
	m.SetClock(func() time.Time { return now })

	require.NoError(t, m.SendWarning("degenerate", "buy 101 >= sell 100", nil))
	require.NoError(t, m.SendWarning("degenerate", "buy 102 >= sell 100", nil))
	assert.Equal(t, 1, ch.Count(), "same key is throttled even with a different message")

	require.NoError(t, m.SendError("degenerate", "buy 102 >= sell 100", nil))
	assert.Equal(t, 2, ch.Count(), "level is part of the throttle key")

	now = now.Add(2 * time.Minute)
	require.NoError(t, m.SendWarning("degenerate", "again", nil))
	assert.Equal(t, 3, ch.Count())

	m.ResetThrottle()
	require.NoError(t, m.SendWarning("degenerate", "after reset", nil))
	assert.Equal(t, 4, ch.Count())
}

func TestManagerEmptyKeyUsesMessage(t *testing.T) {
	ch := NewMockChannel("mock")
	m := NewManager([]Channel{ch}, time.Hour)
	require.NoError(t, m.SendInfo("", "SELL 0.01 SOL-USDT paper at 142.35", nil))
	require.NoError(t, m.SendInfo("", "SELL 0.01 SOL-USDT paper at 142.35", nil))
	require.NoError(t, m.SendInfo("", "BUY 0.01 SOL-USDT paper at 142.00", nil))
	alerts := ch.GetAlerts()
	require.Len(t, alerts, 2)
	assert.Equal(t, LevelInfo, alerts[0].Level)
	assert.False(t, alerts[0].Timestamp.IsZero())
}

func TestManagerChannelErrors(t *testing.T) {
	bad := NewMockChannel("bad")
	bad.SetShouldError(true)
	good := NewMockChannel("good")

	m := NewManager([]Channel{bad, good}, 0)
	assert.NoError(t, m.SendCritical("feed", "feed down", nil), "one healthy channel is enough")
	assert.Equal(t, 1, good.Count())

	only := NewManager([]Channel{bad}, 0)
	assert.Error(t, only.SendCritical("feed", "feed down", nil))
}

func TestManagerAddChannel(t *testing.T) {
	m := NewManager(nil, 0)
	m.AddChannel(NewMockChannel("a"))
	m.AddChannel(NewMockChannel("b"))
	assert.Equal(t, []string{"a", "b"}, m.GetChannels())
}

func TestNilManagerIsNoop(t *testing.T) {
	var m *Manager
	assert.NoError(t, m.SendWarning("k", "msg", nil))
}

func TestLogChannelLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ch := NewLogChannel("log", zap.New(core))
	require.NoError(t, ch.Send(Alert{Level: LevelWarning, Message: "degenerate quote", Fields: map[string]interface{}{"buy": 101.0}}))
	require.NoError(t, ch.Send(Alert{Level: LevelCritical, Message: "feed down"}))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, 101.0, entries[0].ContextMap()["buy"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "log", ch.Name())
}
