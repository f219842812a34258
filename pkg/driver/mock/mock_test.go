package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteswan/mobile-e2e/pkg/core"
)

func TestElement_ScheduledMutations(t *testing.T) {
	clock := NewClock()
	s := NewSession(clock)
	el := s.AddElement("~Начать", Hidden())
	el.At(2*time.Second, func(e *Element) { e.Visible = true })
	el.At(5*time.Second, func(e *Element) { e.Active = true })

	visible, err := el.Displayed()
	require.NoError(t, err)
	assert.False(t, visible)

	require.NoError(t, clock.Sleep(context.Background(), 2*time.Second))
	visible, _ = el.Displayed()
	assert.True(t, visible)
	enabled, _ := el.Enabled()
	assert.False(t, enabled)

	require.NoError(t, clock.Sleep(context.Background(), 3*time.Second))
	enabled, _ = el.Enabled()
	assert.True(t, enabled)
}

func TestSession_MissingElement(t *testing.T) {
	s := NewSession(nil)
	el := s.Element("~Нет")

	exists, err := el.Exists()
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = el.Enabled()
	assert.True(t, errors.Is(err, core.ErrElementNotFound))
	assert.Equal(t, 2, len(s.Calls("~Нет.Exists", "~Нет.Enabled")))
}

func TestSession_SequencesRepeatLast(t *testing.T) {
	s := NewSession(nil)
	s.Activities = []string{".LauncherActivity", ".MainActivity"}

	first, _ := s.CurrentActivity()
	second, _ := s.CurrentActivity()
	third, _ := s.CurrentActivity()
	assert.Equal(t, ".LauncherActivity", first)
	assert.Equal(t, ".MainActivity", second)
	assert.Equal(t, ".MainActivity", third)
}

func TestSession_GesturesChangeDefaultSource(t *testing.T) {
	s := NewSession(nil)
	before, _ := s.Source()
	require.NoError(t, s.Swipe(core.Point{X: 1, Y: 2}, core.Point{X: 1, Y: 1}, 80, 600))
	after, _ := s.Source()
	assert.NotEqual(t, before, after)
	assert.Equal(t, 1, s.Gestures())
}

func TestSession_ForcedError(t *testing.T) {
	s := NewSession(nil)
	s.Errors["ActivateApp"] = errors.New("not installed")
	assert.Error(t, s.ActivateApp("com.fin.whiteswan"))
	assert.Equal(t, 1, s.CallCount("ActivateApp"))
}

func TestRunner_LongestPrefixWins(t *testing.T) {
	r := NewRunner().
		On("adb", "generic", nil).
		On("adb -s emulator-5554 shell dumpsys battery", "level: 87", nil)

	out, err := r.Run(context.Background(), "adb", "-s", "emulator-5554", "shell", "dumpsys", "battery")
	require.NoError(t, err)
	assert.Equal(t, "level: 87", string(out))

	out, _ = r.Run(context.Background(), "adb", "devices")
	assert.Equal(t, "generic", string(out))
	assert.Len(t, r.Matching("battery"), 1)
}

func TestClock_SleepAdvances(t *testing.T) {
	c := NewClock()
	start := c.Now()
	require.NoError(t, c.Sleep(context.Background(), 150*time.Millisecond))
	assert.Equal(t, 150*time.Millisecond, c.Now().Sub(start))
	assert.Equal(t, []time.Duration{150 * time.Millisecond}, c.Sleeps())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, c.Sleep(ctx, time.Second))
	assert.Equal(t, 150*time.Millisecond, c.Elapsed())
}
