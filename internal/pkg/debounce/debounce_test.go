package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTriggerCoalesces(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d := New(fc)

	var calls atomic.Int32
	var last atomic.Value
	for i := 0; i < 5; i++ {
		v := i
		d.Trigger("k", time.Second, func() {
			calls.Add(1)
			last.Store(v)
		})
		fc.Advance(500 * time.Millisecond)
	}
	assert.Equal(t, int32(0), calls.Load())

	fc.Advance(time.Second)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 4, last.Load())
	assert.False(t, d.Pending("k"))
}

func TestFlushRunsSynchronously(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d := New(fc)

	ran := false
	d.Trigger("k", time.Minute, func() { ran = true })
	assert.True(t, d.Pending("k"))
	assert.True(t, d.Flush("k"))
	assert.True(t, ran)
	assert.False(t, d.Flush("k"))

	fc.Advance(2 * time.Minute)
	assert.False(t, d.Pending("k"))
}

func TestZeroWindowRunsImmediately(t *testing.T) {
	d := New(clockwork.NewFakeClock())
	ran := 0
	d.Trigger("k", time.Minute, func() { ran += 10 })
	d.Trigger("k", 0, func() { ran++ })
	assert.Equal(t, 1, ran)
	assert.False(t, d.Pending("k"))
}

func TestCancelAndStop(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d := New(fc)

	var calls atomic.Int32
	d.Trigger("a", time.Second, func() { calls.Add(1) })
	d.Trigger("b", time.Second, func() { calls.Add(1) })
	assert.True(t, d.Cancel("a"))
	assert.False(t, d.Cancel("a"))

	d.Stop()
	d.Trigger("c", time.Second, func() { calls.Add(1) })
	fc.Advance(time.Hour)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestFlushAll(t *testing.T) {
	d := New(clockwork.NewFakeClock())
	n := 0
	d.Trigger("a", time.Second, func() { n++ })
	d.Trigger("b", time.Second, func() { n++ })
	assert.Equal(t, 2, d.FlushAll())
	assert.Equal(t, 2, n)
	assert.Empty(t, d.Keys())
}
