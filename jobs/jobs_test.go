package jobs

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestRunner() *Runner {
	return New(zap.NewNop())
}

func TestAddTickerFires(t *testing.T) {
	r := newTestRunner()
	defer r.Stop()

	var count int64
	r.AddTicker("tick", 20*time.Millisecond, func() {
		atomic.AddInt64(&count, 1)
	})

	time.Sleep(110 * time.Millisecond)
	got := atomic.LoadInt64(&count)
	assert.GreaterOrEqual(t, got, int64(3))
}

func TestAddTickerReplaces(t *testing.T) {
	r := newTestRunner()
	defer r.Stop()

	var first, second int64
	r.AddTicker("job", 20*time.Millisecond, func() {
		atomic.AddInt64(&first, 1)
	})
	r.AddTicker("job", 20*time.Millisecond, func() {
		atomic.AddInt64(&second, 1)
	})

	time.Sleep(110 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt64(&first))
	assert.GreaterOrEqual(t, atomic.LoadInt64(&second), int64(3))
	assert.Equal(t, []string{"job"}, r.ListTickers())
}

func TestRemoveStopsTicker(t *testing.T) {
	r := newTestRunner()
	defer r.Stop()

	var count int64
	r.AddTicker("doomed", 20*time.Millisecond, func() {
		atomic.AddInt64(&count, 1)
	})
	r.Remove("doomed")

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt64(&count))
	assert.Empty(t, r.ListTickers())
}

func TestAddDelayFiresOnce(t *testing.T) {
	r := newTestRunner()
	defer r.Stop()

	var count int64
	r.AddDelay("once", 20*time.Millisecond, func() {
		atomic.AddInt64(&count, 1)
	})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&count))
}

func TestAddDelayReplaceCancelsOld(t *testing.T) {
	r := newTestRunner()
	defer r.Stop()

	var first, second int64
	r.AddDelay("job", 30*time.Millisecond, func() {
		atomic.AddInt64(&first, 1)
	})
	r.AddDelay("job", 30*time.Millisecond, func() {
		atomic.AddInt64(&second, 1)
	})

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt64(&first))
	assert.Equal(t, int64(1), atomic.LoadInt64(&second))
}

func TestPanicInTaskIsRecovered(t *testing.T) {
	r := newTestRunner()
	defer r.Stop()

	var after int64
	r.AddTicker("panicky", 20*time.Millisecond, func() {
		panic("boom")
	})
	r.AddTicker("healthy", 20*time.Millisecond, func() {
		atomic.AddInt64(&after, 1)
	})

	time.Sleep(110 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&after), int64(2))
}

func TestStopHaltsAllTickers(t *testing.T) {
	r := newTestRunner()

	var count int64
	r.AddTicker("tick", 20*time.Millisecond, func() {
		atomic.AddInt64(&count, 1)
	})
	r.Stop()

	// Allow the worker goroutine to observe the stop signal.
	time.Sleep(30 * time.Millisecond)
	before := atomic.LoadInt64(&count)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, before, atomic.LoadInt64(&count))
}
