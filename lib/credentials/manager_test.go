package credentials

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingGenerator returns token-1, token-2, ... and fails on the calls
// listed in failOn
type countingGenerator struct {
	calls  atomic.Int32
	failOn map[int32]bool
}

func (g *countingGenerator) GenerateToken(context.Context) (string, error) {
	n := g.calls.Add(1)
	if g.failOn[n] {
		return "", errors.New("sts unavailable")
	}
	return fmt.Sprintf("token-%d", n), nil
}

func TestInitialToken(t *testing.T) {
	gen := &countingGenerator{}
	m, err := NewManager(context.Background(), gen)
	require.NoError(t, err)

	assert.Equal(t, "token-1", m.Token())
	assert.Equal(t, DefaultRefreshInterval, m.Interval())
}

func TestInitialTokenFailure(t *testing.T) {
	gen := &countingGenerator{failOn: map[int32]bool{1: true}}
	_, err := NewManager(context.Background(), gen)
	assert.Error(t, err)
}

func TestRefreshOnInterval(t *testing.T) {
	mock := clock.NewMock()
	gen := &countingGenerator{}
	m, err := NewManager(context.Background(), gen, WithClock(mock), WithRefreshInterval(time.Minute))
	require.NoError(t, err)

	m.Start()
	defer m.Stop(context.Background())

	// no immediate refresh on start
	mock.Add(59 * time.Second)
	assert.Equal(t, "token-1", m.Token())

	mock.Add(time.Second)
	require.Eventually(t, func() bool { return m.Token() == "token-2" }, time.Second, time.Millisecond)

	mock.Add(time.Minute)
	require.Eventually(t, func() bool { return m.Token() == "token-3" }, time.Second, time.Millisecond)
}

func TestFailedRefreshKeepsToken(t *testing.T) {
	mock := clock.NewMock()
	gen := &countingGenerator{failOn: map[int32]bool{2: true}}
	m, err := NewManager(context.Background(), gen, WithClock(mock), WithRefreshInterval(time.Minute))
	require.NoError(t, err)

	m.Start()
	defer m.Stop(context.Background())

	mock.Add(time.Minute)
	require.Eventually(t, func() bool { return gen.calls.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, "token-1", m.Token())

	// retried on the next tick
	mock.Add(time.Minute)
	require.Eventually(t, func() bool { return m.Token() == "token-3" }, time.Second, time.Millisecond)
}

func TestManualRefresh(t *testing.T) {
	gen := &countingGenerator{failOn: map[int32]bool{3: true}}
	m, err := NewManager(context.Background(), gen)
	require.NoError(t, err)

	require.NoError(t, m.Refresh(context.Background()))
	assert.Equal(t, "token-2", m.Token())

	assert.Error(t, m.Refresh(context.Background()))
	assert.Equal(t, "token-2", m.Token())
}

func TestStartStop(t *testing.T) {
	mock := clock.NewMock()
	gen := &countingGenerator{}
	m, err := NewManager(context.Background(), gen, WithClock(mock))
	require.NoError(t, err)

	// stopping a manager that never started is fine
	require.NoError(t, m.Stop(context.Background()))

	m.Start()
	m.Start()
	require.NoError(t, m.Stop(context.Background()))

	// no refresh after stop
	mock.Add(DefaultRefreshInterval)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), gen.calls.Load())

	// a stopped manager can be started again
	m.Start()
	mock.Add(DefaultRefreshInterval)
	require.Eventually(t, func() bool { return m.Token() == "token-2" }, time.Second, time.Millisecond)
	require.NoError(t, m.Stop(context.Background()))
}
