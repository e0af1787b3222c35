// internal/sim/session_test.go
package sim

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// countingHost enregistre les appels pour vérifier le déroulement du run
type countingHost struct {
	mu         sync.Mutex
	updates    int
	closeCalls int
	running    bool
	stage      string
	timeline   *clockTimeline
}

func newCountingHost() *countingHost {
	return &countingHost{running: true, timeline: &clockTimeline{}}
}

func (h *countingHost) OpenStage(url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stage = url
	return nil
}

func (h *countingHost) Timeline() Timeline {
	return h.timeline
}

func (h *countingHost) Update() error {
	h.mu.Lock()
	h.updates++
	h.mu.Unlock()
	time.Sleep(time.Millisecond)
	return nil
}

func (h *countingHost) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

func (h *countingHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeCalls++
	h.running = false
	return nil
}

func (h *countingHost) updateCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.updates
}

func (h *countingHost) closeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeCalls
}

func TestSetupMissingSceneContinues(t *testing.T) {
	host := newCountingHost()
	s := NewSession(host, quietLogger())

	err := s.Setup("/nonexistent/scene.usd")
	require.NoError(t, err)
	assert.Empty(t, s.Scene(), "missing scene should leave the stage empty")
}

func TestSetupEmptySceneContinues(t *testing.T) {
	host := newCountingHost()
	s := NewSession(host, quietLogger())

	require.NoError(t, s.Setup(""))
	assert.Empty(t, s.Scene())
}

func TestSetupLoadsExistingScene(t *testing.T) {
	scene := filepath.Join(t.TempDir(), "warehouse.usd")
	require.NoError(t, os.WriteFile(scene, []byte("#usda 1.0\n"), 0644))

	host := newCountingHost()
	s := NewSession(host, quietLogger())

	require.NoError(t, s.Setup(scene))
	assert.Equal(t, scene, s.Scene())
	assert.Equal(t, scene, host.stage)
}

func TestStartPlayback(t *testing.T) {
	host := newCountingHost()
	s := NewSession(host, quietLogger())

	require.NoError(t, s.StartPlayback())
	assert.True(t, host.timeline.Playing())
}

// Le drapeau abaissé doit arrêter la boucle et ne jamais remonter
func TestRunStopsWhenFlagCleared(t *testing.T) {
	host := newCountingHost()
	s := NewSession(host, quietLogger())

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.RequestStop()
	}()

	err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Stopping())
	assert.Greater(t, host.updateCount(), 0)

	// Une fois abaissé, le drapeau reste abaissé: la boucle ne redémarre pas
	countAfterStop := host.updateCount()
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, countAfterStop, host.updateCount())
	assert.True(t, s.Stopping())
}

func TestRunStopsWhenHostStops(t *testing.T) {
	host := newCountingHost()
	s := NewSession(host, quietLogger())

	go func() {
		time.Sleep(20 * time.Millisecond)
		host.Close()
	}()

	require.NoError(t, s.Run(context.Background()))
	assert.False(t, s.Stopping(), "host exit should not clear the stop flag")
}

func TestRunCancelledContext(t *testing.T) {
	host := newCountingHost()
	s := NewSession(host, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// Shutdown ne doit jamais fermer le handle de l'hôte deux fois
func TestShutdownIdempotent(t *testing.T) {
	host := newCountingHost()
	s := NewSession(host, quietLogger())

	require.NoError(t, s.Shutdown())
	require.NoError(t, s.Shutdown())
	require.NoError(t, s.Shutdown())

	assert.Equal(t, 1, host.closeCount())
	assert.True(t, s.Stopping())
}

func TestShutdownStopsRunLoop(t *testing.T) {
	host := newCountingHost()
	s := NewSession(host, quietLogger())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Shutdown())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run loop did not stop after shutdown")
	}
}

func TestClockHostLifecycle(t *testing.T) {
	host := NewClockHost(HostOptions{Tick: time.Millisecond})

	require.NoError(t, host.OpenStage("/scenes/lab.usd"))
	assert.Equal(t, "/scenes/lab.usd", host.Stage())
	assert.True(t, host.IsRunning())

	require.NoError(t, host.Timeline().Play())
	require.NoError(t, host.Update())

	require.NoError(t, host.Close())
	assert.False(t, host.IsRunning())
	assert.Error(t, host.Update())
	assert.Error(t, host.Close(), "closing twice should fail at the host level")
}
