package playback

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubPlayer struct {
	paused      bool
	currentTime float64
	seeks       []float64
}

func (p *stubPlayer) Play()                { p.paused = false }
func (p *stubPlayer) Pause()               { p.paused = true }
func (p *stubPlayer) CurrentTime() float64 { return p.currentTime }
func (p *stubPlayer) SetCurrentTime(seconds float64) {
	p.currentTime = seconds
	p.seeks = append(p.seeks, seconds)
}
func (p *stubPlayer) Subscribe(func(State)) func() { return func() {} }

func TestCorrectorAppliesRemotePauseState(t *testing.T) {
	player := &stubPlayer{paused: true}
	corrector := NewCorrector(player, 2.0, discardLogger())

	corrector.ApplyPlayerState(false)
	assert.False(t, player.paused)

	corrector.ApplyPlayerState(true)
	assert.True(t, player.paused)
}

func TestCorrectorToleranceWindow(t *testing.T) {
	tests := []struct {
		name      string
		local     float64
		remote    float64
		wantSeeks []float64
	}{
		{name: "exactly at tolerance", local: 10.0, remote: 12.0, wantSeeks: nil},
		{name: "within tolerance", local: 10.0, remote: 11.9, wantSeeks: nil},
		{name: "ahead of remote", local: 15.0, remote: 10.0, wantSeeks: []float64{10.0}},
		{name: "behind remote", local: 10.0, remote: 30.0, wantSeeks: []float64{30.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := &stubPlayer{currentTime: tt.local}
			corrector := NewCorrector(player, 2.0, discardLogger())

			corrector.ApplyTimestamp(tt.remote, false)
			assert.Equal(t, tt.wantSeeks, player.seeks)
		})
	}
}

func TestCorrectorSkipsSeekingEvents(t *testing.T) {
	player := &stubPlayer{currentTime: 0}
	corrector := NewCorrector(player, 2.0, discardLogger())

	corrector.ApplyTimestamp(500.0, true)
	assert.Empty(t, player.seeks)
}

func TestCorrectorDefaultsTolerance(t *testing.T) {
	player := &stubPlayer{currentTime: 10.0}
	corrector := NewCorrector(player, 0, discardLogger())

	corrector.ApplyTimestamp(11.5, false)
	assert.Empty(t, player.seeks)
}

func TestHeadlessAdvancesWhilePlaying(t *testing.T) {
	h := NewHeadless()
	current := time.Unix(1000, 0)
	h.now = func() time.Time { return current }

	assert.Equal(t, 0.0, h.CurrentTime())

	h.Play()
	current = current.Add(5 * time.Second)
	assert.Equal(t, 5.0, h.CurrentTime())

	h.Pause()
	current = current.Add(10 * time.Second)
	assert.Equal(t, 5.0, h.CurrentTime(), "position must not advance while paused")
}

func TestHeadlessSetCurrentTimeReanchors(t *testing.T) {
	h := NewHeadless()
	current := time.Unix(1000, 0)
	h.now = func() time.Time { return current }

	h.Play()
	current = current.Add(3 * time.Second)
	h.SetCurrentTime(100)
	current = current.Add(2 * time.Second)

	assert.Equal(t, 102.0, h.CurrentTime())
}

func TestHeadlessNotifiesOnTransitionsOnly(t *testing.T) {
	h := NewHeadless()

	var states []State
	unsubscribe := h.Subscribe(func(st State) { states = append(states, st) })

	h.Pause() // already paused
	assert.Empty(t, states)

	h.Play()
	h.Play() // no transition
	h.Pause()
	require.Len(t, states, 2)
	assert.False(t, states[0].Paused)
	assert.True(t, states[1].Paused)

	h.SetCurrentTime(50)
	assert.Len(t, states, 2, "seeks are not reported to subscribers")

	unsubscribe()
	h.Play()
	assert.Len(t, states, 2)
}
