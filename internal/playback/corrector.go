package playback

import (
	"log/slog"
	"math"
)

// DefaultDriftTolerance is the position divergence, in seconds, below which
// no correction is applied. The hysteresis avoids micro-seeks from normal
// playback clock skew.
const DefaultDriftTolerance = 2.0

// Corrector reconciles the local player with authoritative pause/seek events
// broadcast by peers.
type Corrector struct {
	player    Player
	tolerance float64
	logger    *slog.Logger
}

func NewCorrector(player Player, tolerance float64, logger *slog.Logger) *Corrector {
	if tolerance <= 0 {
		tolerance = DefaultDriftTolerance
	}

	return &Corrector{
		player:    player,
		tolerance: tolerance,
		logger:    logger,
	}
}

// ApplyPlayerState applies a remote pause/play state unconditionally. A
// client's own echoed state re-applies the value it already has, which the
// player treats as a no-op.
func (c *Corrector) ApplyPlayerState(paused bool) {
	if paused {
		c.player.Pause()
	} else {
		c.player.Play()
	}
}

// ApplyTimestamp compares the local position to the authoritative one and
// seeks only when the divergence exceeds the tolerance. Events flagged as
// seeking are skipped entirely.
func (c *Corrector) ApplyTimestamp(timestamp float64, seeking bool) {
	if seeking {
		return
	}

	current := c.player.CurrentTime()
	if math.Abs(current-timestamp) <= c.tolerance {
		return
	}

	c.logger.Debug("correcting playback drift",
		"local", current,
		"remote", timestamp,
	)
	c.player.SetCurrentTime(timestamp)
}
