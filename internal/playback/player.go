package playback

// State is the observable playback state of a player.
type State struct {
	Paused      bool
	CurrentTime float64
}

// Player is the media-playback component the sync core drives. Real media
// backends implement it; Headless is a clock-driven stand-in.
//
// Subscribe registers a listener for pause/play transitions and returns an
// unsubscribe func. Position changes applied through SetCurrentTime are not
// reported to subscribers, so a remote correction does not echo back out.
type Player interface {
	Play()
	Pause()
	CurrentTime() float64
	SetCurrentTime(seconds float64)
	Subscribe(fn func(State)) func()
}
