package platform

import "errors"

// ErrAutoplayBlocked is returned by Play when the platform refuses playback
// before a user gesture has been observed.
var ErrAutoplayBlocked = errors.New("platform: playback blocked until user interaction")

// Clip is one playable sound effect. Play begins loading and playback
// asynchronously; load failures and natural completion arrive on the
// callbacks. Stop is idempotent and never fires OnEnded.
type Clip interface {
	Play() error
	Stop()
	SetVolume(v float64)

	OnEnded(fn func())
	OnError(fn func(err error))
}

// ClipFactory creates clips for trigger URLs.
type ClipFactory interface {
	NewClip(url string) Clip
}
