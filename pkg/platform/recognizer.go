package platform

import "errors"

// ErrUnsupported is returned when the platform has no speech recognition
// capability at all.
var ErrUnsupported = errors.New("platform: speech recognition not supported")

// Recognition error codes, matching the engine's taxonomy.
const (
	RecErrNoSpeech          = "no-speech"
	RecErrAborted           = "aborted"
	RecErrAudioCapture      = "audio-capture"
	RecErrNetwork           = "network"
	RecErrNotAllowed        = "not-allowed"
	RecErrServiceNotAllowed = "service-not-allowed"
	RecErrBadGrammar        = "bad-grammar"
	RecErrLanguage          = "language-not-supported"
	RecErrCanceled          = "canceled"
)

// RecognizerOptions configures a recognition session.
type RecognizerOptions struct {
	Continuous     bool
	InterimResults bool
	Language       string
}

// Recognizer is the speech recognition port. Start opens the microphone;
// transcripts, the end of the session, and errors arrive on the registered
// callbacks. Stop requests a graceful end (a final result may still be
// delivered); Abort drops the session immediately.
type Recognizer interface {
	SetOptions(RecognizerOptions)
	Start() error
	Stop()
	Abort()

	OnResult(fn func(transcript string, final bool))
	OnEnd(fn func())
	OnError(fn func(code string))
}
