// Package platform defines the ports for the speech and audio primitives
// voiceloop sequences: a speech synthesizer, a speech recognizer, and a
// sound-clip player. Real implementations bridge to a connected browser or
// to the local speaker; mocks back the tests.
package platform

// Synthesizer error codes mirrored from the underlying speech engine.
// Canceled and interrupted arrive during intentional cancellation and are
// not surfaced to the user.
const (
	SynthErrCanceled    = "canceled"
	SynthErrInterrupted = "interrupted"
)

// Utterance is one piece of speech handed to the synthesizer, with the
// lifecycle callbacks the engine fires as it plays.
type Utterance struct {
	Text  string
	Voice string // exact voice name; empty selects the platform default
	Rate  float64
	Pitch float64

	OnStart  func()
	OnEnd    func()
	OnError  func(code string)
	OnPause  func()
	OnResume func()
}

// Synthesizer is the speech synthesis port. Speak is non-blocking; progress
// is reported through the utterance callbacks. Speaking and Pending report
// live engine state and are the authority when cached flags disagree.
type Synthesizer interface {
	Speak(u *Utterance)
	Cancel()
	Speaking() bool
	Pending() bool
	VoiceNames() []string
}
