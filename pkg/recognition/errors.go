package recognition

import (
	"time"

	"voiceloop/pkg/platform"
)

// errorPolicy is the per-code handling: the user notice and whether this
// code schedules its own hands-free restart. Codes that indicate a
// persistent device or permission problem never restart from their own
// branch.
type errorPolicy struct {
	notice       string
	silent       bool
	restart      bool
	restartDelay time.Duration
}

func classifyError(code string) errorPolicy {
	switch code {
	case platform.RecErrNoSpeech:
		return errorPolicy{
			notice:       "No speech detected. Try again.",
			restart:      true,
			restartDelay: time.Second,
		}
	case platform.RecErrAborted:
		return errorPolicy{notice: "Listening was aborted."}
	case platform.RecErrAudioCapture:
		return errorPolicy{notice: "No microphone was found, or it is already in use."}
	case platform.RecErrNotAllowed:
		return errorPolicy{notice: "Microphone access was denied."}
	case platform.RecErrServiceNotAllowed:
		return errorPolicy{notice: "The speech recognition service is not allowed here."}
	case platform.RecErrBadGrammar:
		return errorPolicy{notice: "Speech recognition grammar error."}
	case platform.RecErrLanguage:
		return errorPolicy{notice: "The configured speech language is not supported."}
	case platform.RecErrNetwork:
		return errorPolicy{
			notice:       "Network error during speech recognition.",
			restart:      true,
			restartDelay: 3 * time.Second,
		}
	case platform.RecErrCanceled:
		// Expected during intentional stops and interruptions.
		return errorPolicy{silent: true}
	default:
		return errorPolicy{notice: "Speech recognition error: " + code}
	}
}
