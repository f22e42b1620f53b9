package host

import (
	"sync"
	"time"
)

// Host is the surface the host application provides to the voice
// subsystems: message submission, user notices, and the shared
// expecting-a-reply flag the TTS poller keys off.
type Host interface {
	// SendMessage submits the current input-field content through the chat
	// pipeline.
	SendMessage() error

	// ShowToast surfaces a transient user notice.
	ShowToast(message string, duration time.Duration)

	// ExpectingResponse reports whether an assistant reply is pending.
	ExpectingResponse() bool

	// SetExpectingResponse records whether an assistant reply is pending.
	SetExpectingResponse(bool)
}

// Input is the chat text input field. Writes made by speech recognition are
// flagged as voice input so interruption detection can tell them apart from
// user typing.
type Input interface {
	Value() string
	SetValue(text string, voiceInput bool)
	// VoiceInput reports whether the last write was programmatic.
	VoiceInput() bool
}

// MemoryInput is an in-process Input used when no UI surface is attached
// and in tests.
type MemoryInput struct {
	mu         sync.Mutex
	value      string
	voiceInput bool
}

func (i *MemoryInput) Value() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.value
}

func (i *MemoryInput) SetValue(text string, voiceInput bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.value = text
	i.voiceInput = voiceInput
}

func (i *MemoryInput) VoiceInput() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.voiceInput
}
