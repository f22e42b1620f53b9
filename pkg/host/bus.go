// Package host exposes the collaborators voiceloop consumes from the host
// application: the event bus, the in-flight request registry, the chat
// pipeline, and the input field.
package host

import "sync"

// Event names published and consumed across subsystems.
const (
	EventTTSStart         = "ttsStart"
	EventTTSEnd           = "ttsEnd"
	EventTTSError         = "ttsError"
	EventTTSPause         = "ttsPause"
	EventTTSResume        = "ttsResume"
	EventTTSSkipped       = "ttsSkipped"
	EventRecognitionEnded = "recognitionEnded"
	EventTriggerFired     = "triggerFired"
)

// Handler receives the payload published with an event.
type Handler func(payload any)

// Bus is a synchronous publish/subscribe event bus. Handlers run on the
// publishing goroutine in subscription order.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string][]subscription
}

type subscription struct {
	id int
	fn Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// On subscribes to an event and returns a subscription id for Off.
func (b *Bus) On(event string, fn Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[event] = append(b.subs[event], subscription{id: b.nextID, fn: fn})
	return b.nextID
}

// Off removes a subscription. Unknown ids are ignored.
func (b *Bus) Off(event string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[event]
	for i, s := range subs {
		if s.id == id {
			b.subs[event] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Trigger publishes an event. The handler list is snapshotted so handlers
// may subscribe or unsubscribe during dispatch.
func (b *Bus) Trigger(event string, payload any) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs[event]))
	copy(subs, b.subs[event])
	b.mu.Unlock()
	for _, s := range subs {
		s.fn(payload)
	}
}
