package soundfx

import (
	"regexp"
	"strings"
)

// Trigger actions embedded in chat text.
const (
	ActionStart  = "start"
	ActionVolume = "volume"
	ActionStop   = "stop"
)

// Trigger sources. Keys are tagged per source so a trigger in the user text
// and the same trigger in the assistant text fire independently.
const (
	SourceUser      = "user"
	SourceAssistant = "assistant"
)

var triggerRE = regexp.MustCompile(`(?i)sound(start|volume|stop):?(\S*)`)

// Trigger is one matched token.
type Trigger struct {
	Action string
	Value  string
	Source string
	// Key is the dedup key: source-tagged literal token. The same literal
	// token never replays until its source text changes.
	Key string
}

// Extract scans text for trigger tokens and tags each with its source.
func Extract(text, source string) []Trigger {
	matches := triggerRE.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]Trigger, 0, len(matches))
	for _, m := range matches {
		out = append(out, Trigger{
			Action: normalizeAction(m[1]),
			Value:  m[2],
			Source: source,
			Key:    source + ":" + m[0],
		})
	}
	return out
}

func normalizeAction(a string) string {
	switch {
	case strings.EqualFold(a, ActionStart):
		return ActionStart
	case strings.EqualFold(a, ActionVolume):
		return ActionVolume
	default:
		return ActionStop
	}
}
