package tts

import (
	"regexp"
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

var (
	disallowedRE = regexp.MustCompile(`[^a-zA-Z0-9 \t\r\n.,!?;:'"()-]+`)
	whitespaceRE = regexp.MustCompile(`\s+`)

	tokenizerOnce sync.Once
	tokenizer     *sentences.DefaultSentenceTokenizer
)

// Sanitize reduces raw chat text to something the synthesizer handles well:
// the text is split into sentences, each sentence is stripped down to a
// constrained character set with collapsed whitespace, and empty sentences
// are dropped. The result may be empty, which callers treat as "nothing
// speakable".
func Sanitize(text string) string {
	tokenizerOnce.Do(func() {
		tokenizer, _ = english.NewSentenceTokenizer(nil)
	})

	var parts []string
	if tokenizer != nil {
		for _, s := range tokenizer.Tokenize(text) {
			if cleaned := cleanSentence(s.Text); cleaned != "" {
				parts = append(parts, cleaned)
			}
		}
	} else if cleaned := cleanSentence(text); cleaned != "" {
		parts = append(parts, cleaned)
	}
	return strings.Join(parts, " ")
}

func cleanSentence(s string) string {
	s = disallowedRE.ReplaceAllString(s, " ")
	s = whitespaceRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
