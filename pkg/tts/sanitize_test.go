package tts

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text passes through",
			in:   "Hello there. How are you?",
			want: "Hello there. How are you?",
		},
		{
			name: "disallowed characters are stripped",
			in:   "Look at this → arrow & <b>markup</b>",
			want: `Look at this arrow b markup b`,
		},
		{
			name: "whitespace collapses",
			in:   "too    many \t spaces\n\nhere",
			want: "too many spaces here",
		},
		{
			name: "emoji-only input cleans to nothing",
			in:   "\U0001F600\U0001F389",
			want: "",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
		{
			name: "punctuation survives",
			in:   `She said: "wait, really?!"`,
			want: `She said: "wait, really?!"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
