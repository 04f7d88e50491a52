package quality

import (
	"testing"

	"curator/internal/core"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"curly double quotes", "“fast”", `"fast"`},
		{"curly single quotes", "it’s ‘real’", "it's 'real'"},
		{"ellipsis", "wait…", "wait..."},
		{"em dash", "speed—and trust", "speed - and trust"},
		{"en dash", "2020–2025", "2020-2025"},
		{"bullet", "• item", "- item"},
		{"emoji stripped", "Ship it \U0001F680 now", "Ship it  now"},
		{"emoji with variation selector", "Done \u2705\ufe0f", "Done "},
		{"plain text untouched", "Plain - text \"ok\"", "Plain - text \"ok\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"---\ntitle: “Hi”\n---\n\nA—B… • \U0001F525 ☕",
		"already clean text - with \"quotes\"...",
		"——……",
	}
	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "input %q", in)
	}
}

func FuzzClean(f *testing.F) {
	for _, seed := range []string{
		"",
		"---\ntitle: “Hi”\n---\n\nA—B… • \U0001F525 ☕",
		"it’s ‘real’ – \u2764\ufe0f",
		"——……",
		"\xe2\U0001F525\x80\x94",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, in string) {
		once := Clean(in)
		if twice := Clean(once); twice != once {
			t.Fatalf("Clean is not idempotent for %q: %q then %q", in, once, twice)
		}
		if found := findSmartPunctuation(once); len(found) > 0 {
			t.Fatalf("smart punctuation %q left in %q", found, once)
		}
		if found := findEmoji(once); len(found) > 0 {
			t.Fatalf("emoji %q left in %q", found, once)
		}
	})
}

func TestCleanClearsGlyphErrors(t *testing.T) {
	text := doc("title: It’s fast\nstatus: draft\n", words(120)+" — \U0001F680 …")
	before := Check(DefaultRules(core.KindLongForm), text)
	assert.False(t, before.IsValid)

	after := Check(DefaultRules(core.KindLongForm), Clean(text))
	assert.True(t, after.IsValid, "errors: %v", after.Errors)
}
