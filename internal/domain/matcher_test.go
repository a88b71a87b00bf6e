package domain

import "testing"

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := NewMatcher("en",
		[]string{"typescript", "javascript", "node.js", "web dev"},
		[]string{"nsfw", "adult"},
	)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	return m
}

func TestMatcherKeywords(t *testing.T) {
	m := newTestMatcher(t)

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"exact keyword", "I love TypeScript", true},
		{"plural tolerance", "TypeScripts are fun", true},
		{"no word boundary", "typescriptsomething is not a word", false},
		{"embedded prefix", "sometypescript", false},
		{"case insensitive", "JAVASCRIPT rules", true},
		{"dotted term matched literally", "deployed with node.js today", true},
		{"dot does not match any char", "running nodeXjs today", false},
		{"multi-word term", "getting into web dev this year", true},
		{"no keyword at all", "just a post about cooking", false},
		{"keyword at start", "typescript is great", true},
		{"keyword at end", "i write javascript", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &CandidateRecord{Text: tt.text}
			if got := m.Match(rec); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestMatcherBlocklistPrecedence(t *testing.T) {
	m := newTestMatcher(t)

	rec := &CandidateRecord{Text: "javascript nsfw content"}
	if m.Match(rec) {
		t.Error("post containing a blocklist term must never match")
	}

	// Blocklist terms also require word boundaries.
	rec = &CandidateRecord{Text: "javascript nsfwish content"}
	if !m.Match(rec) {
		t.Error("blocklist term embedded in a larger word should not disqualify")
	}
}

func TestMatcherLanguages(t *testing.T) {
	m := newTestMatcher(t)

	tests := []struct {
		name  string
		langs []string
		want  bool
	}{
		{"no langs field", nil, true},
		{"empty langs", []string{}, true},
		{"matching lang", []string{"en"}, true},
		{"matching lang among others", []string{"fr", "en"}, true},
		{"non-matching lang", []string{"fr"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &CandidateRecord{Text: "typescript", Langs: tt.langs}
			if got := m.Match(rec); got != tt.want {
				t.Errorf("Match(langs=%v) = %v, want %v", tt.langs, got, tt.want)
			}
		})
	}
}

func TestMatcherIsPure(t *testing.T) {
	m := newTestMatcher(t)
	rec := &CandidateRecord{Text: "shipping typescript", Langs: []string{"en"}}

	first := m.Match(rec)
	for i := 0; i < 10; i++ {
		if m.Match(rec) != first {
			t.Fatal("Match is not deterministic for identical input")
		}
	}
}

func TestNewMatcherRequiresKeywords(t *testing.T) {
	if _, err := NewMatcher("en", nil, nil); err == nil {
		t.Error("expected an error for an empty keyword list")
	}
}

func TestMatcherEmptyBlocklist(t *testing.T) {
	m, err := NewMatcher("en", []string{"typescript"}, nil)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	if !m.Match(&CandidateRecord{Text: "typescript"}) {
		t.Error("matcher with no blocklist should still match keywords")
	}
}
