package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher decides whether a candidate post belongs in the feed. It is built
// once at startup from the configured terms and is safe for concurrent use.
type Matcher struct {
	lang    string
	keyword *regexp.Regexp
	block   *regexp.Regexp
}

// NewMatcher compiles the keyword and blocklist patterns. Keywords match at
// word boundaries with an optional trailing "s" for plural tolerance;
// blocklist terms match at word boundaries exactly. Terms are treated as
// literals, so keywords like "node.js" behave as expected.
func NewMatcher(lang string, keywords, blocklist []string) (*Matcher, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("at least one keyword is required")
	}

	keyword, err := compileTerms(keywords, `s?\b`)
	if err != nil {
		return nil, fmt.Errorf("compile keyword pattern: %w", err)
	}

	var block *regexp.Regexp
	if len(blocklist) > 0 {
		block, err = compileTerms(blocklist, `\b`)
		if err != nil {
			return nil, fmt.Errorf("compile blocklist pattern: %w", err)
		}
	}

	return &Matcher{
		lang:    lang,
		keyword: keyword,
		block:   block,
	}, nil
}

// Match reports whether the candidate passes the language, keyword, and
// blocklist rules. It is pure: no state, no side effects.
func (m *Matcher) Match(rec *CandidateRecord) bool {
	return m.hasLang(rec) && m.hasKeyword(rec) && !m.hasBlock(rec)
}

// hasLang passes posts with no language metadata; the filter only rejects
// posts explicitly tagged with other languages.
func (m *Matcher) hasLang(rec *CandidateRecord) bool {
	if len(rec.Langs) == 0 {
		return true
	}
	for _, l := range rec.Langs {
		if l == m.lang {
			return true
		}
	}
	return false
}

func (m *Matcher) hasKeyword(rec *CandidateRecord) bool {
	return m.keyword.MatchString(strings.ToLower(rec.Text))
}

func (m *Matcher) hasBlock(rec *CandidateRecord) bool {
	return m.block != nil && m.block.MatchString(strings.ToLower(rec.Text))
}

func compileTerms(terms []string, suffix string) (*regexp.Regexp, error) {
	escaped := make([]string, len(terms))
	for i, t := range terms {
		escaped[i] = regexp.QuoteMeta(t)
	}
	return regexp.Compile(`\b(?:` + strings.Join(escaped, "|") + `)` + suffix)
}
