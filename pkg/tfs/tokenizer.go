package tfs

import (
	"regexp"
	"strings"
	"unicode"
)

// Tokenizer splits text into index terms. The tokenizer is part of the
// persisted schema (spec.md §4.2) — changing it for an existing index is
// a breaking change, which is why Index records the tokenizer's Name in
// its snapshot header.
type Tokenizer interface {
	Tokenize(text string) []string
	Name() string
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// DefaultTokenizer is the lowercase Unicode-word splitter spec.md §4.2
// names as the default, generalized with the teacher's
// camelCase/snake_case identifier splitting (internal/store/tokenizer.go)
// since knowledge-graph text frequently embeds identifiers and codes.
type DefaultTokenizer struct {
	stopWords map[string]struct{}
}

// NewDefaultTokenizer builds a DefaultTokenizer with the given stop words.
func NewDefaultTokenizer(stopWords []string) *DefaultTokenizer {
	m := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		m[strings.ToLower(w)] = struct{}{}
	}
	return &DefaultTokenizer{stopWords: m}
}

func (t *DefaultTokenizer) Name() string { return "default" }

func (t *DefaultTokenizer) Tokenize(text string) []string {
	words := wordPattern.FindAllString(text, -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		for _, sub := range splitIdentifier(w) {
			lower := strings.ToLower(sub)
			if len(lower) < 1 {
				continue
			}
			if _, stop := t.stopWords[lower]; stop {
				continue
			}
			out = append(out, lower)
		}
	}
	return out
}

// splitIdentifier splits snake_case then camelCase/PascalCase, mirroring
// the teacher's SplitCodeToken/SplitCamelCase.
func splitIdentifier(token string) []string {
	if strings.Contains(token, "_") {
		var out []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				out = append(out, splitCamelCase(part)...)
			}
		}
		return out
	}
	return splitCamelCase(token)
}

func splitCamelCase(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	var current strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// CJKTokenizer is the optional CJK segmenter named in spec.md §4.2: it
// emits character bigrams over runs of CJK script, which is a standard
// cheap substitute for dictionary-based segmentation, and falls back to
// DefaultTokenizer's word splitting for non-CJK runs.
type CJKTokenizer struct {
	fallback *DefaultTokenizer
}

// NewCJKTokenizer builds a CJKTokenizer with the given stop words applied
// to its non-CJK fallback path.
func NewCJKTokenizer(stopWords []string) *CJKTokenizer {
	return &CJKTokenizer{fallback: NewDefaultTokenizer(stopWords)}
}

func (t *CJKTokenizer) Name() string { return "cjk" }

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r)
}

func (t *CJKTokenizer) Tokenize(text string) []string {
	var out []string
	var run []rune
	flushNonCJK := func(s string) {
		out = append(out, t.fallback.Tokenize(s)...)
	}

	var nonCJK strings.Builder
	for _, r := range text {
		if isCJK(r) {
			if nonCJK.Len() > 0 {
				flushNonCJK(nonCJK.String())
				nonCJK.Reset()
			}
			run = append(run, r)
		} else {
			if len(run) > 0 {
				out = append(out, cjkBigrams(run)...)
				run = nil
			}
			nonCJK.WriteRune(r)
		}
	}
	if len(run) > 0 {
		out = append(out, cjkBigrams(run)...)
	}
	if nonCJK.Len() > 0 {
		flushNonCJK(nonCJK.String())
	}
	return out
}

func cjkBigrams(run []rune) []string {
	if len(run) == 1 {
		return []string{string(run)}
	}
	out := make([]string, 0, len(run)-1)
	for i := 0; i+1 < len(run); i++ {
		out = append(out, string(run[i:i+2]))
	}
	return out
}
