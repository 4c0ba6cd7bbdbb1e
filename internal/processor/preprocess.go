package processor

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

//go:embed stopwords_en.txt
var englishStopwords string

var (
	pageNumberLineRe = regexp.MustCompile(`(?m)^[ \t\d]+$`)
	hyphenWrapRe     = regexp.MustCompile(`(\w+)-[ \t]*\r?\n[ \t]*(\w+)`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
	numberingRe      = regexp.MustCompile(`\d+\.|\(|\)`)
)

// SentenceSplitter splits cleaned text into sentences
type SentenceSplitter interface {
	Split(text string) []string
}

// WordTokenizer splits a sentence into word tokens
type WordTokenizer interface {
	Tokenize(sentence string) []string
}

// PunktSplitter detects sentence boundaries with the English punkt model
type PunktSplitter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

// NewPunktSplitter loads the bundled English training data
func NewPunktSplitter() (*PunktSplitter, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load sentence tokenizer: %w", err)
	}
	return &PunktSplitter{tokenizer: tokenizer}, nil
}

// Split returns the sentences of text in source order
func (s *PunktSplitter) Split(text string) []string {
	var out []string
	for _, sentence := range s.tokenizer.Tokenize(text) {
		trimmed := strings.TrimSpace(sentence.Text)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// UnicodeWordTokenizer segments words on Unicode word boundaries
type UnicodeWordTokenizer struct{}

// Tokenize returns every segment of the sentence, punctuation and spaces included
func (UnicodeWordTokenizer) Tokenize(sentence string) []string {
	var tokens []string
	segments := words.FromString(sentence)
	for segments.Next() {
		tokens = append(tokens, segments.Value())
	}
	return tokens
}

// Preprocessor turns raw extracted text into stopword-filtered token sequences
type Preprocessor struct {
	Splitter  SentenceSplitter
	Tokenizer WordTokenizer
	Stopwords map[string]struct{}
	// DropEmptySentences removes sentences whose tokens were all filtered out
	DropEmptySentences bool
}

// NewPreprocessor creates a preprocessor with the English stopword list
func NewPreprocessor(splitter SentenceSplitter, tokenizer WordTokenizer) *Preprocessor {
	return &Preprocessor{
		Splitter:  splitter,
		Tokenizer: tokenizer,
		Stopwords: EnglishStopwords(),
	}
}

// EnglishStopwords returns a fresh copy of the English stopword set
func EnglishStopwords() map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Split(englishStopwords, "\n") {
		w = strings.TrimSpace(w)
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// Clean applies the text-level cleanup steps and returns a single line of text
func (p *Preprocessor) Clean(text string) string {
	// Page numbers
	text = pageNumberLineRe.ReplaceAllString(text, "")

	// Line-wrapped words
	text = hyphenWrapRe.ReplaceAllString(text, "$1$2")

	text = normalizeWhitespace(text)

	// Numbering and parentheses
	text = numberingRe.ReplaceAllString(text, "")

	return normalizeWhitespace(text)
}

// Process returns one token sequence per sentence, in source order
func (p *Preprocessor) Process(text string) []string {
	cleaned := p.Clean(text)
	if cleaned == "" {
		return nil
	}

	var out []string
	for _, sentence := range p.Splitter.Split(cleaned) {
		tokens := p.filterTokens(p.Tokenizer.Tokenize(strings.ToLower(sentence)))
		if len(tokens) == 0 && p.DropEmptySentences {
			continue
		}
		out = append(out, strings.Join(tokens, " "))
	}
	return out
}

func (p *Preprocessor) filterTokens(tokens []string) []string {
	var kept []string
	for _, tok := range tokens {
		if !isAlnum(tok) {
			continue
		}
		if _, stop := p.Stopwords[tok]; stop {
			continue
		}
		kept = append(kept, tok)
	}
	return kept
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// normalizeWhitespace collapses whitespace runs to a single space
func normalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}
