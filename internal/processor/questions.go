package processor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"

	"paper-generator/internal/models"
)

// questionRe matches a numeral, a period, optional whitespace and the shortest span up to a '?'
var questionRe = regexp.MustCompile(`(?s)\d+\.\s*(.*?\?)`)

// ExtractQuestions finds numbered questions in raw text, in order of appearance
func ExtractQuestions(text string) []string {
	matches := questionRe.FindAllStringSubmatch(text, -1)

	questions := make([]string, 0, len(matches))
	for _, match := range matches {
		if len(match) < 2 {
			continue
		}
		questions = append(questions, match[1])
	}
	return questions
}

// Tagger annotates a single question with entities and part-of-speech tags
type Tagger interface {
	Annotate(text string) (entities []string, posTags []string, err error)
}

// ProseTagger tags text with the prose English models
type ProseTagger struct{}

// Annotate runs entity recognition and part-of-speech tagging on text
func (ProseTagger) Annotate(text string) ([]string, []string, error) {
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, nil, err
	}

	var entities []string
	for _, ent := range doc.Entities() {
		entities = append(entities, ent.Text)
	}

	var tags []string
	for _, tok := range doc.Tokens() {
		tags = append(tags, tok.Tag)
	}

	return entities, tags, nil
}

// Analyzer extracts and annotates the original questions of a paper
type Analyzer struct {
	Tagger Tagger
}

// NewAnalyzer creates a new question analyzer
func NewAnalyzer(tagger Tagger) *Analyzer {
	return &Analyzer{Tagger: tagger}
}

// Analyze extracts the questions from raw text and annotates each of them.
// A tagging failure on any question fails the whole call.
func (a *Analyzer) Analyze(text string) ([]models.OriginalQuestion, error) {
	extracted := ExtractQuestions(text)

	analyzed := make([]models.OriginalQuestion, 0, len(extracted))
	for i, q := range extracted {
		entities, tags, err := a.Tagger.Annotate(q)
		if err != nil {
			return nil, fmt.Errorf("failed to annotate question %d %q: %w", i+1, truncate(q, 40), err)
		}
		analyzed = append(analyzed, models.OriginalQuestion{
			Text:     q,
			Entities: entities,
			POSTags:  tags,
		})
	}

	return analyzed, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
