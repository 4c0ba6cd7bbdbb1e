// Package ranking turns raw generated text into a filtered, ranked and topic-diverse question list.
package ranking

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"paper-generator/internal/models"
	"paper-generator/internal/topics"
)

// PostProcess drops any preamble before the first capital letter, capitalizes the
// remainder and makes sure it ends with a question mark.
// Text without any capital letter is kept whole; content before a mid-sentence
// capital is lost, which is a known quality limitation.
func PostProcess(raw string) string {
	q := strings.TrimSpace(raw)

	if i := strings.IndexFunc(q, unicode.IsUpper); i > 0 {
		q = q[i:]
	}

	if r, size := utf8.DecodeRuneInString(q); size > 0 && unicode.IsLower(r) {
		q = string(unicode.ToUpper(r)) + q[size:]
	}

	if !strings.HasSuffix(q, "?") {
		q += "?"
	}
	return q
}

// WellFormed reports whether q is non-empty, starts with an uppercase letter and ends with '?'
func WellFormed(q string) bool {
	r, size := utf8.DecodeRuneInString(q)
	return size > 0 && unicode.IsUpper(r) && strings.HasSuffix(q, "?")
}

// Filter post-processes candidates and keeps well-formed, long enough, unique questions
// in their original order
func Filter(candidates []string, minWords int) []string {
	seen := make(map[string]struct{})
	var kept []string

	for _, c := range candidates {
		q := PostProcess(c)
		if len(strings.Fields(q)) < minWords || !WellFormed(q) {
			continue
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		kept = append(kept, q)
	}
	return kept
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

// Similarity is the Jaccard similarity of the lowercase word sets of a and b
func Similarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}

	// union = |A| + |B| - intersection
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// Score is the similarity of q to the most similar original question
func Score(q string, originals []models.OriginalQuestion) float64 {
	best := 0.0
	for _, o := range originals {
		best = max(best, Similarity(q, o.Text))
	}
	return best
}

// Scored is a question with its ranking score
type Scored struct {
	Question string
	Score    float64
}

// Rank orders questions by descending score; ties keep their input order
func Rank(questions []string, originals []models.OriginalQuestion) []Scored {
	ranked := make([]Scored, len(questions))
	for i, q := range questions {
		ranked[i] = Scored{Question: q, Score: Score(q, originals)}
	}
	slices.SortStableFunc(ranked, func(a, b Scored) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return ranked
}

// SelectDiverse walks questions in order and accepts a question only when it mentions a
// topic keyword that no accepted question has covered yet, stopping at limit.
func SelectDiverse(questions []string, topicList []models.Topic, limit int) []string {
	var keywords []string
	for _, t := range topicList {
		keywords = append(keywords, topics.Keywords(t.Text)...)
	}

	covered := make(map[string]struct{})
	var selected []string

	for _, q := range questions {
		if len(selected) >= limit {
			break
		}

		lower := strings.ToLower(q)
		var fresh []string
		for _, kw := range keywords {
			if _, done := covered[kw]; done {
				continue
			}
			if strings.Contains(lower, kw) {
				fresh = append(fresh, kw)
			}
		}
		if len(fresh) == 0 {
			continue
		}

		for _, kw := range fresh {
			covered[kw] = struct{}{}
		}
		selected = append(selected, q)
	}
	return selected
}

// Engine applies the filter and rank stages enabled by a variant
type Engine struct {
	Variant models.Variant
}

// NewEngine creates a filter/rank engine for the given variant
func NewEngine(variant models.Variant) *Engine {
	return &Engine{Variant: variant}
}

// Select returns at most len(originals) questions
func (e *Engine) Select(candidates []string, originals []models.OriginalQuestion, topicList []models.Topic) []string {
	limit := len(originals)
	questions := Filter(candidates, e.Variant.MinWordCount)

	if e.Variant.EnableSimilarityRanking {
		ranked := Rank(questions, originals)
		questions = make([]string, len(ranked))
		for i, r := range ranked {
			questions[i] = r.Question
		}
	}

	if e.Variant.EnableTopicDiversity {
		return SelectDiverse(questions, topicList, limit)
	}

	if len(questions) > limit {
		questions = questions[:limit]
	}
	return questions
}
