// Package topics infers a fixed number of latent topics from tokenized sentences.
package topics

import (
	"fmt"
	"slices"
	"strings"

	"github.com/james-bowman/nlp"
	"github.com/james-bowman/sparse"
	"golang.org/x/exp/rand"

	"paper-generator/internal/models"
)

const (
	// DefaultSeed seeds the topic model so repeated runs agree
	DefaultSeed = 100
	// DefaultIterations bounds the number of training passes
	DefaultIterations = 200
	// DefaultTopWords is the number of terms kept per topic
	DefaultTopWords = 10
)

// Dictionary maps surface tokens to integer ids in first-seen order
type Dictionary struct {
	ids   map[string]int
	words []string
}

// NewDictionary builds a dictionary over every token of every document
func NewDictionary(docs [][]string) *Dictionary {
	d := &Dictionary{ids: make(map[string]int)}
	for _, doc := range docs {
		for _, tok := range doc {
			if _, ok := d.ids[tok]; !ok {
				d.ids[tok] = len(d.words)
				d.words = append(d.words, tok)
			}
		}
	}
	return d
}

// Len returns the vocabulary size
func (d *Dictionary) Len() int { return len(d.words) }

// Word returns the token with the given id
func (d *Dictionary) Word(id int) string { return d.words[id] }

// BagEntry is one (term id, count) pair of a sparse term-frequency vector
type BagEntry struct {
	ID    int
	Count int
}

// Doc2Bow converts a tokenized document to a sparse term-frequency vector sorted by id.
// Tokens missing from the dictionary are ignored.
func (d *Dictionary) Doc2Bow(doc []string) []BagEntry {
	counts := make(map[int]int)
	for _, tok := range doc {
		if id, ok := d.ids[tok]; ok {
			counts[id]++
		}
	}

	bow := make([]BagEntry, 0, len(counts))
	for id, c := range counts {
		bow = append(bow, BagEntry{ID: id, Count: c})
	}
	slices.SortFunc(bow, func(a, b BagEntry) int { return a.ID - b.ID })
	return bow
}

// Modeler fits an LDA topic model over a term-document matrix
type Modeler struct {
	NumTopics  int
	Seed       uint64
	Iterations int
	TopWords   int
	// Alpha and Eta are the symmetric document-topic and topic-word priors; 0 means 1/NumTopics
	Alpha float64
	Eta   float64
}

// NewModeler creates a modeler with the fixed topic count and seed
func NewModeler() *Modeler {
	return &Modeler{
		NumTopics:  models.TopicCount,
		Seed:       DefaultSeed,
		Iterations: DefaultIterations,
		TopWords:   DefaultTopWords,
	}
}

// Fit builds the dictionary and corpus from the sentences and returns NumTopics topics.
// An empty vocabulary yields NumTopics topics without terms.
func (m *Modeler) Fit(sentences []string) ([]models.Topic, error) {
	if m.NumTopics <= 0 {
		return nil, fmt.Errorf("invalid topic count %d", m.NumTopics)
	}

	docs := make([][]string, len(sentences))
	for i, s := range sentences {
		docs[i] = strings.Fields(s)
	}

	dict := NewDictionary(docs)
	var corpus [][]BagEntry
	for _, doc := range docs {
		if bow := dict.Doc2Bow(doc); len(bow) > 0 {
			corpus = append(corpus, bow)
		}
	}

	topics := make([]models.Topic, m.NumTopics)
	if len(corpus) == 0 {
		for k := range topics {
			topics[k] = models.Topic{ID: k}
		}
		return topics, nil
	}

	phi, err := m.topicWords(corpus, dict.Len())
	if err != nil {
		return nil, fmt.Errorf("failed to fit topic model: %w", err)
	}

	for k := range topics {
		topics[k] = m.describe(k, phi[k], dict)
	}
	return topics, nil
}

// termDocumentMatrix lays the corpus out with one row per term and one column per document
func termDocumentMatrix(corpus [][]BagEntry, vocab int) *sparse.DOK {
	tdm := sparse.NewDOK(vocab, len(corpus))
	for d, bow := range corpus {
		for _, e := range bow {
			tdm.Set(e.ID, d, float64(e.Count))
		}
	}
	return tdm
}

// topicWords fits LDA and returns one normalized word distribution per topic
func (m *Modeler) topicWords(corpus [][]BagEntry, vocab int) ([][]float64, error) {
	k := m.NumTopics
	alpha := m.Alpha
	if alpha <= 0 {
		alpha = 1.0 / float64(k)
	}
	eta := m.Eta
	if eta <= 0 {
		eta = 1.0 / float64(k)
	}

	lda := nlp.NewLatentDirichletAllocation(k)
	lda.Iterations = m.Iterations
	lda.Alpha = alpha
	lda.Eta = eta
	// a single worker keeps seeded runs reproducible
	lda.Processes = 1
	lda.Rnd = rand.New(rand.NewSource(m.Seed))

	if _, err := lda.FitTransform(termDocumentMatrix(corpus, vocab)); err != nil {
		return nil, err
	}

	components := lda.Components()
	rows, _ := components.Dims()
	at := components.At
	if rows != k {
		// topics laid out as columns
		at = func(t, w int) float64 { return components.At(w, t) }
	}

	phi := make([][]float64, k)
	for t := range phi {
		phi[t] = make([]float64, vocab)
		total := 0.0
		for w := range vocab {
			phi[t][w] = at(t, w)
			total += phi[t][w]
		}
		if total > 0 {
			for w := range phi[t] {
				phi[t][w] /= total
			}
		}
	}
	return phi, nil
}

// describe picks the top weighted terms of a topic and renders its text form
func (m *Modeler) describe(id int, dist []float64, dict *Dictionary) models.Topic {
	order := make([]int, len(dist))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case dist[a] > dist[b]:
			return -1
		case dist[a] < dist[b]:
			return 1
		default:
			return 0
		}
	})

	n := min(m.TopWords, len(order))
	terms := make([]models.TopicTerm, 0, n)
	for _, w := range order[:n] {
		terms = append(terms, models.TopicTerm{Word: dict.Word(w), Weight: dist[w]})
	}

	return models.Topic{ID: id, Terms: terms, Text: FormatTerms(terms)}
}

// FormatTerms renders terms as `0.034*"word" + 0.021*"other"`
func FormatTerms(terms []models.TopicTerm) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = fmt.Sprintf("%.3f*%q", t.Weight, t.Word)
	}
	return strings.Join(parts, " + ")
}

// Keywords splits a topic string on '+' and returns the bare keywords
func Keywords(topic string) []string {
	var out []string
	for _, part := range strings.Split(topic, "+") {
		part = strings.TrimSpace(part)
		if i := strings.Index(part, "*"); i >= 0 {
			part = part[i+1:]
		}
		part = strings.Trim(part, "\" ")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
