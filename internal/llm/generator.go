package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"

	"paper-generator/internal/models"
)

// Guidelines are appended to every exemplar-based prompt
var Guidelines = []string{
	"The question must end with a question mark.",
	"The question should be thought-provoking and test understanding, not recall.",
	"Do not ask a question that can be answered with yes or no.",
	"The question must be relevant to the given context.",
	"Do not copy the example question or the context verbatim.",
}

// Completer turns a prompt into generated text
type Completer interface {
	GenerateResponse(ctx context.Context, prompt string) (string, error)
}

// QuestionGenerator builds prompts and collects raw question candidates
type QuestionGenerator struct {
	Completer Completer
	Variant   models.Variant
	Rand      *rand.Rand
	Logger    *logrus.Logger
	// Progress is called after every attempted generation
	Progress func(processed, total int)
}

// NewQuestionGenerator creates a generator for the given variant
func NewQuestionGenerator(completer Completer, variant models.Variant, seed uint64, logger *logrus.Logger) *QuestionGenerator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &QuestionGenerator{
		Completer: completer,
		Variant:   variant,
		Rand:      rand.New(rand.NewSource(seed)),
		Logger:    logger,
	}
}

// ContextWindow returns the context slice used for the i-th prompt
func ContextWindow(text string, i int, size int, rotate bool) string {
	runes := []rune(text)
	if len(runes) == 0 || size <= 0 {
		return ""
	}

	start := 0
	if rotate {
		step := max(size/2, 1)
		start = (i * step) % len(runes)
	}
	end := min(start+size, len(runes))
	return string(runes[start:end])
}

// BuildPrompt assembles the prompt for one generation call.
// exemplar is ignored when empty.
func BuildPrompt(contextText string, exemplar string) string {
	var promptBuilder strings.Builder

	if exemplar == "" {
		promptBuilder.WriteString("Generate a question based on the following context: ")
		promptBuilder.WriteString(contextText)
		promptBuilder.WriteString("\n\nQuestion:")
		return promptBuilder.String()
	}

	promptBuilder.WriteString("You are an examiner writing a new exam question.\n\n")
	promptBuilder.WriteString("Context:\n")
	promptBuilder.WriteString(contextText)
	promptBuilder.WriteString("\n\n")

	promptBuilder.WriteString("Example question (match its style, not its content):\n")
	promptBuilder.WriteString(exemplar)
	promptBuilder.WriteString("\n\n")

	promptBuilder.WriteString("Guidelines:\n")
	for i, g := range Guidelines {
		fmt.Fprintf(&promptBuilder, "%d. %s\n", i+1, g)
	}
	promptBuilder.WriteString("\nQuestion:")

	return promptBuilder.String()
}

// Generate requests n candidates, one call per candidate.
// Failed calls are logged and skipped, so fewer than n candidates may be returned.
func (g *QuestionGenerator) Generate(ctx context.Context, contextText string, originals []models.OriginalQuestion, n int) ([]string, error) {
	candidates := make([]string, 0, n)

	for i := range n {
		if err := ctx.Err(); err != nil {
			return candidates, err
		}

		exemplar := ""
		if g.Variant.UseStyleExemplar && len(originals) > 0 {
			exemplar = strings.TrimSpace(originals[g.Rand.Intn(len(originals))].Text)
		}

		window := ContextWindow(contextText, i, g.Variant.ContextWindowSize, g.Variant.RotateContext)
		prompt := BuildPrompt(window, exemplar)

		response, err := g.Completer.GenerateResponse(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return candidates, ctx.Err()
			}
			g.Logger.WithFields(logrus.Fields{
				"iteration": i + 1,
				"status":    StatusCode(err),
			}).WithError(err).Warn("Error generating question, skipping")
		} else {
			candidates = append(candidates, strings.TrimSpace(response))
		}

		if g.Progress != nil {
			g.Progress(i+1, n)
		}
	}

	g.Logger.WithFields(logrus.Fields{
		"requested": n,
		"generated": len(candidates),
	}).Info("Generated candidate questions")

	return candidates, nil
}
