package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"paper-generator/internal/models"
)

// generationProgress draws a bar on stderr once the total is known
type generationProgress struct {
	bar *progressbar.ProgressBar
}

func (g *generationProgress) update(processed, total int) {
	if g.bar == nil {
		g.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Generating questions"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("questions"),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(os.Stderr, "\n")
			}),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	_ = g.bar.Set(processed)
}

func (g *generationProgress) finish() {
	if g.bar != nil {
		_ = g.bar.Finish()
	}
}

var (
	heading = color.New(color.FgCyan, color.Bold)
	subtle  = color.New(color.FgHiBlack)
)

// printInspection prints what the analysis stages found
func printInspection(w io.Writer, res *models.Result) {
	heading.Fprintln(w, "Extraction")
	fmt.Fprintf(w, "  Sentences: %d\n", res.Sentences)
	fmt.Fprintf(w, "  Original questions: %d\n", len(res.Originals))
	fmt.Fprintf(w, "  Candidates a full run would request: %d\n", 2*len(res.Originals))

	fmt.Fprintln(w)
	heading.Fprintln(w, "Original questions")
	if len(res.Originals) == 0 {
		subtle.Fprintln(w, "  none found")
	}
	for i, q := range res.Originals {
		fmt.Fprintf(w, "  %d. %s\n", i+1, strings.Join(strings.Fields(q.Text), " "))
		if len(q.Entities) > 0 {
			subtle.Fprintf(w, "     entities: %s\n", strings.Join(q.Entities, ", "))
		}
	}

	fmt.Fprintln(w)
	heading.Fprintln(w, "Topics")
	for _, t := range res.Topics {
		if t.Text == "" {
			subtle.Fprintf(w, "  %d: (empty)\n", t.ID)
			continue
		}
		fmt.Fprintf(w, "  %d: %s\n", t.ID, t.Text)
	}
}
