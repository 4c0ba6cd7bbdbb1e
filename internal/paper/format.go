// Package paper lays out a question paper and renders it as plain text or PDF.
package paper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mitchellh/go-wordwrap"

	"paper-generator/internal/models"
)

const (
	// TextWidth is the column limit of the first line of a question
	TextWidth = 80
	// ContinuationIndent prefixes every wrapped line after the first
	ContinuationIndent = "    "
)

var (
	leadingNumberRe = regexp.MustCompile(`^\d+\.\s*`)
	digitsOnlyRe    = regexp.MustCompile(`^\d+$`)
)

// Item is a numbered question
type Item struct {
	Number int
	Text   string
}

// Paper is the formatted, render-ready form of a question paper
type Paper struct {
	Title string
	Items []Item
}

// Layout numbers the questions of a paper sequentially from 1
func Layout(qp models.QuestionPaper) Paper {
	title := qp.Title
	if title == "" {
		title = models.DefaultTitle
	}

	p := Paper{Title: title, Items: make([]Item, 0, len(qp.Questions))}
	for _, q := range qp.Questions {
		q = strings.Join(strings.Fields(q), " ")
		if q == "" {
			continue
		}
		p.Items = append(p.Items, Item{Number: len(p.Items) + 1, Text: q})
	}
	return p
}

// Questions returns the question texts in order
func (p Paper) Questions() []string {
	out := make([]string, len(p.Items))
	for i, it := range p.Items {
		out[i] = it.Text
	}
	return out
}

// WrapQuestion wraps text to TextWidth columns; continuation lines carry a 4-space
// indent that counts towards the width
func WrapQuestion(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}

	first, rest, _ := strings.Cut(wordwrap.WrapString(text, TextWidth), "\n")
	if rest == "" {
		return first
	}

	rest = strings.Join(strings.Fields(rest), " ")
	lines := strings.Split(wordwrap.WrapString(rest, uint(TextWidth-len(ContinuationIndent))), "\n")

	var sb strings.Builder
	sb.WriteString(first)
	for _, line := range lines {
		sb.WriteString("\n")
		sb.WriteString(ContinuationIndent)
		sb.WriteString(line)
	}
	return sb.String()
}

// RenderText renders the paper as plain text: title, blank line, then numbered
// questions separated by blank lines
func RenderText(p Paper) string {
	var sb strings.Builder
	sb.WriteString(p.Title)
	sb.WriteString("\n\n")
	for _, it := range p.Items {
		fmt.Fprintf(&sb, "%d. %s\n\n", it.Number, WrapQuestion(it.Text))
	}
	return sb.String()
}

// ParseText reads a plain-text paper back: the first block is the title, numeric-only
// fragments are dropped and the remaining blocks are renumbered from 1
func ParseText(text string) Paper {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	blocks := strings.Split(text, "\n\n")

	p := Paper{Title: strings.TrimSpace(blocks[0])}
	if p.Title == "" {
		p.Title = models.DefaultTitle
	}

	for _, block := range blocks[1:] {
		block = strings.TrimSpace(block)
		if block == "" || digitsOnlyRe.MatchString(block) {
			continue
		}
		q := leadingNumberRe.ReplaceAllString(block, "")
		q = strings.Join(strings.Fields(q), " ")
		if q == "" {
			continue
		}
		p.Items = append(p.Items, Item{Number: len(p.Items) + 1, Text: q})
	}
	return p
}
