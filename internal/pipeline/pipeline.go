// Package pipeline wires the extraction, analysis, generation and rendering stages
// into a single run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"paper-generator/internal/llm"
	"paper-generator/internal/models"
	"paper-generator/internal/paper"
	"paper-generator/internal/processor"
	"paper-generator/internal/ranking"
	"paper-generator/internal/topics"
)

var (
	// ErrMissingInput is returned when an input file is absent
	ErrMissingInput = processor.ErrMissingInput
	// ErrNoText is returned when the input files contain no extractable text
	ErrNoText = errors.New("no text could be extracted from the input files")
)

// DefaultSeed seeds the exemplar selection
const DefaultSeed = 42

// Extractor turns input files into one concatenated text
type Extractor interface {
	ExtractAll(paths []string) (string, error)
}

// TextProcessor splits cleaned text into sentence token strings
type TextProcessor interface {
	Process(text string) []string
}

// QuestionAnalyzer finds and annotates the original questions
type QuestionAnalyzer interface {
	Analyze(text string) ([]models.OriginalQuestion, error)
}

// TopicModeler infers topics from sentence token strings
type TopicModeler interface {
	Fit(sentences []string) ([]models.Topic, error)
}

// Renderer writes a laid out paper to a file and returns the page count
type Renderer interface {
	RenderFile(p paper.Paper, path string) (int, error)
}

// Pipeline runs the stages for one variant. Stages run strictly in order.
type Pipeline struct {
	Variant      models.Variant
	Title        string
	OutputDir    string
	Extractor    Extractor
	Preprocessor TextProcessor
	Analyzer     QuestionAnalyzer
	Topics       TopicModeler
	Generator    *llm.QuestionGenerator
	Ranker       *ranking.Engine
	// Renderer may be nil, in which case no document is written
	Renderer Renderer
	Logger   *logrus.Logger
}

// New builds a pipeline with the default stage implementations
func New(variant models.Variant, completer llm.Completer, logger *logrus.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	splitter, err := processor.NewPunktSplitter()
	if err != nil {
		return nil, fmt.Errorf("failed to load sentence splitter: %w", err)
	}

	return &Pipeline{
		Variant:      variant,
		Title:        models.DefaultTitle,
		OutputDir:    ".",
		Extractor:    processor.NewPDFExtractor(),
		Preprocessor: processor.NewPreprocessor(splitter, processor.UnicodeWordTokenizer{}),
		Analyzer:     processor.NewAnalyzer(processor.ProseTagger{}),
		Topics:       topics.NewModeler(),
		Generator:    llm.NewQuestionGenerator(completer, variant, DefaultSeed, logger),
		Ranker:       ranking.NewEngine(variant),
		Renderer:     paper.NewPDFRenderer(),
		Logger:       logger,
	}, nil
}

type analysis struct {
	result    *models.Result
	sentences []string
}

// Inspect runs extraction, preprocessing, question analysis and topic modeling only
func (p *Pipeline) Inspect(ctx context.Context, files []string) (*models.Result, error) {
	a, err := p.analyze(ctx, files)
	if err != nil {
		return nil, err
	}
	return a.result, nil
}

func (p *Pipeline) analyze(ctx context.Context, files []string) (*analysis, error) {
	if err := processor.CheckInputs(files); err != nil {
		return nil, err
	}

	startTime := time.Now()
	text, err := p.Extractor.ExtractAll(files)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}
	p.Logger.WithFields(logrus.Fields{
		"files":      len(files),
		"characters": len(text),
		"duration":   time.Since(startTime).Round(time.Millisecond),
	}).Info("Extracted text")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sentences := p.Preprocessor.Process(text)
	p.Logger.WithField("sentences", len(sentences)).Info("Preprocessed text")

	originals, err := p.Analyzer.Analyze(text)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze questions: %w", err)
	}
	p.Logger.WithField("questions", len(originals)).Info("Extracted original questions")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	topicList, err := p.Topics.Fit(sentences)
	if err != nil {
		return nil, fmt.Errorf("failed to model topics: %w", err)
	}
	for _, t := range topicList {
		p.Logger.WithFields(logrus.Fields{"topic": t.ID, "terms": t.Text}).Debug("Inferred topic")
	}
	p.Logger.WithField("topics", len(topicList)).Info("Modeled topics")

	return &analysis{
		result: &models.Result{
			Originals: originals,
			Topics:    topicList,
			Sentences: len(sentences),
		},
		sentences: sentences,
	}, nil
}

// Run executes every stage and, when a renderer is set, writes the variant's output file
func (p *Pipeline) Run(ctx context.Context, files []string) (*models.Result, error) {
	startTime := time.Now()

	a, err := p.analyze(ctx, files)
	if err != nil {
		return nil, err
	}
	res := a.result

	res.Requested = 2 * len(res.Originals)
	contextText := strings.Join(a.sentences, " ")

	candidates, err := p.Generator.Generate(ctx, contextText, res.Originals, res.Requested)
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}
	res.Candidates = candidates

	selected := p.Ranker.Select(candidates, res.Originals, res.Topics)
	p.Logger.WithFields(logrus.Fields{
		"requested":  res.Requested,
		"candidates": len(candidates),
		"selected":   len(selected),
		"variant":    p.Variant.Name,
	}).Info("Selected questions")

	res.Paper = models.QuestionPaper{Title: p.Title, Questions: selected}
	layout := paper.Layout(res.Paper)
	res.Text = paper.RenderText(layout)

	if p.Renderer != nil {
		outputPath := filepath.Join(p.OutputDir, p.Variant.OutputFile)
		pages, err := p.Renderer.RenderFile(layout, outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to render paper: %w", err)
		}
		res.OutputPath = outputPath
		res.PageCount = pages
		p.Logger.WithFields(logrus.Fields{"path": outputPath, "pages": pages}).Info("Rendered paper")
	}

	p.Logger.WithField("duration", time.Since(startTime).Round(time.Millisecond)).Info("Pipeline completed")
	return res, nil
}
