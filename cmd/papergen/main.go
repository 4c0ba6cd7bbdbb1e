package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"paper-generator/internal/config"
	"paper-generator/internal/llm"
	"paper-generator/internal/logging"
	"paper-generator/internal/models"
	"paper-generator/internal/paper"
	"paper-generator/internal/pipeline"
	"paper-generator/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(cfg).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newApp(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "papergen",
		Usage:     "Generate a model question paper from existing PDF question papers",
		ArgsUsage: "FILE.pdf...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "variant",
				Value: cfg.Variant,
				Usage: "Pipeline variant (simple or improved)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: cfg.LogLevel,
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "ollama-host",
				Value: cfg.Ollama.Host,
				Usage: "Ollama host (default uses OLLAMA_HOST env var)",
			},
			&cli.StringFlag{
				Name:  "model",
				Value: cfg.Ollama.Model,
				Usage: "Ollama model used for generation",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: cfg.Timeout(),
				Usage: "Timeout for a single generation call",
			},
			&cli.IntFlag{
				Name:  "retries",
				Value: cfg.Ollama.MaxRetries,
				Usage: "Retries for a failed generation call",
			},
			&cli.FloatFlag{
				Name:  "rps",
				Value: cfg.Ollama.RequestsPerSecond,
				Usage: "Maximum generation requests per second (0 for unlimited)",
			},
			&cli.StringFlag{
				Name:  "title",
				Value: cfg.Title,
				Usage: "Title printed on the paper",
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Value:   cfg.OutputDir,
				Usage:   "Directory the PDF paper is written to",
			},
		},
		Action: generateAction,
		Commands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "Extract and analyze the input papers without generating questions",
				ArgsUsage: "FILE.pdf...",
				Action:    inspectAction,
			},
			{
				Name:      "render",
				Usage:     "Render a plain-text paper as a PDF",
				ArgsUsage: "PAPER.txt",
				Action:    renderAction,
			},
			{
				Name:  "serve",
				Usage: "Serve paper generation over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "port",
						Value: cfg.Server.Port,
						Usage: "Port to listen on",
					},
				},
				Action: serveAction,
			},
		},
	}
}

func newLogger(cmd *cli.Command) *logrus.Logger {
	return logging.New(cmd.String("log-level"))
}

func selectedVariant(cmd *cli.Command) (models.Variant, error) {
	v, ok := models.VariantByName(cmd.String("variant"))
	if !ok {
		return models.Variant{}, fmt.Errorf("unknown variant %q (expected simple or improved)", cmd.String("variant"))
	}
	return v, nil
}

func newPipeline(cmd *cli.Command, logger *logrus.Logger) (*pipeline.Pipeline, error) {
	variant, err := selectedVariant(cmd)
	if err != nil {
		return nil, err
	}

	llmClient, err := llm.NewOllamaLLM(cmd.String("ollama-host"), cmd.String("model"), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	llmClient.Timeout = cmd.Duration("timeout")
	llmClient.MaxRetries = int(cmd.Int("retries"))
	llmClient.SetRequestsPerSecond(cmd.Float("rps"))

	p, err := pipeline.New(variant, llmClient, logger)
	if err != nil {
		return nil, err
	}
	p.Title = cmd.String("title")
	p.OutputDir = cmd.String("output-dir")
	return p, nil
}

func generateAction(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("at least one PDF file is required")
	}

	logger := newLogger(cmd)
	p, err := newPipeline(cmd, logger)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"files":   len(files),
		"variant": p.Variant.Name,
	}).Info("Generating question paper")

	progress := &generationProgress{}
	p.Generator.Progress = progress.update

	res, err := p.Run(ctx, files)
	progress.finish()
	if err != nil {
		if errors.Is(err, pipeline.ErrMissingInput) {
			logger.WithError(err).Error("Input file check failed")
		}
		return err
	}

	fmt.Print(res.Text)
	logger.WithFields(logrus.Fields{
		"path":      res.OutputPath,
		"pages":     res.PageCount,
		"questions": len(res.Paper.Questions),
	}).Info("Question paper written")
	return nil
}

func inspectAction(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("at least one PDF file is required")
	}

	logger := newLogger(cmd)
	p, err := newPipeline(cmd, logger)
	if err != nil {
		return err
	}

	res, err := p.Inspect(ctx, files)
	if err != nil {
		return err
	}

	printInspection(os.Stdout, res)
	return nil
}

func renderAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("exactly one text paper is required")
	}

	variant, err := selectedVariant(cmd)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(cmd.Args().First())
	if err != nil {
		return fmt.Errorf("failed to read paper: %w", err)
	}

	doc := paper.ParseText(string(raw))
	outputPath := filepath.Join(cmd.String("output-dir"), variant.OutputFile)

	pages, err := paper.NewPDFRenderer().RenderFile(doc, outputPath)
	if err != nil {
		return err
	}

	newLogger(cmd).WithFields(logrus.Fields{
		"path":      outputPath,
		"pages":     pages,
		"questions": len(doc.Items),
	}).Info("Question paper written")
	return nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd)
	p, err := newPipeline(cmd, logger)
	if err != nil {
		return err
	}

	// runs are serialized by the server, so the shared pipeline only serves one at a time
	run := func(ctx context.Context, files []string, workDir string) (*models.Result, error) {
		p.OutputDir = workDir
		return p.Run(ctx, files)
	}

	workDir := filepath.Join(os.TempDir(), "papergen")
	srv := &http.Server{
		Addr:              ":" + cmd.String("port"),
		Handler:           server.New(run, workDir, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("Starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
