package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultModel      = "phi3:mini"
	DefaultTimeout    = 45 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
	maxErrorBodyBytes = 64 << 10
)

// OllamaLLM handles interactions with the Ollama generate API
type OllamaLLM struct {
	Client     *api.Client
	Model      string
	Options    map[string]any
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	Limiter    *rate.Limiter
	Logger     *logrus.Logger
}

// NewOllamaLLM creates a new Ollama LLM client.
// An empty host falls back to OLLAMA_HOST (default http://127.0.0.1:11434).
func NewOllamaLLM(host string, model string, logger *logrus.Logger) (*OllamaLLM, error) {
	hostURL := envconfig.Host()
	if host != "" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		parsed, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
		}
		hostURL = parsed
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &OllamaLLM{
		Client:     api.NewClient(hostURL, &http.Client{Transport: statusTransport{next: http.DefaultTransport}}),
		Model:      model,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		Timeout:    DefaultTimeout,
		Limiter:    rate.NewLimiter(rate.Inf, 1),
		Logger:     logger,
	}, nil
}

// SetRequestsPerSecond paces generate calls; zero or less removes the limit
func (o *OllamaLLM) SetRequestsPerSecond(rps float64) {
	if rps <= 0 {
		o.Limiter = rate.NewLimiter(rate.Inf, 1)
		return
	}
	o.Limiter = rate.NewLimiter(rate.Limit(rps), 1)
}

// GenerateResponse sends a single non-streaming generate request, retrying transient failures
func (o *OllamaLLM) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	if o.Limiter != nil {
		if err := o.Limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= o.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := o.backoff(attempt)
			o.Logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Retrying generate request")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		response, err := o.generateOnce(ctx, prompt)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryable(err) {
			break
		}
	}

	return "", fmt.Errorf("failed to generate response: %w", lastErr)
}

func (o *OllamaLLM) generateOnce(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := api.GenerateRequest{
		Model:   o.Model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: o.Options,
	}

	callCtx := ctx
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	var responseBuilder strings.Builder
	err := o.Client.Generate(callCtx, &req, func(resp api.GenerateResponse) error {
		_, err := responseBuilder.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return "", err
	}

	return responseBuilder.String(), nil
}

// statusTransport turns any error status into api.StatusError before the
// client scans the body, whatever the body holds.
type statusTransport struct {
	next http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	message := strings.TrimSpace(string(body))

	var errorResponse struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errorResponse) == nil && errorResponse.Error != "" {
		message = errorResponse.Error
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return nil, api.StatusError{
		StatusCode:   resp.StatusCode,
		Status:       resp.Status,
		ErrorMessage: message,
	}
}

func (o *OllamaLLM) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(o.RetryDelay) * math.Pow(2, float64(attempt-1)))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

// isRetryable reports whether a failed call may succeed on a later attempt
func isRetryable(err error) bool {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

// StatusCode extracts the HTTP status of a failed generate call, or 0
func StatusCode(err error) int {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
