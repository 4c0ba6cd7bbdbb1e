package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-generator/internal/models"
)

// fakeOllama answers /api/generate, failing the requests listed in failOn (1-based)
// with errorBody, or with no body at all when errorBody is nil.
type fakeOllama struct {
	mu        sync.Mutex
	calls     int
	prompts   []string
	failOn    map[int]int
	errorBody *string
	reply     func(call int, prompt string) string
	delay     time.Duration
}

func body(s string) *string { return &s }

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req api.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls++
	call := f.calls
	f.prompts = append(f.prompts, req.Prompt)
	status, failing := f.failOn[call]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-r.Context().Done():
			return
		}
	}

	if req.Stream == nil || *req.Stream {
		http.Error(w, `{"error":"expected stream false"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if failing {
		w.WriteHeader(status)
		if f.errorBody != nil {
			_, _ = io.WriteString(w, *f.errorBody)
		}
		return
	}

	text := "  What is the role of an index in query processing?  "
	if f.reply != nil {
		text = f.reply(call, req.Prompt)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model":    req.Model,
		"response": text,
		"done":     true,
	})
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestLLM(t *testing.T, fake *fakeOllama) *OllamaLLM {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	o, err := NewOllamaLLM(srv.URL, "", quietLogger())
	require.NoError(t, err)
	o.RetryDelay = time.Millisecond
	return o
}

func TestNewOllamaLLM_Defaults(t *testing.T) {
	o, err := NewOllamaLLM("localhost:11434", "", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, o.Model)
	assert.Equal(t, DefaultMaxRetries, o.MaxRetries)
	assert.Equal(t, DefaultTimeout, o.Timeout)
}

func TestGenerateResponse_Success(t *testing.T) {
	fake := &fakeOllama{}
	o := newTestLLM(t, fake)

	got, err := o.GenerateResponse(context.Background(), "prompt")
	require.NoError(t, err)

	assert.Equal(t, "  What is the role of an index in query processing?  ", got)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, []string{"prompt"}, fake.prompts)
}

func TestGenerateResponse_RetriesServerErrors(t *testing.T) {
	fake := &fakeOllama{failOn: map[int]int{1: http.StatusInternalServerError}}
	o := newTestLLM(t, fake)

	got, err := o.GenerateResponse(context.Background(), "prompt")
	require.NoError(t, err)

	assert.NotEmpty(t, got)
	assert.Equal(t, 2, fake.calls)
}

func TestGenerateResponse_GivesUpAfterMaxRetries(t *testing.T) {
	fake := &fakeOllama{
		failOn: map[int]int{
			1: http.StatusServiceUnavailable,
			2: http.StatusServiceUnavailable,
			3: http.StatusServiceUnavailable,
		},
		errorBody: body(`{"error":"boom"}` + "\n"),
	}
	o := newTestLLM(t, fake)

	_, err := o.GenerateResponse(context.Background(), "prompt")
	require.Error(t, err)

	assert.Equal(t, 3, fake.calls)
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
}

func TestGenerateResponse_DoesNotRetryClientErrors(t *testing.T) {
	fake := &fakeOllama{
		failOn:    map[int]int{1: http.StatusNotFound},
		errorBody: body(`{"error":"model 'phi3:mini' not found"}`),
	}
	o := newTestLLM(t, fake)

	_, err := o.GenerateResponse(context.Background(), "prompt")
	require.Error(t, err)

	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.ErrorContains(t, err, "model 'phi3:mini' not found")
}

func TestGenerateResponse_ErrorStatusWithoutBody(t *testing.T) {
	fake := &fakeOllama{failOn: map[int]int{1: http.StatusInternalServerError, 2: http.StatusInternalServerError}}
	o := newTestLLM(t, fake)
	o.MaxRetries = 1

	got, err := o.GenerateResponse(context.Background(), "prompt")
	require.Error(t, err)

	assert.Empty(t, got)
	assert.Equal(t, 2, fake.calls)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
}

func TestGenerateResponse_PlainTextErrorBody(t *testing.T) {
	fake := &fakeOllama{
		failOn:    map[int]int{1: http.StatusBadRequest},
		errorBody: body("bad request\n"),
	}
	o := newTestLLM(t, fake)

	_, err := o.GenerateResponse(context.Background(), "prompt")
	require.Error(t, err)

	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	assert.ErrorContains(t, err, "bad request")
}

func TestGenerateResponse_Timeout(t *testing.T) {
	fake := &fakeOllama{delay: 500 * time.Millisecond}
	o := newTestLLM(t, fake)
	o.Timeout = 20 * time.Millisecond
	o.MaxRetries = 0

	_, err := o.GenerateResponse(context.Background(), "prompt")
	assert.Error(t, err)
}

func TestQuestionGenerator_SkipsFailedCalls(t *testing.T) {
	fake := &fakeOllama{
		failOn:    map[int]int{3: http.StatusInternalServerError},
		errorBody: body(`{"error":"boom"}` + "\n"),
	}
	o := newTestLLM(t, fake)
	o.MaxRetries = 0

	gen := NewQuestionGenerator(o, models.SimpleVariant(), 1, quietLogger())
	var progress []int
	gen.Progress = func(processed, total int) {
		assert.Equal(t, 4, total)
		progress = append(progress, processed)
	}

	got, err := gen.Generate(context.Background(), strings.Repeat("database systems ", 40), nil, 4)
	require.NoError(t, err)

	assert.Len(t, got, 3)
	assert.Equal(t, 4, fake.calls)
	assert.Equal(t, []int{1, 2, 3, 4}, progress)
	for _, c := range got {
		assert.Equal(t, "What is the role of an index in query processing?", c)
	}
}

func TestQuestionGenerator_SkipsEmptyErrorResponses(t *testing.T) {
	fake := &fakeOllama{failOn: map[int]int{3: http.StatusInternalServerError}}
	o := newTestLLM(t, fake)
	o.MaxRetries = 0

	gen := NewQuestionGenerator(o, models.SimpleVariant(), 1, quietLogger())
	got, err := gen.Generate(context.Background(), strings.Repeat("database systems ", 40), nil, 4)
	require.NoError(t, err)

	assert.Len(t, got, 3)
	assert.Equal(t, 4, fake.calls)
	assert.NotContains(t, got, "")
}

func TestQuestionGenerator_ExemplarPrompts(t *testing.T) {
	fake := &fakeOllama{}
	o := newTestLLM(t, fake)

	originals := []models.OriginalQuestion{{Text: "What is a database?"}, {Text: "Define ACID properties.?"}}
	gen := NewQuestionGenerator(o, models.ImprovedVariant(), 7, quietLogger())

	got, err := gen.Generate(context.Background(), "relational model tables keys", originals, 4)
	require.NoError(t, err)
	require.Len(t, got, 4)

	for _, p := range fake.prompts {
		assert.Contains(t, p, "relational model tables keys")
		assert.True(t,
			strings.Contains(p, "What is a database?") || strings.Contains(p, "Define ACID properties.?"),
			"prompt should carry an exemplar: %s", p)
		for _, g := range Guidelines {
			assert.Contains(t, p, g)
		}
	}
}

func TestQuestionGenerator_StopsOnCancel(t *testing.T) {
	fake := &fakeOllama{}
	o := newTestLLM(t, fake)
	gen := NewQuestionGenerator(o, models.SimpleVariant(), 1, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := gen.Generate(ctx, "text", nil, 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, got)
	assert.Equal(t, 0, fake.calls)
}

func TestContextWindow(t *testing.T) {
	text := strings.Repeat("a", 100) + strings.Repeat("b", 100) + strings.Repeat("c", 100)

	assert.Equal(t, text[:200], ContextWindow(text, 0, 200, true))
	assert.Equal(t, text[100:300], ContextWindow(text, 1, 200, true))
	assert.Equal(t, text[200:], ContextWindow(text, 2, 200, true))
	assert.Equal(t, text[:200], ContextWindow(text, 3, 200, true))
	assert.Equal(t, text[:200], ContextWindow(text, 5, 200, false))
	assert.Equal(t, "", ContextWindow("", 2, 200, true))
	assert.Equal(t, "short", ContextWindow("short", 0, 500, false))
}

func TestBuildPrompt(t *testing.T) {
	simple := BuildPrompt("ctx text", "")
	assert.Equal(t, "Generate a question based on the following context: ctx text\n\nQuestion:", simple)

	improved := BuildPrompt("ctx text", "What is a key?")
	assert.Contains(t, improved, "ctx text")
	assert.Contains(t, improved, "What is a key?")
	assert.Contains(t, improved, "5. "+Guidelines[4])
	assert.True(t, strings.HasSuffix(improved, "Question:"))
}
