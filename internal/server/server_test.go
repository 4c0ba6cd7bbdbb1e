package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-generator/internal/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeRun records its inputs and writes a tiny document into the work directory
type fakeRun struct {
	mu       sync.Mutex
	inputs   [][]string
	workDirs []string
	active   int
	overlap  bool
	err      error
	delay    time.Duration
}

func (f *fakeRun) run(ctx context.Context, files []string, workDir string) (*models.Result, error) {
	f.mu.Lock()
	f.active++
	if f.active > 1 {
		f.overlap = true
	}
	f.inputs = append(f.inputs, files)
	f.workDirs = append(f.workDirs, workDir)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	time.Sleep(f.delay)
	if f.err != nil {
		return nil, f.err
	}

	out := filepath.Join(workDir, "improved_model_paper.pdf")
	if err := os.WriteFile(out, []byte("%PDF-1.3 fake"), 0o644); err != nil {
		return nil, err
	}
	return &models.Result{
		Paper:      models.QuestionPaper{Title: models.DefaultTitle, Questions: []string{"What is a database?"}},
		OutputPath: out,
	}, nil
}

func postGenerate(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func generateBody(t *testing.T, files ...[]byte) string {
	t.Helper()
	req := GenerateRequest{}
	for _, f := range files {
		req.Files = append(req.Files, base64.StdEncoding.EncodeToString(f))
	}
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return string(b)
}

func TestHealth(t *testing.T) {
	s := New((&fakeRun{}).run, t.TempDir(), quietLogger())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestGenerate_Success(t *testing.T) {
	fake := &fakeRun{}
	workDir := t.TempDir()
	s := New(fake.run, workDir, quietLogger())

	rec := postGenerate(t, s.Router(), generateBody(t, []byte("%PDF-a"), []byte("%PDF-b")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	doc, err := base64.StdEncoding.DecodeString(resp.PDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
	assert.Equal(t, []string{"What is a database?"}, resp.Questions)
	assert.NotEmpty(t, resp.ID)

	require.Len(t, fake.inputs, 1)
	assert.Len(t, fake.inputs[0], 2)
	assert.Equal(t, filepath.Join(workDir, resp.ID), fake.workDirs[0])

	// the per-run directory is removed afterwards
	_, err = os.Stat(fake.workDirs[0])
	assert.True(t, os.IsNotExist(err))
}

func TestGenerate_BadRequests(t *testing.T) {
	fake := &fakeRun{}
	s := New(fake.run, t.TempDir(), quietLogger())

	tests := []struct {
		name string
		body string
	}{
		{"not json", "files=1"},
		{"no files", `{"files":[]}`},
		{"invalid base64", `{"files":["%%% not base64 %%%"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postGenerate(t, s.Router(), tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
	assert.Empty(t, fake.inputs)
}

func TestGenerate_PipelineFailure(t *testing.T) {
	fake := &fakeRun{err: errors.New("failed to extract text: open /tmp/papergen/run/input_1.pdf: malformed PDF")}
	logger, hook := test.NewNullLogger()
	s := New(fake.run, t.TempDir(), logger)

	rec := postGenerate(t, s.Router(), generateBody(t, []byte("junk")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to generate paper"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "/tmp/papergen")

	var logged bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Generation failed" {
			logged = true
			assert.Equal(t, fake.err, entry.Data[logrus.ErrorKey])
		}
	}
	assert.True(t, logged, "the cause should be logged")
}

func TestGenerate_SerializesRuns(t *testing.T) {
	fake := &fakeRun{delay: 20 * time.Millisecond}
	s := New(fake.run, t.TempDir(), quietLogger())
	h := s.Router()
	body := generateBody(t, []byte("%PDF-a"))

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := postGenerate(t, h, body)
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()

	assert.Len(t, fake.inputs, 4)
	assert.False(t, fake.overlap)
}
