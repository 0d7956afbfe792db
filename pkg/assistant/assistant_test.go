package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrCodeEU/facekiosk/pkg/attendance"
)

func seededStore(t *testing.T) *attendance.CSVStore {
	t.Helper()
	s := attendance.NewCSVStore(filepath.Join(t.TempDir(), "attendance.csv"), false)
	ctx := context.Background()
	day := time.Date(2024, 3, 15, 8, 30, 0, 0, time.Local)
	require.NoError(t, s.Append(ctx, attendance.NewRecord("001", "张三", "", day)))
	require.NoError(t, s.Append(ctx, attendance.NewRecord("002", "李四", "", day.Add(20*time.Minute))))
	require.NoError(t, s.Append(ctx, attendance.NewRecord("001", "张三", "", day.Add(24*time.Hour))))
	return s
}

type fakeProvider struct {
	prompt string
	answer string
	err    error
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.answer, f.err
}

func TestSummarize(t *testing.T) {
	s := seededStore(t)
	records, err := s.Records(context.Background())
	require.NoError(t, err)

	summary := Summarize(records)
	assert.Contains(t, summary, "records: 3")
	assert.Contains(t, summary, "employees: 2")
	assert.Contains(t, summary, "dates: 2024-03-15 to 2024-03-16 (2 days)")
	assert.Contains(t, summary, "earliest check-in time: 08:30:00")
	assert.Contains(t, summary, "latest check-in time: 08:50:00")
	assert.Contains(t, summary, "001 张三: 2")
	assert.Contains(t, summary, "002 李四: 1")
	assert.NotContains(t, summary, "demo")

	assert.Empty(t, Summarize(nil))
}

func TestBuildPrompt_EmptyLogUsesPlaceholders(t *testing.T) {
	prompt, err := BuildPrompt("", "", "who was late?")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(prompt, NoData))
	assert.Contains(t, prompt, "Question: who was late?")
}

func TestAssistant_PromptIncludesStatsListingAndQuestion(t *testing.T) {
	fp := &fakeProvider{answer: "张三 came twice"}
	a := New(seededStore(t), fp)

	answer, err := a.Ask(context.Background(), "  how often did 张三 come?  ")
	require.NoError(t, err)
	assert.Equal(t, "张三 came twice", answer)

	assert.Contains(t, fp.prompt, "records: 3")
	assert.Contains(t, fp.prompt, "employee_id,name,date,time,timestamp")
	assert.Contains(t, fp.prompt, "002,李四,2024-03-15,08:50:00,2024-03-15 08:50:00")
	assert.Contains(t, fp.prompt, "Question: how often did 张三 come?")
	assert.NotContains(t, fp.prompt, "\ufeff", "BOM stripped from listing")
}

// growingStore appends a row between reads, like a check-in landing while a
// prompt is being built.
type growingStore struct {
	*attendance.CSVStore
}

func (g growingStore) Records(ctx context.Context) ([]attendance.Record, error) {
	records, err := g.CSVStore.Records(ctx)
	if err != nil {
		return nil, err
	}
	late := time.Date(2024, 3, 16, 9, 0, 0, 0, time.Local)
	return records, g.CSVStore.Append(ctx, attendance.NewRecord("003", "王五", "", late))
}

func TestAssistant_StatsMatchListing(t *testing.T) {
	a := New(growingStore{seededStore(t)}, nil)

	prompt, err := a.Prompt(context.Background(), "how many rows?")
	require.NoError(t, err)

	rows := 0
	for _, line := range strings.Split(prompt, "\n") {
		if strings.HasPrefix(line, "00") && strings.Contains(line, ",") {
			rows++
		}
	}
	require.Positive(t, rows)
	assert.Contains(t, prompt, fmt.Sprintf("records: %d\n", rows))
}

func TestAssistant_EmptyLog(t *testing.T) {
	fp := &fakeProvider{answer: "nothing yet"}
	a := New(attendance.NewCSVStore(filepath.Join(t.TempDir(), "none.csv"), false), fp)

	_, err := a.Ask(context.Background(), "anyone?")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(fp.prompt, NoData))
}

func TestAssistant_Errors(t *testing.T) {
	store := attendance.NewCSVStore(filepath.Join(t.TempDir(), "a.csv"), false)

	_, err := New(store, &fakeProvider{}).Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = New(store, nil).Ask(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)

	boom := errors.New("upstream 500")
	_, err = New(store, &fakeProvider{err: boom}).Ask(context.Background(), "hi")
	assert.ErrorIs(t, err, boom)
}

func TestBaseURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://api.deepseek.com/v1/chat/completions", "https://api.deepseek.com/v1/"},
		{"https://api.deepseek.com/v1/chat/completions/", "https://api.deepseek.com/v1/"},
		{"https://api.openai.com/v1", "https://api.openai.com/v1/"},
		{"http://localhost:8000/v1/", "http://localhost:8000/v1/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, baseURL(tt.in), tt.in)
	}
}

func TestOpenAIProvider_RequestShape(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "deepseek-chat", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "hello", req.Messages[0].Content)
		assert.Equal(t, 0.7, req.Temperature)
		assert.Equal(t, 2000, req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":0,"model":"deepseek-chat",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hi there"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Options{
		URL:         srv.URL + "/v1/chat/completions",
		APIKey:      "sk-test",
		Model:       "deepseek-chat",
		Timeout:     5 * time.Second,
		Temperature: 0.7,
		MaxTokens:   2000,
	})

	answer, err := p.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", answer)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIProvider_NoRetryOnError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Options{URL: srv.URL, APIKey: "k", Model: "m", Timeout: 5 * time.Second})
	_, err := p.Complete(context.Background(), "hello")
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIProvider_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":0,"model":"m","choices":[]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Options{URL: srv.URL, APIKey: "k", Model: "m", Timeout: 5 * time.Second})
	_, err := p.Complete(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGeminiProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))

		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "what happened?")

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"all good"}]}}]}`)
	}))
	defer srv.Close()

	p, err := NewGeminiProvider(context.Background(), Options{
		URL:       srv.URL,
		APIKey:    "g-key",
		Model:     "gemini-test",
		Timeout:   5 * time.Second,
		MaxTokens: 100,
	})
	require.NoError(t, err)

	answer, err := p.Complete(context.Background(), "what happened?")
	require.NoError(t, err)
	assert.Equal(t, "all good", answer)
}
