package pricing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AgentsMesh/CCMonitor/internal/models"
)

// MockRoundTripper implements http.RoundTripper for testing
type MockRoundTripper struct {
	RoundTripFunc func(req *http.Request) (*http.Response, error)
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.RoundTripFunc(req)
}

const remoteTable = `{
  "sample_spec": {"input_cost_per_token": "varies", "litellm_provider": "none"},
  "claude-sonnet-4-20250514": {
    "input_cost_per_token": 3e-06,
    "output_cost_per_token": 1.5e-05,
    "input_cost_per_token_above_200k_tokens": 6e-06,
    "max_input_tokens": 1000000,
    "litellm_provider": "anthropic",
    "supports_vision": true
  },
  "anthropic/claude-special": {"input_cost_per_token": 1e-06},
  "text-embedding-free": {"max_tokens": 8192},
  "image-model": {"output_cost_per_image": 0.04}
}`

func newTestService(t *testing.T, url string, client *http.Client) (*Service, string) {
	t.Helper()
	cachePath := filepath.Join(t.TempDir(), "pricing.json")
	return NewService(Config{URL: url, CachePath: cachePath, CacheMaxAge: time.Hour}, client), cachePath
}

func TestLoad_Remote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, remoteTable)
	}))
	defer server.Close()

	s, cachePath := newTestService(t, server.URL, nil)

	if got := s.Load(context.Background()); got != SourceRemote {
		t.Fatalf("Load() = %v, want %v", got, SourceRemote)
	}
	if s.Count() != 2 {
		t.Errorf("Count() = %d, want 2 (entries without base prices dropped)", s.Count())
	}

	p := s.GetPricing("claude-sonnet-4-20250514")
	if p == nil {
		t.Fatal("GetPricing() = nil")
	}
	if *p.InputCostPerTokenAbove200k != 6e-6 || *p.MaxInputTokens != 1_000_000 {
		t.Errorf("GetPricing() = %+v", p)
	}
	if p.CacheReadInputTokenCost != nil {
		t.Error("absent fields must stay nil")
	}

	if _, err := os.Stat(cachePath); err != nil {
		t.Errorf("remote load should write the cache: %v", err)
	}

	// A second service with an unreachable remote falls back to that cache.
	offline := &http.Client{Transport: &MockRoundTripper{
		RoundTripFunc: func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("net error")
		},
	}}
	s2 := NewService(Config{URL: server.URL, CachePath: cachePath, CacheMaxAge: time.Hour}, offline)
	if got := s2.Load(context.Background()); got != SourceCache {
		t.Fatalf("Load() = %v, want %v", got, SourceCache)
	}
	if s2.GetPricing("claude-sonnet-4-20250514") == nil {
		t.Error("cached table lost an entry")
	}
}

func TestLoad_Fallbacks(t *testing.T) {
	tests := []struct {
		name      string
		transport http.RoundTripper
		cache     string
		cacheAge  time.Duration
		want      Source
	}{
		{
			name: "StatusError",
			transport: &MockRoundTripper{
				RoundTripFunc: func(req *http.Request) (*http.Response, error) {
					return &http.Response{StatusCode: 500, Body: io.NopCloser(strings.NewReader(remoteTable))}, nil
				},
			},
			want: SourceEmbedded,
		},
		{
			name: "DecodeError",
			transport: &MockRoundTripper{
				RoundTripFunc: func(req *http.Request) (*http.Response, error) {
					return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("<html>"))}, nil
				},
			},
			want: SourceEmbedded,
		},
		{
			name: "NetworkErrorFreshCache",
			transport: &MockRoundTripper{
				RoundTripFunc: func(req *http.Request) (*http.Response, error) {
					return nil, errors.New("net error")
				},
			},
			cache: `{"cached-model": {"input_cost_per_token": 1e-06}}`,
			want:  SourceCache,
		},
		{
			name: "NetworkErrorStaleCache",
			transport: &MockRoundTripper{
				RoundTripFunc: func(req *http.Request) (*http.Response, error) {
					return nil, errors.New("net error")
				},
			},
			cache:    `{"cached-model": {"input_cost_per_token": 1e-06}}`,
			cacheAge: 2 * time.Hour,
			want:     SourceEmbedded,
		},
		{
			name: "CorruptCache",
			transport: &MockRoundTripper{
				RoundTripFunc: func(req *http.Request) (*http.Response, error) {
					return nil, errors.New("net error")
				},
			},
			cache: `{not json`,
			want:  SourceEmbedded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, cachePath := newTestService(t, "http://pricing.invalid/table.json", &http.Client{Transport: tt.transport})
			if tt.cache != "" {
				if err := os.WriteFile(cachePath, []byte(tt.cache), 0o600); err != nil {
					t.Fatal(err)
				}
				if tt.cacheAge > 0 {
					old := time.Now().Add(-tt.cacheAge)
					if err := os.Chtimes(cachePath, old, old); err != nil {
						t.Fatal(err)
					}
				}
			}

			if got := s.Load(context.Background()); got != tt.want {
				t.Errorf("Load() = %v, want %v", got, tt.want)
			}
			if s.Source() != tt.want {
				t.Errorf("Source() = %v, want %v", s.Source(), tt.want)
			}
			if s.Count() == 0 {
				t.Error("Load() left an empty table")
			}
		})
	}
}

func TestFetchRemote_Error(t *testing.T) {
	s, _ := newTestService(t, "http://pricing.invalid", &http.Client{Transport: &MockRoundTripper{
		RoundTripFunc: func(req *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: 404, Body: io.NopCloser(strings.NewReader(""))}, nil
		},
	}})

	if _, err := s.fetchRemote(context.Background()); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("fetchRemote() error = %v, want ErrFetchFailed", err)
	}
}

func TestGetPricing(t *testing.T) {
	s := NewService(Config{}, nil)
	s.SetTable(Table{
		"claude-sonnet-4-20250514":     {InputCostPerToken: models.Price(1)},
		"anthropic/claude-opus-4":      {InputCostPerToken: models.Price(2)},
		"claude-3-5-haiku-20241022":    {InputCostPerToken: models.Price(3)},
		"claude-opus-4-1-20250805":     {InputCostPerToken: models.Price(4)},
		"openrouter/openai/gpt-4o":     {InputCostPerToken: models.Price(5)},
		"openai/gpt-4o-mini-something": {InputCostPerToken: models.Price(6)},
	})

	tests := []struct {
		name  string
		model string
		want  float64
	}{
		{"Exact", "claude-sonnet-4-20250514", 1},
		{"ProviderPrefix", "claude-opus-4", 2},
		{"FamilyPrefix", "haiku-20241022", 3},
		{"LongPrefix", "gpt-4o", 5},
		{"FuzzyKeyContainsModel", "OPUS-4-1", 4},
		{"FuzzyModelContainsKey", "vendor/claude-sonnet-4-20250514-beta", 1},
		{"NoMatch", "gemini-pro", 0},
		{"Empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := s.GetPricing(tt.model)
			if tt.want == 0 {
				if p != nil {
					t.Errorf("GetPricing(%q) = %+v, want nil", tt.model, p)
				}
				return
			}
			if p == nil || *p.InputCostPerToken != tt.want {
				t.Errorf("GetPricing(%q) = %+v, want input price %v", tt.model, p, tt.want)
			}
		})
	}
}

func TestEmbeddedPricing(t *testing.T) {
	table, err := decodeTable(embeddedPricing)
	if err != nil {
		t.Fatalf("decodeTable(embedded) error = %v", err)
	}
	if len(table) == 0 {
		t.Fatal("embedded table is empty")
	}
	for name, p := range table {
		if !p.HasBasePrice() {
			t.Errorf("%s has no base price", name)
		}
	}

	s := NewService(Config{}, nil)
	if got := s.Load(context.Background()); got != SourceEmbedded {
		t.Errorf("Load() without URL or cache = %v, want %v", got, SourceEmbedded)
	}
	if s.GetPricing("claude-sonnet-4-20250514") == nil {
		t.Error("embedded table should price claude-sonnet-4")
	}
}
