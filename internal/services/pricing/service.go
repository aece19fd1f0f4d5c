// Package pricing resolves per-token model prices and computes request costs.
package pricing

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/AgentsMesh/CCMonitor/internal/fsutil"
	"github.com/AgentsMesh/CCMonitor/internal/logger"
	"github.com/AgentsMesh/CCMonitor/internal/models"
)

//go:embed embedded_pricing.json
var embeddedPricing []byte

// ErrFetchFailed wraps every remote pricing failure.
var ErrFetchFailed = errors.New("pricing fetch failed")

// Source names where the active table came from.
type Source string

const (
	SourceNone     Source = "none"
	SourceRemote   Source = "remote"
	SourceCache    Source = "cache"
	SourceEmbedded Source = "embedded"
)

// providerPrefixes are tried in order when the bare model name has no exact entry.
var providerPrefixes = []string{
	"anthropic/",
	"claude-3-5-",
	"claude-3-",
	"claude-",
	"openai/",
	"azure/",
	"openrouter/openai/",
}

const (
	defaultTimeout     = 10 * time.Second
	defaultCacheMaxAge = 24 * time.Hour
)

// Config configures the pricing sources.
type Config struct {
	URL         string
	CachePath   string
	CacheMaxAge time.Duration
	Timeout     time.Duration
}

// Table maps model names to prices.
type Table map[string]models.ModelPricing

// Service holds the active pricing table. Lookups may run concurrently with Load.
type Service struct {
	mu     sync.RWMutex
	table  Table
	keys   []string
	source Source

	cfg    Config
	client *http.Client
}

// NewService creates a service with an empty table. A nil client gets a
// default client using cfg.Timeout.
func NewService(cfg Config, client *http.Client) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheMaxAge <= 0 {
		cfg.CacheMaxAge = defaultCacheMaxAge
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Service{
		table:  Table{},
		source: SourceNone,
		cfg:    cfg,
		client: client,
	}
}

// Load replaces the table from the first source that yields one: remote,
// then a fresh local cache, then the embedded default.
func (s *Service) Load(ctx context.Context) Source {
	if s.cfg.URL != "" {
		table, err := s.fetchRemote(ctx)
		if err == nil {
			s.setTable(table, SourceRemote)
			s.saveCache(table)
			logger.Info("Pricing loaded from remote", "models", len(table))
			return SourceRemote
		}
		logger.Warn("Remote pricing unavailable", "error", err)
	}

	if table, ok := s.loadCache(); ok {
		s.setTable(table, SourceCache)
		logger.Info("Pricing loaded from local cache", "models", len(table))
		return SourceCache
	}

	table, err := decodeTable(embeddedPricing)
	if err != nil {
		// The embedded file is compiled in; this only fires on a broken build.
		logger.Error("Embedded pricing is invalid", "error", err)
		table = Table{}
	}
	s.setTable(table, SourceEmbedded)
	logger.Info("Pricing loaded from embedded", "models", len(table))
	return SourceEmbedded
}

// GetPricing resolves a model name: exact key, then provider-prefixed key,
// then case-insensitive substring match in either direction. Returns nil
// when nothing matches.
func (s *Service) GetPricing(model string) *models.ModelPricing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.table[model]; ok {
		return &p
	}

	for _, prefix := range providerPrefixes {
		if p, ok := s.table[prefix+model]; ok {
			return &p
		}
	}

	lower := strings.ToLower(model)
	if lower == "" {
		return nil
	}
	for _, key := range s.keys {
		keyLower := strings.ToLower(key)
		if strings.Contains(keyLower, lower) || strings.Contains(lower, keyLower) {
			p := s.table[key]
			return &p
		}
	}
	return nil
}

// Count returns the number of models in the active table.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.table)
}

// Source returns where the active table was loaded from.
func (s *Service) Source() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// SetTable installs a table directly. Used by callers that already hold prices.
func (s *Service) SetTable(table Table) {
	s.setTable(table, SourceNone)
}

func (s *Service) setTable(table Table, source Source) {
	keys := make([]string, 0, len(table))
	for k := range table {
		if k != "" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	s.mu.Lock()
	s.table = table
	s.keys = keys
	s.source = source
	s.mu.Unlock()
}

func (s *Service) fetchRemote(ctx context.Context) (Table, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %w", ErrFetchFailed, err)
	}

	table, err := decodeTable(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return table, nil
}

func (s *Service) loadCache() (Table, bool) {
	if s.cfg.CachePath == "" {
		return nil, false
	}
	info, err := os.Stat(s.cfg.CachePath)
	if err != nil {
		return nil, false
	}
	if age := time.Since(info.ModTime()); age > s.cfg.CacheMaxAge {
		logger.Debug("Pricing cache is stale", "path", s.cfg.CachePath, "age", age)
		return nil, false
	}

	data, err := os.ReadFile(s.cfg.CachePath)
	if err != nil {
		logger.Warn("Failed to read pricing cache", "path", s.cfg.CachePath, "error", err)
		return nil, false
	}
	table, err := decodeTable(data)
	if err != nil {
		logger.Warn("Pricing cache is corrupt", "path", s.cfg.CachePath, "error", err)
		return nil, false
	}
	return table, true
}

func (s *Service) saveCache(table Table) {
	if s.cfg.CachePath == "" {
		return
	}
	data, err := json.Marshal(table)
	if err != nil {
		logger.Error("Failed to encode pricing cache", "error", err)
		return
	}
	if err := fsutil.WriteFileAtomic(s.cfg.CachePath, data, 0o600); err != nil {
		logger.Error("Failed to write pricing cache", "path", s.cfg.CachePath, "error", err)
	}
}

var errInvalidTable = errors.New("pricing table is not a JSON object")

// decodeTable extracts the known numeric fields of every entry and ignores
// everything else. Entries without an input or output base price are dropped.
func decodeTable(data []byte) (Table, error) {
	if !gjson.ValidBytes(data) {
		return nil, errInvalidTable
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, errInvalidTable
	}

	table := Table{}
	root.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		p := models.ModelPricing{
			InputCostPerToken:                    floatField(value, "input_cost_per_token"),
			OutputCostPerToken:                   floatField(value, "output_cost_per_token"),
			CacheCreationInputTokenCost:          floatField(value, "cache_creation_input_token_cost"),
			CacheReadInputTokenCost:              floatField(value, "cache_read_input_token_cost"),
			InputCostPerTokenAbove200k:           floatField(value, "input_cost_per_token_above_200k_tokens"),
			OutputCostPerTokenAbove200k:          floatField(value, "output_cost_per_token_above_200k_tokens"),
			CacheCreationInputTokenCostAbove200k: floatField(value, "cache_creation_input_token_cost_above_200k_tokens"),
			CacheReadInputTokenCostAbove200k:     floatField(value, "cache_read_input_token_cost_above_200k_tokens"),
			MaxTokens:                            intField(value, "max_tokens"),
			MaxInputTokens:                       intField(value, "max_input_tokens"),
			MaxOutputTokens:                      intField(value, "max_output_tokens"),
		}
		if p.HasBasePrice() {
			table[key.String()] = p
		}
		return true
	})
	return table, nil
}

func floatField(obj gjson.Result, name string) *float64 {
	v := obj.Get(name)
	if v.Type != gjson.Number {
		return nil
	}
	f := v.Float()
	return &f
}

func intField(obj gjson.Result, name string) *int64 {
	v := obj.Get(name)
	if v.Type != gjson.Number {
		return nil
	}
	i := v.Int()
	return &i
}
