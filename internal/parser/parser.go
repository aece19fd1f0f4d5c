// Package parser turns raw log lines into validated usage entries.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/AgentsMesh/CCMonitor/internal/logger"
	"github.com/AgentsMesh/CCMonitor/internal/models"
)

// usageKeyword must appear in any line worth a full decode.
const usageKeyword = `"usage"`

// maxLoggedDecodeErrors caps debug output for undecodable lines per Parse call.
const maxLoggedDecodeErrors = 3

// SkipReason says why a line produced no entry.
type SkipReason int

const (
	// NotSkipped marks a line that produced an entry.
	NotSkipped SkipReason = iota
	SkipBlank
	SkipNoUsageKeyword
	SkipDecodeError
	SkipNoUsageField
	SkipAPIError
)

// String returns the reason name used in log output.
func (r SkipReason) String() string {
	switch r {
	case NotSkipped:
		return "parsed"
	case SkipBlank:
		return "blank"
	case SkipNoUsageKeyword:
		return "no-usage-keyword"
	case SkipDecodeError:
		return "decode-error"
	case SkipNoUsageField:
		return "no-usage-field"
	case SkipAPIError:
		return "api-error"
	default:
		return "unknown"
	}
}

// Stats counts lines seen and the reasons they were skipped.
type Stats struct {
	Lines          int64
	Parsed         int64
	Blank          int64
	NoUsageKeyword int64
	DecodeErrors   int64
	NoUsageField   int64
	APIErrors      int64
}

// Skipped returns the number of lines that produced no entry.
func (s Stats) Skipped() int64 {
	return s.Lines - s.Parsed
}

func (s *Stats) record(r SkipReason) {
	s.Lines++
	switch r {
	case NotSkipped:
		s.Parsed++
	case SkipBlank:
		s.Blank++
	case SkipNoUsageKeyword:
		s.NoUsageKeyword++
	case SkipDecodeError:
		s.DecodeErrors++
	case SkipNoUsageField:
		s.NoUsageField++
	case SkipAPIError:
		s.APIErrors++
	}
}

func (s *Stats) merge(o Stats) {
	s.Lines += o.Lines
	s.Parsed += o.Parsed
	s.Blank += o.Blank
	s.NoUsageKeyword += o.NoUsageKeyword
	s.DecodeErrors += o.DecodeErrors
	s.NoUsageField += o.NoUsageField
	s.APIErrors += o.APIErrors
}

// Parser parses lines and keeps cumulative skip counters.
// It is safe for concurrent use.
type Parser struct {
	mu    sync.Mutex
	stats Stats
}

// New creates a parser with zeroed counters.
func New() *Parser {
	return &Parser{}
}

// Parse returns the entries of every qualifying line, in input order.
func (p *Parser) Parse(lines []string) []models.UsageEntry {
	entries, stats := parse(lines)
	p.mu.Lock()
	p.stats.merge(stats)
	p.mu.Unlock()
	return entries
}

// ParseLine parses a single line with the same rules as Parse.
func (p *Parser) ParseLine(line string) (models.UsageEntry, bool) {
	entry, reason, _ := classify(line)
	p.mu.Lock()
	p.stats.record(reason)
	p.mu.Unlock()
	return entry, reason == NotSkipped
}

// Stats returns a copy of the cumulative counters.
func (p *Parser) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Parse parses lines without keeping counters.
func Parse(lines []string) []models.UsageEntry {
	entries, _ := parse(lines)
	return entries
}

// ParseLine parses one line without keeping counters.
func ParseLine(line string) (models.UsageEntry, bool) {
	entry, reason, _ := classify(line)
	return entry, reason == NotSkipped
}

func parse(lines []string) ([]models.UsageEntry, Stats) {
	var (
		stats   Stats
		entries []models.UsageEntry
	)
	for _, line := range lines {
		entry, reason, err := classify(line)
		stats.record(reason)
		switch reason {
		case NotSkipped:
			entries = append(entries, entry)
		case SkipDecodeError:
			if stats.DecodeErrors <= maxLoggedDecodeErrors {
				logger.Debug("Skipping undecodable line", "error", err, "preview", preview(line))
			}
		}
	}

	if stats.DecodeErrors > 0 || stats.NoUsageKeyword > 0 {
		logger.Debug("Parse stats",
			"parsed", stats.Parsed,
			"no_usage_keyword", stats.NoUsageKeyword,
			"decode_errors", stats.DecodeErrors,
			"no_usage_field", stats.NoUsageField,
			"api_errors", stats.APIErrors,
		)
	}
	return entries, stats
}

// classify runs the filter chain for one line.
func classify(line string) (models.UsageEntry, SkipReason, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return models.UsageEntry{}, SkipBlank, nil
	}
	if !strings.Contains(trimmed, usageKeyword) {
		return models.UsageEntry{}, SkipNoUsageKeyword, nil
	}

	entry, err := decode([]byte(trimmed))
	if err != nil {
		return models.UsageEntry{}, SkipDecodeError, err
	}
	if entry.Message.Usage == nil {
		return models.UsageEntry{}, SkipNoUsageField, nil
	}
	if entry.IsAPIErrorMessage {
		return models.UsageEntry{}, SkipAPIError, nil
	}
	return entry, NotSkipped, nil
}

// Wire shapes. Pointers mark the fields a line must carry.
type rawEntry struct {
	CWD               string      `json:"cwd"`
	SessionID         string      `json:"sessionId"`
	Timestamp         *string     `json:"timestamp"`
	Version           string      `json:"version"`
	Message           *rawMessage `json:"message"`
	CostUSD           *float64    `json:"costUSD"`
	RequestID         string      `json:"requestId"`
	IsAPIErrorMessage bool        `json:"isApiErrorMessage"`
}

type rawMessage struct {
	Usage   *rawUsage       `json:"usage"`
	Model   string          `json:"model"`
	ID      string          `json:"id"`
	Content json.RawMessage `json:"content"`
}

type rawUsage struct {
	InputTokens              *int64 `json:"input_tokens"`
	OutputTokens             *int64 `json:"output_tokens"`
	CacheCreationInputTokens *int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     *int64 `json:"cache_read_input_tokens"`
}

var (
	errMissingTimestamp = errors.New("missing timestamp")
	errMissingMessage   = errors.New("missing message")
	errMissingTokens    = errors.New("usage missing input_tokens or output_tokens")
	errNegativeTokens   = errors.New("negative token count")
)

func decode(data []byte) (models.UsageEntry, error) {
	var raw rawEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.UsageEntry{}, err
	}
	if raw.Timestamp == nil {
		return models.UsageEntry{}, errMissingTimestamp
	}
	if raw.Message == nil {
		return models.UsageEntry{}, errMissingMessage
	}

	entry := models.UsageEntry{
		CWD:               raw.CWD,
		SessionID:         raw.SessionID,
		Timestamp:         *raw.Timestamp,
		Version:           raw.Version,
		CostUSD:           raw.CostUSD,
		RequestID:         raw.RequestID,
		IsAPIErrorMessage: raw.IsAPIErrorMessage,
		Message: models.Message{
			Model: raw.Message.Model,
			ID:    raw.Message.ID,
		},
	}
	if c := bytes.TrimSpace(raw.Message.Content); len(c) > 0 && !bytes.Equal(c, []byte("null")) {
		entry.Message.Content = c
	}

	if u := raw.Message.Usage; u != nil {
		if u.InputTokens == nil || u.OutputTokens == nil {
			return models.UsageEntry{}, errMissingTokens
		}
		usage := &models.Usage{
			InputTokens:              *u.InputTokens,
			OutputTokens:             *u.OutputTokens,
			CacheCreationInputTokens: deref(u.CacheCreationInputTokens),
			CacheReadInputTokens:     deref(u.CacheReadInputTokens),
		}
		if usage.InputTokens < 0 || usage.OutputTokens < 0 ||
			usage.CacheCreationInputTokens < 0 || usage.CacheReadInputTokens < 0 {
			return models.UsageEntry{}, errNegativeTokens
		}
		entry.Message.Usage = usage
	}
	return entry, nil
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func preview(line string) string {
	const limit = 300
	if len(line) <= limit {
		return line
	}
	return line[:limit]
}
