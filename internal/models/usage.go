// Package models defines data structures and domain types.
package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Usage holds the token counters reported for one assistant message.
type Usage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens,omitempty"`
}

// ContentBlock is one element of a message's content array.
type ContentBlock struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// Message is the assistant message carried by a log line.
type Message struct {
	Usage *Usage `json:"usage,omitempty"`
	Model string `json:"model,omitempty"`
	ID    string `json:"id,omitempty"`
	// Content is kept raw: the log format uses both a plain string and a block array.
	Content json.RawMessage `json:"content,omitempty"`
}

// ContentBlocks decodes the content array. A plain string becomes a single text block.
func (m Message) ContentBlocks() []ContentBlock {
	if len(m.Content) == 0 {
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(m.Content, &blocks); err == nil {
		return blocks
	}
	var text string
	if err := json.Unmarshal(m.Content, &text); err == nil {
		return []ContentBlock{{Type: "text", Text: text}}
	}
	return nil
}

// UsageEntry is one parsed log line.
type UsageEntry struct {
	CWD               string   `json:"cwd,omitempty"`
	SessionID         string   `json:"sessionId,omitempty"`
	Timestamp         string   `json:"timestamp"`
	Version           string   `json:"version,omitempty"`
	Message           Message  `json:"message"`
	CostUSD           *float64 `json:"costUSD,omitempty"`
	RequestID         string   `json:"requestId,omitempty"`
	IsAPIErrorMessage bool     `json:"isApiErrorMessage,omitempty"`
}

// UniqueHash returns "messageId:requestId", or "" when either part is missing.
// Entries without a hash are never deduplicated.
func (e UsageEntry) UniqueHash() string {
	if e.Message.ID == "" || e.RequestID == "" {
		return ""
	}
	return e.Message.ID + ":" + e.RequestID
}

// Tokens extracts the four token counters. A missing usage object yields zeros.
func (e UsageEntry) Tokens() TokenInfo {
	u := e.Message.Usage
	if u == nil {
		return TokenInfo{}
	}
	return TokenInfo{
		InputTokens:         u.InputTokens,
		OutputTokens:        u.OutputTokens,
		CacheCreationTokens: u.CacheCreationInputTokens,
		CacheReadTokens:     u.CacheReadInputTokens,
	}
}

// TotalTokens is input + output + cache creation + cache read.
func (e UsageEntry) TotalTokens() int64 {
	return e.Tokens().Total()
}

// ModelName returns the message model, or UnknownModel when absent.
func (e UsageEntry) ModelName() string {
	if e.Message.Model == "" {
		return UnknownModel
	}
	return e.Message.Model
}

// Time parses the entry timestamp.
func (e UsageEntry) Time() (time.Time, error) {
	return ParseTimestamp(e.Timestamp)
}

// UnknownModel is the model name used when a log line does not carry one.
const UnknownModel = "unknown"

// ErrInvalidTimestamp is returned for timestamps no accepted layout can parse.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// timestampLayouts are tried in order. RFC3339Nano accepts both "Z" and "+hh:mm"
// offsets, with or without fractional seconds.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
}

// ParseTimestamp parses an ISO-8601 instant with an explicit offset.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidTimestamp
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}
