package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestUsageEntry_UniqueHash(t *testing.T) {
	tests := []struct {
		name      string
		messageID string
		requestID string
		want      string
	}{
		{"Both", "m1", "r1", "m1:r1"},
		{"NoRequest", "m1", "", ""},
		{"NoMessage", "", "r1", ""},
		{"Neither", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := UsageEntry{RequestID: tt.requestID, Message: Message{ID: tt.messageID}}
			if got := e.UniqueHash(); got != tt.want {
				t.Errorf("UniqueHash() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUsageEntry_TotalTokens(t *testing.T) {
	e := UsageEntry{Message: Message{Usage: &Usage{
		InputTokens:              10,
		OutputTokens:             20,
		CacheCreationInputTokens: 30,
		CacheReadInputTokens:     40,
	}}}

	if got := e.TotalTokens(); got != 100 {
		t.Errorf("TotalTokens() = %d, want 100", got)
	}

	tokens := e.Tokens()
	if tokens.CacheCreationTokens != 30 || tokens.CacheReadTokens != 40 {
		t.Errorf("Tokens() = %+v", tokens)
	}

	if got := (UsageEntry{}).TotalTokens(); got != 0 {
		t.Errorf("TotalTokens() without usage = %d, want 0", got)
	}
}

func TestUsageEntry_ModelName(t *testing.T) {
	if got := (UsageEntry{}).ModelName(); got != UnknownModel {
		t.Errorf("ModelName() = %q, want %q", got, UnknownModel)
	}
	e := UsageEntry{Message: Message{Model: "claude-sonnet-4-20250514"}}
	if got := e.ModelName(); got != "claude-sonnet-4-20250514" {
		t.Errorf("ModelName() = %q", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{"Zulu", "2025-06-01T12:30:45Z", want, false},
		{"ZuluFractional", "2025-06-01T12:30:45.123Z", want.Add(123 * time.Millisecond), false},
		{"ZeroOffset", "2025-06-01T12:30:45+00:00", want, false},
		{"PositiveOffset", "2025-06-01T14:30:45+02:00", want, false},
		{"CompactOffset", "2025-06-01T14:30:45.000+0200", want, false},
		{"Padded", "  2025-06-01T12:30:45Z ", want, false},
		{"NoOffset", "2025-06-01T12:30:45", time.Time{}, true},
		{"Garbage", "yesterday", time.Time{}, true},
		{"Empty", "", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimestamp(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMessage_ContentBlocks(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"Array", `{"content":[{"type":"text","text":"hi"},{"type":"tool_use"}]}`, 2},
		{"String", `{"content":"plain"}`, 1},
		{"Missing", `{}`, 0},
		{"Number", `{"content":42}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			if err := json.Unmarshal([]byte(tt.raw), &m); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got := m.ContentBlocks(); len(got) != tt.want {
				t.Errorf("ContentBlocks() len = %d, want %d", len(got), tt.want)
			}
		})
	}
}
