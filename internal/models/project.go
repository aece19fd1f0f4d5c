package models

import (
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// UnknownProject is the project id for log files outside a projects directory.
const UnknownProject = "unknown"

// projectsMarker is the directory whose child names the project.
const projectsMarker = "projects"

// ProjectInfo is the per-project rollup.
type ProjectInfo struct {
	ProjectPath  string    `json:"projectPath"`
	DisplayName  string    `json:"displayName"`
	TotalTokens  int64     `json:"totalTokens"`
	TotalCostUSD float64   `json:"totalCostUSD"`
	RequestCount int64     `json:"requestCount"`
	LastActivity time.Time `json:"lastActivity"`
	Models       []string  `json:"models"`

	// ActiveSessions is filled in by read views; it is not accumulated.
	ActiveSessions int `json:"-"`
}

// NewProjectInfo returns an empty rollup for the given project id.
func NewProjectInfo(id string) *ProjectInfo {
	return &ProjectInfo{
		ProjectPath: id,
		DisplayName: ProjectDisplayName(id),
	}
}

// Add folds one request into the rollup. Models stays sorted and unique.
func (p *ProjectInfo) Add(tokens int64, cost float64, at time.Time, model string) {
	p.TotalTokens += tokens
	p.TotalCostUSD += cost
	p.RequestCount++
	if at.After(p.LastActivity) {
		p.LastActivity = at
	}
	if model == "" {
		return
	}
	if i, found := slices.BinarySearch(p.Models, model); !found {
		p.Models = slices.Insert(p.Models, i, model)
	}
}

// Clone returns a deep copy.
func (p ProjectInfo) Clone() ProjectInfo {
	c := p
	c.Models = slices.Clone(p.Models)
	return c
}

// ProjectIDFromPath returns the path segment right after the first "projects"
// segment, or UnknownProject when there is none.
func ProjectIDFromPath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for i, part := range parts {
		if part == projectsMarker && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1]
		}
	}
	return UnknownProject
}

// ProjectDisplayName decodes an encoded project directory name back into a path.
func ProjectDisplayName(id string) string {
	if id == "" || id == UnknownProject {
		return id
	}
	decoded := strings.ReplaceAll(id, "-", "/")
	if unescaped, err := url.PathUnescape(decoded); err == nil {
		return unescaped
	}
	return decoded
}
