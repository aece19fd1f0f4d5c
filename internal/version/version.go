// Package version provides build version information and runtime metadata.
package version

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

const gitTimeout = 2 * time.Second

var (
	// These are set via ldflags at build time:
	//   -X github.com/AgentsMesh/CCMonitor/internal/version.Version=1.2.0
	Version = ""
	Commit  = ""
	Date    = ""

	mu          sync.Mutex
	initialized bool

	// execCommand is replaced in tests.
	execCommand = exec.CommandContext
)

func ensureInitialized() {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return
	}
	initialized = true

	if Date == "" {
		Date = time.Now().Format("2006-01-02")
	}
	if Commit == "" {
		Commit = gitOutput("unknown", "describe", "--always", "--dirty")
	}
	if Version == "" {
		Version = gitOutput("dev", "describe", "--tags", "--abbrev=0")
	}
}

// gitOutput runs git with args and returns its trimmed output, or fallback
// when git fails or prints nothing.
func gitOutput(fallback string, args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()

	out, err := execCommand(ctx, "git", args...).Output()
	if err != nil {
		return fallback
	}
	if v := strings.TrimSpace(string(out)); v != "" {
		return v
	}
	return fallback
}

// Reset clears values resolved at runtime so they are looked up again.
// Values injected through ldflags are cleared too.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	initialized = false
	Version, Commit, Date = "", "", ""
}

func GetVersion() string {
	ensureInitialized()
	return Version
}

func GetCommit() string {
	ensureInitialized()
	return Commit
}

func GetDate() string {
	ensureInitialized()
	return Date
}

// Info returns the one-line version banner printed by -v.
func Info() string {
	ensureInitialized()
	return fmt.Sprintf("ccmonitor %s (commit: %s, built: %s, %s/%s)",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
