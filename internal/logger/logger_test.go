package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWritersDefaultPathsFromDir(t *testing.T) {
	dir := t.TempDir()
	c := Config{Dir: dir}
	outW, errW, err := c.Writers("backend")
	if err != nil {
		t.Fatalf("Writers: %v", err)
	}
	if outW == nil || errW == nil {
		t.Fatal("writers not created")
	}
	defer func() { _ = outW.Close(); _ = errW.Close() }()

	if _, err := outW.Write([]byte("out line\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "backend.stdout.log"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "out line") {
		t.Fatalf("content: %q", string(b))
	}
}

func TestWritersExplicitPathsWin(t *testing.T) {
	dir := t.TempDir()
	c := Config{Dir: dir, StdoutPath: filepath.Join(dir, "custom.log")}
	outW, errW, err := c.Writers("svc")
	if err != nil {
		t.Fatalf("Writers: %v", err)
	}
	defer func() { _ = outW.Close(); _ = errW.Close() }()
	if _, err := outW.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "custom.log")); err != nil {
		t.Fatalf("explicit path unused: %v", err)
	}
}

func TestColorTextHandlerPrefixesLevel(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.New(h).Warn("probe slow", "service", "backend")

	out := buf.String()
	i := strings.Index(out, "msg=")
	if i < 0 {
		t.Fatalf("no msg attribute: %q", out)
	}
	// The message carries the level tag whether or not ANSI codes are on.
	if !strings.Contains(out[i:], "WARN") || !strings.Contains(out[i:], "probe slow") {
		t.Fatalf("message not tagged with level: %q", out)
	}
}

func TestWritersNoneConfigured(t *testing.T) {
	outW, errW, err := Config{}.Writers("svc")
	if err != nil {
		t.Fatalf("Writers: %v", err)
	}
	if outW != nil || errW != nil {
		t.Fatal("writers created without destinations")
	}
}
