package logger

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
)

func TestLInitialized(t *testing.T) {
	if L() == nil {
		t.Fatal("default logger must be set at init")
	}
}

func TestSetupWriterReplacesDefault(t *testing.T) {
	var buf bytes.Buffer
	t.Cleanup(func() { SetupWriter(io.Discard) })
	SetupWriter(&buf)
	Component("session").Info("tick_applied", "count", 2)
	out := buf.String()
	if !strings.Contains(out, "component=session") || !strings.Contains(out, "tick_applied") {
		t.Fatalf("log output = %q", out)
	}
}

func TestConcurrentSetupAndRead(t *testing.T) {
	t.Cleanup(func() { SetupWriter(io.Discard) })
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetupWriter(io.Discard)
		}()
		go func() {
			defer wg.Done()
			if Component("api") == nil {
				t.Error("nil logger")
			}
		}()
	}
	wg.Wait()
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR", "": "INFO", "x": "INFO"}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
