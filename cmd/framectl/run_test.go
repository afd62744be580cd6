package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/joshuapare/framekit/internal/testutil"
	"github.com/joshuapare/framekit/pkg/memmap"
)

const bootScript = `
# allocate, fix, free and check
alloc 12KiB
alloc 0x1000 small system(7)
fixed 0x1000000 8KiB
free 0x1000000
free 0x1000000
coalesce
verify
`

func TestExecScript(t *testing.T) {
	resetFlags(t)
	quiet = true
	m := testutil.Bootstrap(t, memmap.Default())
	free := m.FreeMemCount()

	results, err := execScript(m, strings.NewReader(bootScript))
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if len(results) != 7 {
		t.Fatalf("got %d results, want 7: %+v", len(results), results)
	}

	ops := []string{"alloc", "alloc", "fixed", "free", "free", "coalesce", "verify"}
	for i, r := range results {
		if r.Op != ops[i] {
			t.Errorf("result %d op = %s, want %s", i, r.Op, ops[i])
		}
	}
	if results[0].Line != 3 {
		t.Errorf("first result line = %d, want 3", results[0].Line)
	}
	if results[2].Addr != "0x1000000" {
		t.Errorf("fixed addr = %s, want 0x1000000", results[2].Addr)
	}
	if results[3].Error != "" {
		t.Errorf("first free failed: %s", results[3].Error)
	}
	if results[4].Error == "" {
		t.Error("second free of the same frame should fail")
	}
	if results[6].Error != "" {
		t.Errorf("verify failed: %s", results[6].Error)
	}

	if want := free - 0x3000 - 0x1000; m.FreeMemCount() != want {
		t.Errorf("free memory = %#x, want %#x", m.FreeMemCount(), want)
	}
}

func TestExecScriptSyntaxErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		line   string
	}{
		{"unknown op", "alloc 4KiB\nreserve 4KiB\nalloc 4KiB\n", "line 2"},
		{"bad size", "alloc lots\n", "line 1"},
		{"bad page", "alloc 4KiB tiny\n", "line 1"},
		{"bad owner", "alloc 4KiB small nobody-at-all\n", "line 1"},
		{"bad address", "free zero\n", "line 1"},
		{"missing args", "fixed 0x1000\n", "line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			quiet = true
			m := testutil.Bootstrap(t, memmap.Default())

			_, err := execScript(m, strings.NewReader(tt.script))
			if !errors.Is(err, errSyntax) {
				t.Fatalf("error = %v, want syntax error", err)
			}
			if !strings.Contains(err.Error(), tt.line) {
				t.Errorf("error %q does not name %s", err, tt.line)
			}
		})
	}
}

func TestRunCommand(t *testing.T) {
	resetFlags(t)
	script := testutil.WriteFile(t, "boot.script", bootScript+"stats\n")

	output, err := captureOutput(t, func() error {
		return newRunCmd().RunE(nil, []string{script})
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	assertContains(t, output, []string{
		"fixed    0x1000000",
		"alloc: no frame contains address",
		"merges",
		"verify   ok",
		"Memory Statistics",
	})
}

func TestRunCommandJSON(t *testing.T) {
	resetFlags(t)
	jsonOut = true
	script := testutil.WriteFile(t, "boot.script", bootScript+"stats\nlayout\n")

	output, err := captureOutput(t, func() error {
		return newRunCmd().RunE(nil, []string{script})
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	assertJSON(t, output)

	var results []StepResult
	if err := json.Unmarshal([]byte(output), &results); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(results) != 9 {
		t.Fatalf("got %d results, want 9", len(results))
	}
	assertNotContains(t, output, []string{"Frames (", "Memory Statistics"})

	stats, layout := results[7], results[8]
	if stats.Op != "stats" || stats.Stats == nil {
		t.Fatalf("stats step carries no statistics: %+v", stats)
	}
	if stats.Stats.TotalBytes == 0 || stats.Stats.Boundary == "" {
		t.Errorf("stats step is empty: %+v", *stats.Stats)
	}
	if layout.Op != "layout" || len(layout.Frames) == 0 {
		t.Fatalf("layout step carries no frames: %+v", layout)
	}
	if layout.Frames[0].Base == "" || layout.Frames[0].Partition == "" {
		t.Errorf("layout frame is empty: %+v", layout.Frames[0])
	}
}

func TestRunMissingScript(t *testing.T) {
	resetFlags(t)
	_, err := captureOutput(t, func() error {
		return newRunCmd().RunE(nil, []string{"/nonexistent/boot.script"})
	})
	if err == nil {
		t.Fatal("expected error for a missing script")
	}
}
