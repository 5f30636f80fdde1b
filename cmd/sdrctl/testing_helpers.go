package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"
)

// resetFlags points every command at a fresh heap directory with the
// default profile flags.
func resetFlags(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	verbose, quiet, jsonOut, trace = false, false, false, false
	noColor = true
	applyColor()
	logDir = ""
	heapDir = dir
	heapWords = 0
	heapFlags = "file|reversible"
	logSize = 0
	durability = "auto"
	searchLimit = 0
	restartCmd = ""
	infoCheck = false
	return dir
}

// createHeap formats a small heap named name in the current heap directory.
func createHeap(t *testing.T, name string) {
	t.Helper()
	heapWords = 1 << 14
	if _, err := captureOutput(t, func() error { return runCreate([]string{name}) }); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	heapWords = 0
}

// captureOutput runs fn with stdout redirected and returns what it printed.
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	done := make(chan []byte)
	go func() {
		out, _ := io.ReadAll(r)
		done <- out
	}()

	fnErr := fn()
	os.Stdout = orig
	w.Close()
	return string(<-done), fnErr
}

// assertJSON checks that output is valid JSON
func assertJSON(t *testing.T, output string) {
	t.Helper()
	var result any
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Errorf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}

// assertNotContains checks that output doesn't contain unwanted strings
func assertNotContains(t *testing.T, output string, unwanted []string) {
	t.Helper()
	for _, dont := range unwanted {
		if strings.Contains(output, dont) {
			t.Errorf("output contains unwanted string %q\nGot: %s", dont, output)
		}
	}
}
